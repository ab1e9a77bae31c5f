package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/nefol-pricing/internal/db"
	"github.com/noah-isme/nefol-pricing/internal/discount"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

var (
	// ErrNotFound is returned when the tenant has no order with the number.
	ErrNotFound = errors.New("order: not found")
	// ErrNumberTaken is returned when a generated order or invoice number collides.
	ErrNumberTaken = errors.New("order: number already in use")
	// ErrInvalidTransition is returned for a status change the order cannot make.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrInvoiceNotFound is returned when the tenant has no invoice with the number.
	ErrInvoiceNotFound = errors.New("order: invoice not found")
)

// Tx is the unit of work of an order commit.
type Tx interface {
	Discounts() discount.TxStore
	InsertOrder(ctx context.Context, o *Order) error
	InsertInvoice(ctx context.Context, inv *Invoice) error
}

// Store persists orders and invoices.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	GetByNumber(ctx context.Context, number string) (Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, int, error)
	// UpdateStatus moves the order from one status to another and fails with
	// ErrInvalidTransition when the order is no longer in from.
	UpdateStatus(ctx context.Context, number string, from, to Status) (Order, error)

	GetInvoice(ctx context.Context, number string) (Invoice, error)
	ListInvoices(ctx context.Context, limit, offset int) ([]Invoice, int, error)
	// UpdateInvoiceStatus fails with ErrInvalidTransition when the invoice is
	// no longer in from.
	UpdateInvoiceStatus(ctx context.Context, number string, from, to InvoiceStatus) (Invoice, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db        *pgxpool.Pool
	discounts *discount.PGStore
}

// NewPGStore constructs a Postgres-backed store. Discount usage shares the
// order's transaction.
func NewPGStore(pool *pgxpool.Pool, discounts *discount.PGStore) *PGStore {
	return &PGStore{db: pool, discounts: discounts}
}

func (s *PGStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, discounts: s.discounts.InTx(tx)})
	})
}

const orderColumns = `
	id, order_number, customer_name, customer_email, shipping_address, items,
	region, product_type, tax_mode, COALESCE(discount_code, ''), subtotal, discount_amount,
	shipping, tax, total, pricing, status, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		address []byte
		items   []byte
		result  []byte
		mode    string
		status  string
	)
	err := row.Scan(&o.ID, &o.Number, &o.CustomerName, &o.CustomerEmail, &address, &items,
		&o.Region, &o.ProductType, &mode, &o.DiscountCode, &o.Subtotal, &o.DiscountAmount,
		&o.Shipping, &o.Tax, &o.Total, &result, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.ShippingAddress = json.RawMessage(address)
	o.TaxMode = pricing.TaxMode(mode)
	o.Status = Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("order: decode items of %s: %w", o.Number, err)
	}
	if err := json.Unmarshal(result, &o.Pricing); err != nil {
		return Order{}, fmt.Errorf("order: decode pricing of %s: %w", o.Number, err)
	}
	return o, nil
}

func (s *PGStore) GetByNumber(ctx context.Context, number string) (Order, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	return scanOrder(s.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1 AND order_number = $2
	`, tenantID, number))
}

func (s *PGStore) List(ctx context.Context, limit, offset int) ([]Order, int, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tenant_id = $1
		ORDER BY created_at DESC, order_number
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, number string, from, to Status) (Order, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return Order{}, err
	}
	o, err := scanOrder(s.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND order_number = $2 AND status = $4
		RETURNING `+orderColumns,
		tenantID, number, string(to), string(from)))
	if errors.Is(err, ErrNotFound) {
		return Order{}, ErrInvalidTransition
	}
	return o, err
}

const invoiceColumns = `
	i.id, i.invoice_number, i.order_id, o.order_number, i.amount, i.status,
	i.due_date, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv    Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.OrderNumber, &inv.Amount, &status,
		&inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (s *PGStore) GetInvoice(ctx context.Context, number string) (Invoice, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return Invoice{}, err
	}
	return scanInvoice(s.db.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		JOIN orders o ON o.id = i.order_id
		WHERE i.tenant_id = $1 AND i.invoice_number = $2
	`, tenantID, number))
}

func (s *PGStore) ListInvoices(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i
		JOIN orders o ON o.id = i.order_id
		WHERE i.tenant_id = $1
		ORDER BY i.created_at DESC, i.invoice_number
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Invoice, 0, limit)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (s *PGStore) UpdateInvoiceStatus(ctx context.Context, number string, from, to InvoiceStatus) (Invoice, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return Invoice{}, err
	}
	inv, err := scanInvoice(s.db.QueryRow(ctx, `
		UPDATE invoices i
		SET status = $3, updated_at = NOW()
		FROM orders o
		WHERE o.id = i.order_id AND i.tenant_id = $1 AND i.invoice_number = $2 AND i.status = $4
		RETURNING `+invoiceColumns,
		tenantID, number, string(to), string(from)))
	if errors.Is(err, ErrInvoiceNotFound) {
		return Invoice{}, ErrInvalidTransition
	}
	return inv, err
}

type pgTx struct {
	tx        pgx.Tx
	discounts discount.TxStore
}

func (t *pgTx) Discounts() discount.TxStore { return t.discounts }

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	result, err := json.Marshal(o.Pricing)
	if err != nil {
		return err
	}
	address := []byte(o.ShippingAddress)
	if len(address) == 0 {
		address = []byte("{}")
	}
	var code *string
	if o.DiscountCode != "" {
		code = &o.DiscountCode
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO orders (id, tenant_id, order_number, customer_name, customer_email, shipping_address, items,
			region, product_type, tax_mode, discount_code, subtotal, discount_amount, shipping, tax, total, pricing, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`, o.ID, tenantID, o.Number, o.CustomerName, o.CustomerEmail, address, items,
		o.Region, o.ProductType, string(o.TaxMode), code, int64(o.Subtotal), int64(o.DiscountAmount),
		int64(o.Shipping), int64(o.Tax), int64(o.Total), result, string(o.Status)).Scan(&o.CreatedAt, &o.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrNumberTaken
	}
	return err
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err = t.tx.QueryRow(ctx, `
		INSERT INTO invoices (id, tenant_id, order_id, invoice_number, amount, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, inv.ID, tenantID, inv.OrderID, inv.Number, int64(inv.Amount), string(inv.Status), inv.DueDate).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrNumberTaken
	}
	return err
}
