package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/db"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

var (
	// ErrNotFound is returned when no discount carries the code or id.
	ErrNotFound = errors.New("discount: not found")
	// ErrCodeTaken is returned when the tenant already has a discount with the code.
	ErrCodeTaken = errors.New("discount: code already exists")
	// ErrAlreadyRedeemed is returned when an order number already recorded usage.
	ErrAlreadyRedeemed = errors.New("discount: order already redeemed a discount")
)

// CreateInput carries the fields of a new discount.
type CreateInput struct {
	Name       string
	Code       string
	Kind       pricing.DiscountKind
	Value      decimal.Decimal
	MinAmount  pricing.Money
	MaxAmount  pricing.Money
	UsageLimit *int
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// UsageRecord is one redemption written on the commit path.
type UsageRecord struct {
	DiscountID    int64
	OrderNumber   string
	CustomerEmail string
	Amount        pricing.Money
}

// Store reads and writes discounts outside of a transaction.
type Store interface {
	List(ctx context.Context) ([]pricing.Discount, error)
	GetByCode(ctx context.Context, code string) (pricing.Discount, error)
	GetByID(ctx context.Context, id int64) (pricing.Discount, error)
	Create(ctx context.Context, in CreateInput) (pricing.Discount, error)
}

// TxStore is the slice of the store used inside the order commit transaction.
type TxStore interface {
	LockByCode(ctx context.Context, code string) (pricing.Discount, error)
	InsertUsage(ctx context.Context, u UsageRecord) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

// InTx binds the transactional operations to tx.
func (s *PGStore) InTx(tx pgx.Tx) TxStore {
	return &pgTxStore{tx: tx}
}

const discountColumns = `
	d.id, d.name, d.code, d.kind, d.value::text, d.min_amount, d.max_amount,
	d.usage_limit, d.valid_from, d.valid_until, d.is_active,
	(SELECT COUNT(*) FROM discount_usage u WHERE u.discount_id = d.id)`

func scanDiscount(row pgx.Row) (pricing.Discount, error) {
	var (
		d          pricing.Discount
		kind       string
		value      string
		usageLimit *int32
		usageCount int64
	)
	err := row.Scan(&d.ID, &d.Name, &d.Code, &kind, &value, &d.MinAmount, &d.MaxAmount,
		&usageLimit, &d.ValidFrom, &d.ValidUntil, &d.Active, &usageCount)
	if err != nil {
		if db.IsNotFound(err) {
			return pricing.Discount{}, ErrNotFound
		}
		return pricing.Discount{}, err
	}
	d.Kind = pricing.DiscountKind(kind)
	if d.Value, err = decimal.NewFromString(value); err != nil {
		return pricing.Discount{}, fmt.Errorf("discount: decode value %d: %w", d.ID, err)
	}
	if usageLimit != nil {
		limit := int(*usageLimit)
		d.UsageLimit = &limit
	}
	d.UsageCount = int(usageCount)
	return d, nil
}

func getByCode(ctx context.Context, q querier, code string, forUpdate bool) (pricing.Discount, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.Discount{}, err
	}
	sql := `SELECT ` + discountColumns + `
		FROM discounts d
		WHERE d.tenant_id = $1 AND d.code = $2`
	if forUpdate {
		sql += ` FOR UPDATE OF d`
	}
	return scanDiscount(q.QueryRow(ctx, sql, tenantID, pricing.NormalizeCode(code)))
}

func (s *PGStore) List(ctx context.Context) ([]pricing.Discount, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+discountColumns+`
		FROM discounts d
		WHERE d.tenant_id = $1
		ORDER BY d.created_at DESC, d.id DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pricing.Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) GetByCode(ctx context.Context, code string) (pricing.Discount, error) {
	return getByCode(ctx, s.db, code, false)
}

func (s *PGStore) GetByID(ctx context.Context, id int64) (pricing.Discount, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.Discount{}, err
	}
	return scanDiscount(s.db.QueryRow(ctx, `
		SELECT `+discountColumns+`
		FROM discounts d
		WHERE d.tenant_id = $1 AND d.id = $2
	`, tenantID, id))
}

func (s *PGStore) Create(ctx context.Context, in CreateInput) (pricing.Discount, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.Discount{}, err
	}
	var usageLimit *int32
	if in.UsageLimit != nil {
		limit := int32(*in.UsageLimit)
		usageLimit = &limit
	}
	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO discounts (tenant_id, name, code, kind, value, min_amount, max_amount, usage_limit, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10)
		RETURNING id
	`, tenantID, in.Name, in.Code, string(in.Kind), in.Value.String(), int64(in.MinAmount), int64(in.MaxAmount),
		usageLimit, in.ValidFrom, in.ValidUntil).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return pricing.Discount{}, ErrCodeTaken
		}
		return pricing.Discount{}, err
	}
	return s.GetByID(ctx, id)
}

type pgTxStore struct {
	tx pgx.Tx
}

// LockByCode takes a row lock on the discount so concurrent redemptions
// serialise, then recounts usage in a fresh statement. The recount must not
// share the locking statement's snapshot or it would miss usage committed by
// the transaction that held the lock before us.
func (s *pgTxStore) LockByCode(ctx context.Context, code string) (pricing.Discount, error) {
	d, err := getByCode(ctx, s.tx, code, true)
	if err != nil {
		return pricing.Discount{}, err
	}
	var used int64
	if err := s.tx.QueryRow(ctx, `SELECT COUNT(*) FROM discount_usage WHERE discount_id = $1`, d.ID).Scan(&used); err != nil {
		return pricing.Discount{}, err
	}
	d.UsageCount = int(used)
	return d, nil
}

func (s *pgTxStore) InsertUsage(ctx context.Context, u UsageRecord) error {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, `
		INSERT INTO discount_usage (tenant_id, discount_id, order_number, customer_email, amount)
		VALUES ($1, $2, $3, $4, $5)
	`, tenantID, u.DiscountID, u.OrderNumber, u.CustomerEmail, int64(u.Amount))
	if db.IsUniqueViolation(err) {
		return ErrAlreadyRedeemed
	}
	return err
}
