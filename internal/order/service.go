package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nefol-pricing/internal/checkout"
	"github.com/noah-isme/nefol-pricing/internal/discount"
	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// ErrPriceChanged is returned when the discount changed between pricing and
// the locked re-validation.
var ErrPriceChanged = errors.New("order: discount changed during checkout")

const (
	defaultInvoiceDueDays = 30
	maxNumberAttempts     = 3
)

// Pricer computes the quote an order snapshots.
type Pricer interface {
	Price(ctx context.Context, req checkout.Request) (pricing.Result, error)
}

// DiscountRedeemer re-validates and records a discount inside the commit.
type DiscountRedeemer interface {
	Redeem(ctx context.Context, tx discount.TxStore, in discount.RedeemInput) (pricing.DiscountApplied, error)
}

// LoyaltyCrediter schedules the customer's loyalty credit for a committed order.
type LoyaltyCrediter interface {
	CreditOrder(ctx context.Context, orderNumber, email, name string, total pricing.Money) error
}

// CreateInput is a storefront checkout submission.
type CreateInput struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress json.RawMessage
	Items           []pricing.LineItem
	Region          string
	ProductType     string
	DiscountCode    string
	TaxMode         pricing.TaxMode
	Shipping        pricing.Money
}

// Service commits priced orders with their invoice.
type Service struct {
	Store          Store
	Pricer         Pricer
	Discounts      DiscountRedeemer
	Events         events.Publisher
	Loyalty        LoyaltyCrediter
	InvoiceDueDays int
	Now            func() time.Time
	NewNumber      func() (string, error)
}

// Create prices the submission, then stores the order, its invoice and the
// discount usage in one transaction. Notifications and the loyalty credit
// follow the commit and never fail the request.
func (s *Service) Create(ctx context.Context, in CreateInput) (Receipt, error) {
	in.DiscountCode = pricing.NormalizeCode(in.DiscountCode)
	res, err := s.Pricer.Price(ctx, checkout.Request{
		Items:        in.Items,
		Region:       in.Region,
		ProductType:  in.ProductType,
		DiscountCode: in.DiscountCode,
		TaxMode:      in.TaxMode,
	})
	if err != nil {
		obs.ObserveQuote("order", err)
		return Receipt{}, err
	}

	var receipt Receipt
	for attempt := 1; ; attempt++ {
		receipt, err = s.commit(ctx, in, res)
		if !errors.Is(err, ErrNumberTaken) || attempt == maxNumberAttempts {
			break
		}
		zerolog.Ctx(ctx).Warn().Int("attempt", attempt).Msg("order number collision, retrying")
	}
	obs.ObserveQuote("order", err)
	if err != nil {
		return Receipt{}, err
	}
	obs.ObserveOrderCommitted()
	s.afterCommit(ctx, receipt)
	return receipt, nil
}

func (s *Service) commit(ctx context.Context, in CreateInput, res pricing.Result) (Receipt, error) {
	number, err := s.newNumber()
	if err != nil {
		return Receipt{}, err
	}
	now := s.now()
	invoiceNumber, err := NewInvoiceNumber(now)
	if err != nil {
		return Receipt{}, err
	}

	shipping := in.Shipping
	if res.FreeShipping() {
		shipping = 0
	}
	o := Order{
		ID:              uuid.New(),
		Number:          number,
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		ShippingAddress: in.ShippingAddress,
		Items:           in.Items,
		Region:          in.Region,
		ProductType:     in.ProductType,
		TaxMode:         res.TaxMode,
		DiscountCode:    in.DiscountCode,
		Subtotal:        res.Subtotal,
		DiscountAmount:  res.DiscountAmount(),
		Shipping:        shipping,
		Tax:             res.TotalTax,
		Total:           res.Total + shipping,
		Pricing:         res,
		Status:          StatusPending,
	}
	inv := Invoice{
		ID:          uuid.New(),
		Number:      invoiceNumber,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Amount:      o.Total,
		Status:      InvoiceUnpaid,
		DueDate:     now.AddDate(0, 0, s.dueDays()),
	}

	err = s.Store.InTx(ctx, func(tx Tx) error {
		if res.DiscountApplied != nil {
			applied, err := s.Discounts.Redeem(ctx, tx.Discounts(), discount.RedeemInput{
				Code:          in.DiscountCode,
				Subtotal:      res.Subtotal,
				OrderNumber:   o.Number,
				CustomerEmail: o.CustomerEmail,
			})
			if errors.Is(err, discount.ErrAlreadyRedeemed) {
				return ErrNumberTaken
			}
			if err != nil {
				return err
			}
			if applied != *res.DiscountApplied {
				return ErrPriceChanged
			}
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		return tx.InsertInvoice(ctx, &inv)
	})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Order: o, Invoice: inv}, nil
}

func (s *Service) afterCommit(ctx context.Context, r Receipt) {
	log := zerolog.Ctx(ctx)
	if s.Events != nil {
		if _, err := s.Events.Publish(ctx, events.TopicOrderCreated, r.Order); err != nil {
			log.Warn().Err(err).Str("order_number", r.Order.Number).Msg("publish order created")
		}
		if _, err := s.Events.Publish(ctx, events.TopicInvoiceCreated, r.Invoice); err != nil {
			log.Warn().Err(err).Str("invoice_number", r.Invoice.Number).Msg("publish invoice created")
		}
	}
	if s.Loyalty != nil {
		if err := s.Loyalty.CreditOrder(ctx, r.Order.Number, r.Order.CustomerEmail, r.Order.CustomerName, r.Order.Total); err != nil {
			log.Error().Err(err).Str("order_number", r.Order.Number).Msg("enqueue loyalty credit")
		}
	}
}

// Get returns the stored snapshot of an order.
func (s *Service) Get(ctx context.Context, number string) (Order, error) {
	return s.Store.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

// List returns a page of the tenant's orders, newest first, and the total count.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Order, int, error) {
	return s.Store.List(ctx, limit, offset)
}

// UpdateStatus moves an order along its fulfilment states. Pricing fields are
// never touched.
func (s *Service) UpdateStatus(ctx context.Context, number string, target Status) (Order, error) {
	current, err := s.Get(ctx, number)
	if err != nil {
		return Order{}, err
	}
	if !current.Status.CanTransition(target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
	}
	updated, err := s.Store.UpdateStatus(ctx, current.Number, current.Status, target)
	if err != nil {
		return Order{}, err
	}
	if s.Events != nil {
		if _, err := s.Events.Publish(ctx, events.TopicOrderUpdated, updated); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("order_number", updated.Number).Msg("publish order updated")
		}
	}
	return updated, nil
}

// ListInvoices returns a page of the tenant's invoices, newest first, and the
// total count.
func (s *Service) ListInvoices(ctx context.Context, limit, offset int) ([]Invoice, int, error) {
	return s.Store.ListInvoices(ctx, limit, offset)
}

// UpdateInvoiceStatus moves an invoice along its billing states. The amount
// and due date are never touched.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, number string, target InvoiceStatus) (Invoice, error) {
	current, err := s.Store.GetInvoice(ctx, strings.ToUpper(strings.TrimSpace(number)))
	if err != nil {
		return Invoice{}, err
	}
	if !current.Status.CanTransition(target) {
		return Invoice{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, target)
	}
	updated, err := s.Store.UpdateInvoiceStatus(ctx, current.Number, current.Status, target)
	if err != nil {
		return Invoice{}, err
	}
	if s.Events != nil {
		if _, err := s.Events.Publish(ctx, events.TopicInvoiceUpdated, updated); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("invoice_number", updated.Number).Msg("publish invoice updated")
		}
	}
	return updated, nil
}

func (s *Service) newNumber() (string, error) {
	if s.NewNumber != nil {
		return s.NewNumber()
	}
	return NewOrderNumber()
}

func (s *Service) dueDays() int {
	if s.InvoiceDueDays > 0 {
		return s.InvoiceDueDays
	}
	return defaultInvoiceDueDays
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
