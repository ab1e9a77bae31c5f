package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// ErrInvalidDiscount flags a create payload the engine could not apply.
var ErrInvalidDiscount = errors.New("discount: invalid discount")

// DefaultMaxAmount is the subtotal cap given to discounts created without one (₹999999).
const DefaultMaxAmount pricing.Money = 99_999_900

var hundred = decimal.NewFromInt(100)

// Usage summarises how often a discount has been redeemed.
type Usage struct {
	DiscountID int64  `json:"discountId"`
	Code       string `json:"code"`
	Used       int    `json:"used"`
	Limit      *int   `json:"usageLimit,omitempty"`
	Remaining  *int   `json:"remaining,omitempty"`
}

// RedeemInput identifies a redemption on the commit path.
type RedeemInput struct {
	Code          string
	Subtotal      pricing.Money
	OrderNumber   string
	CustomerEmail string
}

// Service encapsulates discount administration and redemption.
type Service struct {
	Store  Store
	Events events.Publisher
	Now    func() time.Time
}

// List returns every discount of the tenant with live usage counts.
func (s *Service) List(ctx context.Context) ([]pricing.Discount, error) {
	return s.Store.List(ctx)
}

// Lookup returns the discount carrying code with its live usage count.
func (s *Service) Lookup(ctx context.Context, code string) (pricing.Discount, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return pricing.Discount{}, ErrNotFound
	}
	return s.Store.GetByCode(ctx, code)
}

// Find is Lookup with an unknown code reported as ok=false.
func (s *Service) Find(ctx context.Context, code string) (pricing.Discount, bool, error) {
	d, err := s.Lookup(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return pricing.Discount{}, false, nil
	}
	if err != nil {
		return pricing.Discount{}, false, err
	}
	return d, true, nil
}

// Create validates and stores a new active discount.
func (s *Service) Create(ctx context.Context, in CreateInput) (pricing.Discount, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = pricing.NormalizeCode(in.Code)
	if in.MaxAmount == 0 {
		in.MaxAmount = DefaultMaxAmount
	}
	if in.ValidFrom.IsZero() {
		in.ValidFrom = s.now()
	}
	if err := validateCreate(in); err != nil {
		return pricing.Discount{}, err
	}
	d, err := s.Store.Create(ctx, in)
	if err != nil {
		return pricing.Discount{}, err
	}
	if s.Events != nil {
		if _, err := s.Events.Publish(ctx, events.TopicDiscountCreated, d); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("publish discount created")
		}
	}
	return d, nil
}

// Usage reports redemptions of the discount with the given id.
func (s *Service) Usage(ctx context.Context, id int64) (Usage, error) {
	d, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{DiscountID: d.ID, Code: d.Code, Used: d.UsageCount, Limit: d.UsageLimit}
	if d.UsageLimit != nil {
		remaining := max(*d.UsageLimit-d.UsageCount, 0)
		u.Remaining = &remaining
	}
	return u, nil
}

// Preview dry-runs the discount against subtotal without recording usage.
func (s *Service) Preview(ctx context.Context, code string, subtotal pricing.Money) (pricing.DiscountApplied, error) {
	d, err := s.Lookup(ctx, code)
	if errors.Is(err, ErrNotFound) {
		err = &pricing.DiscountInapplicableError{Code: pricing.NormalizeCode(code), Reason: pricing.ReasonNotFound}
	}
	if err != nil {
		observeRejection(err)
		return pricing.DiscountApplied{}, err
	}
	applied, err := pricing.ApplyDiscount(subtotal, d, s.now())
	observeRejection(err)
	return applied, err
}

// Redeem re-validates the discount under a row lock inside the caller's
// transaction and records usage. A failing re-validation aborts the caller
// with DiscountInapplicable.
func (s *Service) Redeem(ctx context.Context, tx TxStore, in RedeemInput) (pricing.DiscountApplied, error) {
	code := pricing.NormalizeCode(in.Code)
	d, err := tx.LockByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		err = &pricing.DiscountInapplicableError{Code: code, Reason: pricing.ReasonNotFound}
	}
	if err != nil {
		observeRejection(err)
		return pricing.DiscountApplied{}, err
	}
	applied, err := pricing.ApplyDiscount(in.Subtotal, d, s.now())
	if err != nil {
		observeRejection(err)
		return pricing.DiscountApplied{}, err
	}
	if err := tx.InsertUsage(ctx, UsageRecord{
		DiscountID:    d.ID,
		OrderNumber:   in.OrderNumber,
		CustomerEmail: in.CustomerEmail,
		Amount:        applied.Amount,
	}); err != nil {
		return pricing.DiscountApplied{}, fmt.Errorf("discount: record usage: %w", err)
	}
	return applied, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func observeRejection(err error) {
	if reason, ok := pricing.DiscountReasonOf(err); ok {
		obs.ObserveDiscountRejection(string(reason))
	}
}

func validateCreate(in CreateInput) error {
	fail := func(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidDiscount, msg) }
	switch {
	case in.Name == "":
		return fail("name is required")
	case in.Code == "":
		return fail("code is required")
	case !in.Kind.Valid():
		return fail("type must be percentage, fixed or free_shipping")
	case in.Value.IsNegative():
		return fail("value must not be negative")
	case in.Kind == pricing.DiscountPercentage && in.Value.GreaterThan(hundred):
		return fail("percentage value must not exceed 100")
	case in.MinAmount < 0 || in.MaxAmount < 0:
		return fail("amount bounds must not be negative")
	case in.MinAmount > in.MaxAmount:
		return fail("minAmount must not exceed maxAmount")
	case in.UsageLimit != nil && *in.UsageLimit < 0:
		return fail("usageLimit must not be negative")
	case in.ValidUntil != nil && in.ValidUntil.Before(in.ValidFrom):
		return fail("validUntil must not precede validFrom")
	}
	return nil
}
