package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountKind is the reduction a discount code grants.
type DiscountKind string

const (
	DiscountPercentage   DiscountKind = "percentage"
	DiscountFixed        DiscountKind = "fixed"
	DiscountFreeShipping DiscountKind = "free_shipping"
)

// Valid reports whether k is a known discount kind.
func (k DiscountKind) Valid() bool {
	switch k {
	case DiscountPercentage, DiscountFixed, DiscountFreeShipping:
		return true
	}
	return false
}

// Discount is a code-activated subtotal reduction with validity and usage constraints.
// MaxAmount of zero means the subtotal is not capped.
type Discount struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Code       string          `json:"code"`
	Kind       DiscountKind    `json:"type"`
	Value      decimal.Decimal `json:"value"`
	MinAmount  Money           `json:"minAmount"`
	MaxAmount  Money           `json:"maxAmount"`
	UsageLimit *int            `json:"usageLimit,omitempty"`
	UsageCount int             `json:"usageCount"`
	ValidFrom  time.Time       `json:"validFrom"`
	ValidUntil *time.Time      `json:"validUntil,omitempty"`
	Active     bool            `json:"isActive"`
}

// Validate reports the first failing applicability condition at instant now.
func (d Discount) Validate(now time.Time, subtotal Money) error {
	fail := func(reason DiscountReason) error {
		return &DiscountInapplicableError{Code: d.Code, Reason: reason}
	}
	if !d.Active {
		return fail(ReasonInactive)
	}
	if !d.ValidFrom.IsZero() && now.Before(d.ValidFrom) {
		return fail(ReasonNotYetValid)
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return fail(ReasonExpired)
	}
	if subtotal < d.MinAmount {
		return fail(ReasonBelowMinimum)
	}
	if d.MaxAmount > 0 && subtotal > d.MaxAmount {
		return fail(ReasonAboveMaximum)
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return fail(ReasonUsageExhausted)
	}
	return nil
}

// DiscountApplied records the outcome of a successfully applied discount.
type DiscountApplied struct {
	Code         string       `json:"code"`
	Kind         DiscountKind `json:"type"`
	Amount       Money        `json:"amount"`
	FreeShipping bool         `json:"freeShipping"`
}

// ApplyDiscount validates d against subtotal and computes the reduction.
// The amount never exceeds the subtotal.
func ApplyDiscount(subtotal Money, d Discount, now time.Time) (DiscountApplied, error) {
	if err := d.Validate(now, subtotal); err != nil {
		return DiscountApplied{}, err
	}
	out := DiscountApplied{Code: d.Code, Kind: d.Kind}
	switch d.Kind {
	case DiscountPercentage:
		out.Amount = percentOf(subtotal, d.Value).Min(subtotal)
	case DiscountFixed:
		out.Amount = FromDecimal(d.Value).Min(subtotal)
	case DiscountFreeShipping:
		out.FreeShipping = true
	default:
		return DiscountApplied{}, &DiscountInapplicableError{Code: d.Code, Reason: ReasonInvalidKind}
	}
	return out, nil
}

// NormalizeCode canonicalises a discount code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindDiscount returns the discount whose code matches, ignoring case and surrounding space.
func FindDiscount(discounts []Discount, code string) (Discount, bool) {
	want := NormalizeCode(code)
	for _, d := range discounts {
		if NormalizeCode(d.Code) == want {
			return d, true
		}
	}
	return Discount{}, false
}
