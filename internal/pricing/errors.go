package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLineItem is matched by every InvalidLineItemError.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrDiscountInapplicable is matched by every DiscountInapplicableError.
	ErrDiscountInapplicable = errors.New("discount inapplicable")
	// ErrUnknownTaxMode is returned when a quote names a tax path that does not exist.
	ErrUnknownTaxMode = errors.New("unknown tax mode")
)

// InvalidLineItemError identifies the offending line of a pricing request.
type InvalidLineItemError struct {
	Index  int
	SKU    string
	Reason string
}

func (e *InvalidLineItemError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Index, e.SKU, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Index, e.Reason)
}

// Is reports ErrInvalidLineItem equivalence.
func (e *InvalidLineItemError) Is(target error) bool {
	return target == ErrInvalidLineItem
}

// DiscountReason names the first validation condition a discount failed.
type DiscountReason string

const (
	ReasonNotFound       DiscountReason = "not_found"
	ReasonInactive       DiscountReason = "inactive"
	ReasonNotYetValid    DiscountReason = "not_yet_valid"
	ReasonExpired        DiscountReason = "expired"
	ReasonBelowMinimum   DiscountReason = "below_minimum"
	ReasonAboveMaximum   DiscountReason = "above_maximum"
	ReasonUsageExhausted DiscountReason = "usage_exhausted"
	ReasonInvalidKind    DiscountReason = "invalid_kind"
)

// DiscountInapplicableError carries the code and the failing condition.
type DiscountInapplicableError struct {
	Code   string
	Reason DiscountReason
}

func (e *DiscountInapplicableError) Error() string {
	return fmt.Sprintf("discount %q inapplicable: %s", e.Code, e.Reason)
}

// Is reports ErrDiscountInapplicable equivalence.
func (e *DiscountInapplicableError) Is(target error) bool {
	return target == ErrDiscountInapplicable
}

// DiscountReasonOf extracts the failing condition from err, if any.
func DiscountReasonOf(err error) (DiscountReason, bool) {
	var target *DiscountInapplicableError
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}
