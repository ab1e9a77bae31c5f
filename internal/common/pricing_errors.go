package common

import (
	"errors"
	"net/http"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// PricingError maps engine failures onto their API shape. Errors the engine
// does not own are returned unchanged.
func PricingError(err error) error {
	var line *pricing.InvalidLineItemError
	if errors.As(err, &line) {
		details := map[string]any{"index": line.Index, "reason": line.Reason}
		if line.SKU != "" {
			details["sku"] = line.SKU
		}
		return NewAppError("INVALID_LINE_ITEM", line.Error(), http.StatusBadRequest, err).WithDetails(details)
	}
	var disc *pricing.DiscountInapplicableError
	if errors.As(err, &disc) {
		return Unprocessable("DISCOUNT_INAPPLICABLE", "discount code cannot be applied", err).
			WithDetails(map[string]any{"code": disc.Code, "reason": disc.Reason})
	}
	if errors.Is(err, pricing.ErrUnknownTaxMode) {
		return BadRequest("taxMode must be category or rules", err)
	}
	return err
}
