package cart

import (
	"net/http"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Handler exposes the cart quote endpoint.
type Handler struct {
	Svc Service
}

type quoteRequest struct {
	Items []pricing.LineItem `json:"items" validate:"required"`
}

// Quote handles POST /api/v1/cart/quote. The response is the bare
// {subtotal, tax, total, lines} object the storefront cart reads.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.Svc.Quote(r.Context(), req.Items)
	if err != nil {
		common.WriteError(w, r, common.PricingError(err))
		return
	}
	common.JSON(w, http.StatusOK, res)
}
