package checkout

import (
	"net/http"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Handler serves the combined checkout quote.
type Handler struct {
	Svc *Service
}

type quoteRequest struct {
	Items        []pricing.LineItem `json:"items" validate:"required"`
	Region       string             `json:"region"`
	ProductType  string             `json:"productType"`
	DiscountCode string             `json:"discountCode" validate:"omitempty,max=64"`
	TaxMode      string             `json:"taxMode"`
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	mode, err := pricing.ParseTaxMode(req.TaxMode)
	if err != nil {
		common.WriteError(w, r, common.PricingError(err))
		return
	}
	res, err := h.Svc.Quote(r.Context(), Request{
		Items:        req.Items,
		Region:       req.Region,
		ProductType:  req.ProductType,
		DiscountCode: req.DiscountCode,
		TaxMode:      mode,
	})
	if err != nil {
		common.WriteError(w, r, common.PricingError(err))
		return
	}
	common.Data(w, http.StatusOK, res)
}
