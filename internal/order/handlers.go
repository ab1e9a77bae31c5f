package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Handler serves the storefront order endpoints.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	CustomerName    string             `json:"customerName" validate:"required,max=200"`
	CustomerEmail   string             `json:"customerEmail" validate:"required,email"`
	ShippingAddress json.RawMessage    `json:"shippingAddress" validate:"required"`
	Items           []pricing.LineItem `json:"items" validate:"required,min=1"`
	Region          string             `json:"region"`
	ProductType     string             `json:"productType"`
	DiscountCode    string             `json:"discountCode" validate:"omitempty,max=64"`
	TaxMode         string             `json:"taxMode"`
	Shipping        pricing.Money      `json:"shipping" validate:"gte=0"`
}

// Create handles POST /api/v1/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if !json.Valid(req.ShippingAddress) || req.ShippingAddress[0] != '{' {
		common.WriteError(w, r, common.BadRequest("shippingAddress must be an object", nil))
		return
	}
	mode, err := pricing.ParseTaxMode(req.TaxMode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := h.Svc.Create(r.Context(), CreateInput{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		ShippingAddress: req.ShippingAddress,
		Items:           req.Items,
		Region:          req.Region,
		ProductType:     req.ProductType,
		DiscountCode:    req.DiscountCode,
		TaxMode:         mode,
		Shipping:        req.Shipping,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+receipt.Order.Number)
	common.Data(w, http.StatusCreated, receipt)
}

// Get handles GET /api/v1/orders/{number}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Svc.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, r, common.NotFound("order", err))
	case errors.Is(err, ErrInvoiceNotFound):
		common.WriteError(w, r, common.NotFound("invoice", err))
	case errors.Is(err, ErrInvalidTransition):
		common.WriteError(w, r, common.NewAppError("INVALID_STATE", err.Error(), http.StatusConflict, err))
	case errors.Is(err, ErrPriceChanged):
		common.WriteError(w, r, common.Conflict("discount changed, request a new quote", err))
	default:
		common.WriteError(w, r, common.PricingError(err))
	}
}
