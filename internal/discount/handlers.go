package discount

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Handler exposes discount administration over HTTP.
type Handler struct {
	Svc *Service
}

type createRequest struct {
	Name       string          `json:"name" validate:"required"`
	Code       string          `json:"code" validate:"required,max=64"`
	Type       string          `json:"type" validate:"required,oneof=percentage fixed free_shipping"`
	Value      decimal.Decimal `json:"value"`
	MinAmount  pricing.Money   `json:"minAmount" validate:"gte=0"`
	MaxAmount  pricing.Money   `json:"maxAmount" validate:"gte=0"`
	UsageLimit *int            `json:"usageLimit" validate:"omitempty,gte=0"`
	ValidFrom  *time.Time      `json:"validFrom"`
	ValidUntil *time.Time      `json:"validUntil"`
}

type previewRequest struct {
	Code     string        `json:"code" validate:"required"`
	Subtotal pricing.Money `json:"subtotal" validate:"gte=0"`
}

// List handles GET /api/v1/admin/discounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Create handles POST /api/v1/admin/discounts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	in := CreateInput{
		Name:       req.Name,
		Code:       req.Code,
		Kind:       pricing.DiscountKind(req.Type),
		Value:      req.Value,
		MinAmount:  req.MinAmount,
		MaxAmount:  req.MaxAmount,
		UsageLimit: req.UsageLimit,
		ValidUntil: req.ValidUntil,
	}
	if req.ValidFrom != nil {
		in.ValidFrom = *req.ValidFrom
	}
	d, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, d)
}

// Usage handles GET /api/v1/admin/discounts/{id}/usage.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.WriteError(w, r, common.BadRequest("invalid id", err))
		return
	}
	u, err := h.Svc.Usage(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, u)
}

// Preview handles POST /api/v1/admin/discounts/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	applied, err := h.Svc.Preview(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, applied)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, r, common.NotFound("discount", err))
	case errors.Is(err, ErrCodeTaken):
		common.WriteError(w, r, common.Conflict("discount code already exists", err))
	case errors.Is(err, ErrInvalidDiscount):
		common.WriteError(w, r, common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err))
	default:
		common.WriteError(w, r, common.PricingError(err))
	}
}
