package tax

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Handler exposes the tax calculator and the tax administration endpoints.
type Handler struct {
	Svc *Service
}

type calculateRequest struct {
	Amount      pricing.Money `json:"amount" validate:"gt=0"`
	Region      string        `json:"region" validate:"required"`
	ProductType string        `json:"productType" validate:"required"`
}

type calculateResponse struct {
	OriginalAmount pricing.Money        `json:"originalAmount"`
	TotalTax       pricing.Money        `json:"totalTax"`
	FinalAmount    pricing.Money        `json:"finalAmount"`
	AppliedRates   []appliedRateView    `json:"appliedRates"`
	MatchedRule    *pricing.MatchedRule `json:"matchedRule,omitempty"`
}

type appliedRateView struct {
	Name   string           `json:"name"`
	Rate   decimal.Decimal  `json:"rate"`
	Kind   pricing.RateKind `json:"kind"`
	Amount pricing.Money    `json:"amount"`
}

// Calculate handles POST /api/v1/tax/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.Svc.Calculate(r.Context(), req.Amount, req.Region, req.ProductType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := calculateResponse{
		OriginalAmount: res.OriginalAmount,
		TotalTax:       res.TotalTax,
		FinalAmount:    res.FinalAmount,
		AppliedRates:   make([]appliedRateView, 0, len(res.AppliedRates)),
		MatchedRule:    res.MatchedRule,
	}
	for _, ar := range res.AppliedRates {
		out.AppliedRates = append(out.AppliedRates, appliedRateView{Name: ar.Name, Rate: ar.Rate, Kind: ar.Kind, Amount: ar.Amount})
	}
	common.JSON(w, http.StatusOK, out)
}

type rateRequest struct {
	Name   string          `json:"name" validate:"required"`
	Rate   decimal.Decimal `json:"rate"`
	Type   string          `json:"type" validate:"required,oneof=percentage fixed"`
	Region string          `json:"region" validate:"required"`
}

type ratePatchRequest struct {
	Name     *string          `json:"name" validate:"omitempty,min=1"`
	Rate     *decimal.Decimal `json:"rate"`
	Type     *string          `json:"type" validate:"omitempty,oneof=percentage fixed"`
	Region   *string          `json:"region" validate:"omitempty,min=1"`
	IsActive *bool            `json:"isActive"`
}

type activeRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type ruleRequest struct {
	Name       string   `json:"name" validate:"required"`
	Conditions []string `json:"conditions" validate:"required"`
	TaxRateIDs []int64  `json:"taxRateIds" validate:"required,min=1,dive,gt=0"`
	Priority   int      `json:"priority" validate:"gte=0"`
}

// ListRates handles GET /api/v1/admin/tax/rates.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Svc.ListRates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, rates)
}

// CreateRate handles POST /api/v1/admin/tax/rates.
func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	rt, err := h.Svc.CreateRate(r.Context(), RateInput{
		Name:   req.Name,
		Kind:   pricing.RateKind(req.Type),
		Rate:   req.Rate,
		Region: req.Region,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, rt)
}

// UpdateRate handles PUT /api/v1/admin/tax/rates/{id}.
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ratePatchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	patch := RatePatch{Name: req.Name, Rate: req.Rate, Region: req.Region, Active: req.IsActive}
	if req.Type != nil {
		kind := pricing.RateKind(*req.Type)
		patch.Kind = &kind
	}
	rt, err := h.Svc.UpdateRate(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, rt)
}

// SetRateActive handles PATCH /api/v1/admin/tax/rates/{id}.
func (h *Handler) SetRateActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	rt, err := h.Svc.UpdateRate(r.Context(), id, RatePatch{Active: req.IsActive})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, rt)
}

// DeleteRate handles DELETE /api/v1/admin/tax/rates/{id}.
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.DeleteRate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRules handles GET /api/v1/admin/tax/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Svc.ListRules(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, rules)
}

// CreateRule handles POST /api/v1/admin/tax/rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	rule, err := h.Svc.CreateRule(r.Context(), RuleInput{
		Name:       req.Name,
		Conditions: req.Conditions,
		TaxRateIDs: req.TaxRateIDs,
		Priority:   req.Priority,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, rule)
}

// SetRuleActive handles PATCH /api/v1/admin/tax/rules/{id}.
func (h *Handler) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	rule, err := h.Svc.SetRuleActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, rule)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, r, common.NotFound("tax entry", err))
	case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidRule):
		common.WriteError(w, r, common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, err))
	default:
		common.WriteError(w, r, err)
	}
}
