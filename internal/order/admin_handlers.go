package order

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/nefol-pricing/internal/common"
)

// AdminHandler provides administrative order endpoints.
type AdminHandler struct {
	Svc *Service
}

type patchStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=paid shipped delivered cancelled"`
}

type patchInvoiceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=sent paid overdue cancelled"`
}

// List handles GET /api/v1/admin/orders.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Svc.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page.TotalItems = total
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": page,
	})
}

// PatchStatus handles PATCH /api/v1/admin/orders/{number}/status with
// forward-only state validation.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	var req patchStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "number"), Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, o)
}

// ListInvoices handles GET /api/v1/admin/invoices.
func (h *AdminHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, 20, 100)
	invoices, total, err := h.Svc.ListInvoices(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		writeError(w, r, err)
		return
	}
	page.TotalItems = total
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       invoices,
		"pagination": page,
	})
}

// PatchInvoiceStatus handles PATCH /api/v1/admin/invoices/{number}/status.
func (h *AdminHandler) PatchInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req patchInvoiceStatusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	inv, err := h.Svc.UpdateInvoiceStatus(r.Context(), chi.URLParam(r, "number"), InvoiceStatus(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, inv)
}
