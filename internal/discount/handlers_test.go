package discount_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/discount"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

func newRouter(svc *discount.Service) http.Handler {
	h := &discount.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), "nefol")))
		})
	})
	r.Get("/admin/discounts", h.List)
	r.Post("/admin/discounts", h.Create)
	r.Get("/admin/discounts/{id}/usage", h.Usage)
	r.Post("/admin/discounts/preview", h.Preview)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDiscountAdminFlow(t *testing.T) {
	svc, _, _ := newService()
	h := newRouter(svc)

	rr := do(t, h, http.MethodPost, "/admin/discounts", `{"name":"Ten off","code":"ten","type":"percentage","value":10,"usageLimit":5}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/admin/discounts", `{"name":"Again","code":"TEN","type":"fixed","value":10}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodGet, "/admin/discounts/1/usage", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var usage struct {
		Data struct {
			Used      int `json:"used"`
			Remaining int `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usage))
	require.Equal(t, 0, usage.Data.Used)
	require.Equal(t, 5, usage.Data.Remaining)

	rr = do(t, h, http.MethodPost, "/admin/discounts/preview", `{"code":"ten","subtotal":999.99}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"code":"TEN","type":"percentage","amount":100.00,"freeShipping":false}}`, rr.Body.String())
}

func TestPreviewRejectionIsUnprocessable(t *testing.T) {
	svc, _, _ := newService()
	h := newRouter(svc)

	rr := do(t, h, http.MethodPost, "/admin/discounts", `{"name":"Big","code":"BIG","type":"fixed","value":100,"minAmount":1000}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, h, http.MethodPost, "/admin/discounts/preview", `{"code":"BIG","subtotal":500}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), `"reason":"below_minimum"`)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc, _, _ := newService()
	rr := do(t, newRouter(svc), http.MethodPost, "/admin/discounts", `{"name":"x","code":"X","type":"bogus","value":1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestUsageUnknownID(t *testing.T) {
	svc, _, _ := newService()
	rr := do(t, newRouter(svc), http.MethodGet, "/admin/discounts/42/usage", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}
