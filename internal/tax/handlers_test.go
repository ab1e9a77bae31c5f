package tax_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/tax"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

func newRouter(svc *tax.Service) http.Handler {
	h := &tax.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), "nefol")))
		})
	})
	r.Post("/tax/calculate", h.Calculate)
	r.Get("/admin/tax/rates", h.ListRates)
	r.Post("/admin/tax/rates", h.CreateRate)
	r.Patch("/admin/tax/rates/{id}", h.SetRateActive)
	r.Delete("/admin/tax/rates/{id}", h.DeleteRate)
	r.Post("/admin/tax/rules", h.CreateRule)
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

func TestCalculateEndpointContract(t *testing.T) {
	svc, _, _, _ := newService(t)
	seedGST(t, svc)
	router := newRouter(svc)

	rr := do(t, router, http.MethodPost, "/tax/calculate", `{"amount":1000,"region":"IN","productType":"face"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		OriginalAmount float64 `json:"originalAmount"`
		TotalTax       float64 `json:"totalTax"`
		FinalAmount    float64 `json:"finalAmount"`
		AppliedRates   []struct {
			Name   string  `json:"name"`
			Rate   string  `json:"rate"`
			Kind   string  `json:"kind"`
			Amount float64 `json:"amount"`
		} `json:"appliedRates"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 1000.0, body.OriginalAmount)
	require.Equal(t, 180.0, body.TotalTax)
	require.Equal(t, 1180.0, body.FinalAmount)
	require.Len(t, body.AppliedRates, 1)
	require.Equal(t, "percentage", body.AppliedRates[0].Kind)
	require.Equal(t, "18", body.AppliedRates[0].Rate)
}

func TestCalculateEndpointValidates(t *testing.T) {
	svc, _, _, _ := newService(t)
	rr := do(t, newRouter(svc), http.MethodPost, "/tax/calculate", `{"amount":0,"region":""}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}

func TestRateAdminLifecycle(t *testing.T) {
	svc, _, _, _ := newService(t)
	router := newRouter(svc)

	rr := do(t, router, http.MethodPost, "/admin/tax/rates", `{"name":"GST 12%","rate":12,"type":"percentage","region":"IN"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"isActive":true`)

	rr = do(t, router, http.MethodPatch, "/admin/tax/rates/1", `{"isActive":false}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"isActive":false`)

	rr = do(t, router, http.MethodDelete, "/admin/tax/rates/1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, http.MethodDelete, "/admin/tax/rates/1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodPost, "/admin/tax/rates", `{"name":"bad","rate":1,"type":"compound","region":"IN"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRuleRequiresRateIDs(t *testing.T) {
	svc, _, _, _ := newService(t)
	rr := do(t, newRouter(svc), http.MethodPost, "/admin/tax/rules", `{"name":"r","conditions":["Country: IN"],"taxRateIds":[]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
