package cart_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/cart"
)

func quote(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := &cart.Handler{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/quote", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Quote(rr, req)
	return rr
}

func TestCartQuoteSplitsCategories(t *testing.T) {
	rr := quote(t, `{"items":[
		{"sku":"HO-1","title":"Hair Oil","unitPrice":"₹100","quantity":2,"category":"Hair Oil"},
		{"sku":"FS-1","title":"Face Serum","unitPrice":"₹599","quantity":1,"category":"Face Serum"}
	]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{
		"subtotal": 799.00,
		"tax": 117.82,
		"total": 916.82,
		"lines": [
			{"sku":"HO-1","category":"Hair Oil","lineTotal":200.00,"ratePercent":"5","tax":10.00},
			{"sku":"FS-1","category":"Face Serum","lineTotal":599.00,"ratePercent":"18","tax":107.82}
		]
	}`, rr.Body.String())
}

func TestCartQuoteEmpty(t *testing.T) {
	rr := quote(t, `{"items":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"subtotal":0.00,"tax":0.00,"total":0.00,"lines":[]}`, rr.Body.String())
}

func TestCartQuoteRejectsBadQuantity(t *testing.T) {
	rr := quote(t, `{"items":[{"sku":"HO-1","unitPrice":"100","quantity":1,"category":"Hair"},{"sku":"X","unitPrice":"10","quantity":-1,"category":"Face"}]}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"index":1`)
	require.Contains(t, rr.Body.String(), `"sku":"X"`)
}

func TestCartQuoteRequiresItems(t *testing.T) {
	rr := quote(t, `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")
}
