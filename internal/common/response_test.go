package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/common"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

type errorEnvelope struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestWriteErrorMapsAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	common.WriteError(rr, req, common.NotFound("order", errors.New("no rows")))

	require.Equal(t, http.StatusNotFound, rr.Code)
	env := decodeError(t, rr)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
	require.Equal(t, "order not found", env.Error.Message)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	common.WriteError(rr, req, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	env := decodeError(t, rr)
	require.Equal(t, "INTERNAL", env.Error.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestDataEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	common.Data(rr, http.StatusOK, map[string]string{"hello": "world"})
	require.JSONEq(t, `{"data":{"hello":"world"}}`, rr.Body.String())
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

type quotePayload struct {
	Region string `json:"region" validate:"required"`
	Items  []struct {
		SKU      string `json:"sku" validate:"required"`
		Quantity int    `json:"quantity" validate:"gte=1"`
	} `json:"items" validate:"required,min=1,dive"`
}

func TestDecodeJSONReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"items":[{"sku":"","quantity":0}]}`))
	var payload quotePayload
	err := common.DecodeJSON(req, &payload)

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	fields, ok := appErr.Details.([]common.FieldError)
	require.True(t, ok)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	require.ElementsMatch(t, []string{"region", "items[0].sku", "items[0].quantity"}, names)
}

func TestDecodeJSONRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var payload quotePayload
	err := common.DecodeJSON(req, &payload)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, "request body is required", appErr.Message)
}

func TestParsePaginationCapsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	p := common.ParsePagination(req, 20, 100)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 100, p.PerPage)
	require.Equal(t, 200, p.Offset())
}

func TestWriteErrorMapsPricingFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, nil, common.PricingError(&pricing.DiscountInapplicableError{Code: "SAVE10", Reason: pricing.ReasonExpired}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "DISCOUNT_INAPPLICABLE", body.Error.Code)
	require.Equal(t, "expired", body.Error.Details["reason"])

	rec = httptest.NewRecorder()
	common.WriteError(rec, nil, common.PricingError(&pricing.InvalidLineItemError{Index: 2, Reason: "quantity must be positive"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_LINE_ITEM", body.Error.Code)
	require.EqualValues(t, 2, body.Error.Details["index"])
}

func TestClientIPUsesPeerAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:41000"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.Header.Set("X-Real-IP", "10.0.0.2")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))

	req.RemoteAddr = "203.0.113.10"
	require.Equal(t, "203.0.113.10", common.ClientIP(req))
}
