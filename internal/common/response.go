package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
)

// ErrorBody represents a consistent error payload returned by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data wraps v in the standard {"data": ...} envelope.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteError renders err using its AppError shape when present. Anything else
// is logged through the request logger and reported as an opaque 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		if status >= http.StatusInternalServerError {
			logFor(r).Error().Err(err).Str("code", code).Msg("request failed")
		}
		JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	logFor(r).Error().Err(err).Msg("unhandled error")
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

func logFor(r *http.Request) *zerolog.Logger {
	if r == nil {
		l := zerolog.Nop()
		return &l
	}
	return zerolog.Ctx(r.Context())
}
