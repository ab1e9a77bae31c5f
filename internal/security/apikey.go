package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/nefol-pricing/internal/common"
)

// AdminKey guards the admin API with a shared secret sent as X-Admin-Key or
// as a bearer token. An empty Key rejects every request.
type AdminKey struct {
	Key string
}

// Middleware rejects requests that do not present the configured key.
func (a AdminKey) Middleware(next http.Handler) http.Handler {
	expected := []byte(strings.TrimSpace(a.Key))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(expected) == 0 {
			common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin api is not configured", nil)
			return
		}
		presented := presentedKey(r)
		if presented == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "invalid admin key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-Admin-Key")); key != "" {
		return key
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
