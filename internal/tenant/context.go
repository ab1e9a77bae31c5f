package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrTenantMissing indicates the tenant identifier was not found in context.
var ErrTenantMissing = errors.New("tenant missing")

type contextKey struct{}

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext extracts the tenant identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, ok := ctx.Value(contextKey{}).(string)
	if !ok {
		return "", false
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", false
	}
	return tenantID, true
}

// MustFrom returns the tenant in ctx or ErrTenantMissing. Stores call it before every query.
func MustFrom(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", ErrTenantMissing
	}
	return id, nil
}

// PrefixKey namespaces a cache, lock or channel key per tenant.
func PrefixKey(tenantID, key string) string {
	if tenantID == "" {
		return key
	}
	return tenantID + ":" + key
}

// Key namespaces key with the tenant found in ctx, if any.
func Key(ctx context.Context, key string) string {
	id, _ := FromContext(ctx)
	return PrefixKey(id, key)
}

// Normalize lower-cases and trims a tenant identifier.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Valid reports whether id is a usable slug: 1-63 chars of [a-z0-9-], not
// starting or ending with a dash.
func Valid(id string) bool {
	if id == "" || len(id) > 63 || id[0] == '-' || id[len(id)-1] == '-' {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return false
	}
	return true
}
