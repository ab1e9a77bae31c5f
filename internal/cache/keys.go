package cache

import (
	"context"

	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// KeyTaxSnapshot returns the per-tenant key of the cached rules and rates.
func KeyTaxSnapshot(ctx context.Context) string {
	return tenant.Key(ctx, "tax:snapshot")
}
