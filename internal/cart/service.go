package cart

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Service prices storefront carts on the category path. It holds no state.
type Service struct{}

// Quote applies the flat category rates to items.
func (Service) Quote(ctx context.Context, items []pricing.LineItem) (pricing.CategoryTax, error) {
	res, err := pricing.ResolveCategoryTax(items)
	obs.ObserveQuote("cart", err)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Int("lines", len(items)).Msg("cart quote rejected")
		return pricing.CategoryTax{}, err
	}
	return res, nil
}
