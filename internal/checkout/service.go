package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// SnapshotSource supplies the tenant's current tax rules and rates.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (pricing.Snapshot, error)
}

// DiscountFinder resolves a discount code with its live usage count.
type DiscountFinder interface {
	Find(ctx context.Context, code string) (pricing.Discount, bool, error)
}

// Request is the input of a combined quote.
type Request struct {
	Items        []pricing.LineItem
	Region       string
	ProductType  string
	DiscountCode string
	TaxMode      pricing.TaxMode
}

// Service prices carts against the tenant's stored rules and discounts.
type Service struct {
	Tax       SnapshotSource
	Discounts DiscountFinder
	Now       func() time.Time
}

// Quote computes the full pricing result. It performs reads only.
func (s *Service) Quote(ctx context.Context, req Request) (pricing.Result, error) {
	res, err := s.price(ctx, req)
	obs.ObserveQuote("checkout", err)
	return res, err
}

// Price is Quote for callers that record their own metrics, such as the
// order commit path.
func (s *Service) Price(ctx context.Context, req Request) (pricing.Result, error) {
	return s.price(ctx, req)
}

func (s *Service) price(ctx context.Context, req Request) (pricing.Result, error) {
	if err := pricing.ValidateItems(req.Items); err != nil {
		return pricing.Result{}, err
	}
	mode := req.TaxMode
	if mode == "" {
		mode = pricing.TaxModeCategory
	}
	var snap pricing.Snapshot
	if mode == pricing.TaxModeRules {
		var err error
		if snap, err = s.Tax.Snapshot(ctx); err != nil {
			return pricing.Result{}, err
		}
	}
	if code := strings.TrimSpace(req.DiscountCode); code != "" && s.Discounts != nil {
		d, ok, err := s.Discounts.Find(ctx, code)
		if err != nil {
			return pricing.Result{}, err
		}
		// An unknown code stays out of the snapshot and Price reports it as not_found.
		if ok {
			snap.Discounts = append(append([]pricing.Discount(nil), snap.Discounts...), d)
		}
	}
	return pricing.Price(req.Items, pricing.Context{
		Region:       req.Region,
		ProductType:  req.ProductType,
		DiscountCode: req.DiscountCode,
		TaxMode:      mode,
		Now:          s.now(),
	}, snap)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
