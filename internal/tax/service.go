package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/cache"
	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/lock"
	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

var (
	// ErrInvalidRate flags a rate payload the engine could not evaluate.
	ErrInvalidRate = errors.New("tax: invalid rate")
	// ErrInvalidRule flags a rule payload the engine could not evaluate.
	ErrInvalidRule = errors.New("tax: invalid rule")
)

// Locker serialises snapshot rebuilds across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service owns tax rate and rule administration and serves the read-only
// snapshot the pricing engine evaluates.
type Service struct {
	Store   Store
	Cache   *cache.JSON
	Locker  Locker
	LockTTL time.Duration
	Events  events.Publisher
}

// Snapshot returns the tenant's rules and rates. A cache miss rebuilds the
// snapshot under a lock so concurrent misses hit Postgres once; if the lock
// cannot be taken the snapshot is read straight from the store.
func (s *Service) Snapshot(ctx context.Context) (pricing.Snapshot, error) {
	key := cache.KeyTaxSnapshot(ctx)
	var snap pricing.Snapshot
	hit, err := s.Cache.Get(ctx, key, &snap)
	switch {
	case err != nil:
		obs.ObserveSnapshotCache("error")
		zerolog.Ctx(ctx).Warn().Err(err).Msg("tax snapshot cache read failed")
	case hit:
		obs.ObserveSnapshotCache("hit")
		return snap, nil
	default:
		obs.ObserveSnapshotCache("miss")
	}

	if s.Locker == nil {
		return s.rebuild(ctx, key)
	}
	err = s.Locker.WithLock(ctx, lock.Key(ctx, "tax:snapshot"), s.LockTTL, func(ctx context.Context) error {
		if hit, _ := s.Cache.Get(ctx, key, &snap); hit {
			return nil
		}
		snap, err = s.rebuild(ctx, key)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return s.load(ctx)
	}
	if err != nil {
		return pricing.Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) rebuild(ctx context.Context, key string) (pricing.Snapshot, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return pricing.Snapshot{}, err
	}
	if err := s.Cache.Set(ctx, key, snap); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("tax snapshot cache write failed")
	}
	return snap, nil
}

func (s *Service) load(ctx context.Context) (pricing.Snapshot, error) {
	rules, err := s.Store.ListRules(ctx)
	if err != nil {
		return pricing.Snapshot{}, fmt.Errorf("tax: list rules: %w", err)
	}
	rates, err := s.Store.ListRates(ctx)
	if err != nil {
		return pricing.Snapshot{}, fmt.Errorf("tax: list rates: %w", err)
	}
	return pricing.Snapshot{Rules: rules, Rates: rates}, nil
}

// Invalidate drops the tenant's cached snapshot.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.Cache.Delete(ctx, cache.KeyTaxSnapshot(ctx)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("tax snapshot invalidation failed")
	}
}

// Calculate runs the rule-based path for amount against the tenant snapshot.
func (s *Service) Calculate(ctx context.Context, amount pricing.Money, region, productType string) (pricing.RuleTax, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		obs.ObserveQuote("calculator", err)
		return pricing.RuleTax{}, err
	}
	res := pricing.ResolveRuleBasedTax(amount, region, productType, snap.Rules, snap.Rates)
	obs.ObserveRuleMatch(res.MatchedRule != nil)
	obs.ObserveQuote("calculator", nil)
	return res, nil
}

// ListRates returns every rate of the tenant, newest first.
func (s *Service) ListRates(ctx context.Context) ([]pricing.TaxRate, error) {
	return s.Store.ListRates(ctx)
}

// CreateRate validates and stores a new active rate.
func (s *Service) CreateRate(ctx context.Context, in RateInput) (pricing.TaxRate, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Region = strings.TrimSpace(in.Region)
	if err := validateRate(in.Kind, in.Rate); err != nil {
		return pricing.TaxRate{}, err
	}
	rt, err := s.Store.CreateRate(ctx, in)
	if err != nil {
		return pricing.TaxRate{}, err
	}
	s.changed(ctx, events.TopicTaxRateCreated, rt)
	return rt, nil
}

// UpdateRate applies a partial update, including activation toggles.
func (s *Service) UpdateRate(ctx context.Context, id int64, patch RatePatch) (pricing.TaxRate, error) {
	if patch.Kind != nil || patch.Rate != nil {
		kind := pricing.RatePercentage
		if patch.Kind != nil {
			kind = *patch.Kind
		}
		rate := decimal.Zero
		if patch.Rate != nil {
			rate = *patch.Rate
		}
		if err := validateRate(kind, rate); err != nil {
			return pricing.TaxRate{}, err
		}
	}
	rt, err := s.Store.UpdateRate(ctx, id, patch)
	if err != nil {
		return pricing.TaxRate{}, err
	}
	s.changed(ctx, events.TopicTaxRateUpdated, rt)
	return rt, nil
}

// DeleteRate removes a rate. Rules still naming it simply skip it.
func (s *Service) DeleteRate(ctx context.Context, id int64) error {
	if err := s.Store.DeleteRate(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, events.TopicTaxRateDeleted, map[string]int64{"id": id})
	return nil
}

// ListRules returns every rule of the tenant in evaluation order.
func (s *Service) ListRules(ctx context.Context) ([]pricing.TaxRule, error) {
	return s.Store.ListRules(ctx)
}

// CreateRule stores a new active rule. Priority defaults to 1.
func (s *Service) CreateRule(ctx context.Context, in RuleInput) (pricing.TaxRule, error) {
	in.Name = strings.TrimSpace(in.Name)
	if len(in.TaxRateIDs) == 0 {
		return pricing.TaxRule{}, fmt.Errorf("%w: at least one tax rate is required", ErrInvalidRule)
	}
	if in.Conditions == nil {
		in.Conditions = []string{}
	}
	if in.Priority == 0 {
		in.Priority = 1
	}
	rule, err := s.Store.CreateRule(ctx, in)
	if err != nil {
		return pricing.TaxRule{}, err
	}
	s.changed(ctx, events.TopicTaxRuleCreated, rule)
	return rule, nil
}

// SetRuleActive toggles whether a rule takes part in evaluation.
func (s *Service) SetRuleActive(ctx context.Context, id int64, active bool) (pricing.TaxRule, error) {
	rule, err := s.Store.SetRuleActive(ctx, id, active)
	if err != nil {
		return pricing.TaxRule{}, err
	}
	s.changed(ctx, events.TopicTaxRuleUpdated, rule)
	return rule, nil
}

func (s *Service) changed(ctx context.Context, topic string, payload any) {
	s.Invalidate(ctx)
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Publish(ctx, topic, payload); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("publish tax change")
	}
}

func validateRate(kind pricing.RateKind, rate decimal.Decimal) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: type must be percentage or fixed", ErrInvalidRate)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidRate)
	}
	return nil
}
