package tax_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/cache"
	"github.com/noah-isme/nefol-pricing/internal/events"
	"github.com/noah-isme/nefol-pricing/internal/lock"
	"github.com/noah-isme/nefol-pricing/internal/pricing"
	"github.com/noah-isme/nefol-pricing/internal/tax"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

type memStore struct {
	mu        sync.Mutex
	rates     []pricing.TaxRate
	rules     []pricing.TaxRule
	nextID    int64
	ruleLists int
}

func (m *memStore) ListRates(context.Context) ([]pricing.TaxRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pricing.TaxRate(nil), m.rates...), nil
}

func (m *memStore) CreateRate(_ context.Context, in tax.RateInput) (pricing.TaxRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rt := pricing.TaxRate{ID: m.nextID, Name: in.Name, Kind: in.Kind, Rate: in.Rate, Region: in.Region, Active: true}
	m.rates = append(m.rates, rt)
	return rt, nil
}

func (m *memStore) UpdateRate(_ context.Context, id int64, patch tax.RatePatch) (pricing.TaxRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rt := range m.rates {
		if rt.ID != id {
			continue
		}
		if patch.Active != nil {
			rt.Active = *patch.Active
		}
		if patch.Rate != nil {
			rt.Rate = *patch.Rate
		}
		m.rates[i] = rt
		return rt, nil
	}
	return pricing.TaxRate{}, tax.ErrNotFound
}

func (m *memStore) DeleteRate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rt := range m.rates {
		if rt.ID == id {
			m.rates = append(m.rates[:i], m.rates[i+1:]...)
			return nil
		}
	}
	return tax.ErrNotFound
}

func (m *memStore) ListRules(context.Context) ([]pricing.TaxRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleLists++
	out := append([]pricing.TaxRule(nil), m.rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *memStore) CreateRule(_ context.Context, in tax.RuleInput) (pricing.TaxRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rule := pricing.TaxRule{
		ID:         m.nextID,
		Name:       in.Name,
		Conditions: pricing.ParseConditions(in.Conditions),
		TaxRateIDs: in.TaxRateIDs,
		Priority:   in.Priority,
		Active:     true,
	}
	m.rules = append(m.rules, rule)
	return rule, nil
}

func (m *memStore) SetRuleActive(_ context.Context, id int64, active bool) (pricing.TaxRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, rule := range m.rules {
		if rule.ID == id {
			m.rules[i].Active = active
			return m.rules[i], nil
		}
	}
	return pricing.TaxRule{}, tax.ErrNotFound
}

func (m *memStore) listCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ruleLists
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) (events.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return events.Event{Type: topic}, nil
}

func newService(t *testing.T) (*tax.Service, *memStore, *recordingPublisher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := &memStore{}
	pub := &recordingPublisher{}
	svc := &tax.Service{
		Store:   store,
		Cache:   cache.New(client, time.Minute),
		Locker:  lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond, MaxWait: time.Second},
		LockTTL: time.Second,
		Events:  pub,
	}
	return svc, store, pub, mr
}

func tenantCtx() context.Context {
	return tenant.WithTenant(context.Background(), "nefol")
}

func seedGST(t *testing.T, svc *tax.Service) {
	t.Helper()
	ctx := tenantCtx()
	gst18, err := svc.CreateRate(ctx, tax.RateInput{Name: "GST 18%", Kind: pricing.RatePercentage, Rate: decimal.NewFromInt(18), Region: "IN"})
	require.NoError(t, err)
	gst5, err := svc.CreateRate(ctx, tax.RateInput{Name: "GST 5%", Kind: pricing.RatePercentage, Rate: decimal.NewFromInt(5), Region: "IN"})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, tax.RuleInput{Name: "face", Conditions: []string{"Country: IN", "Product Type: face"}, TaxRateIDs: []int64{gst18.ID}, Priority: 1})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, tax.RuleInput{Name: "india", Conditions: []string{"Country: IN"}, TaxRateIDs: []int64{gst5.ID}, Priority: 2})
	require.NoError(t, err)
}

func TestCalculateStopsAtFirstMatchingRule(t *testing.T) {
	svc, _, _, _ := newService(t)
	seedGST(t, svc)

	res, err := svc.Calculate(tenantCtx(), 100000, "IN", "face")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(18000), res.TotalTax)
	require.Equal(t, pricing.Money(118000), res.FinalAmount)
	require.Len(t, res.AppliedRates, 1)
	require.Equal(t, "GST 18%", res.AppliedRates[0].Name)
}

func TestCalculateWithoutMatchChargesNothing(t *testing.T) {
	svc, _, _, _ := newService(t)
	seedGST(t, svc)

	res, err := svc.Calculate(tenantCtx(), 100000, "US", "face")
	require.NoError(t, err)
	require.Zero(t, res.TotalTax)
	require.Nil(t, res.MatchedRule)
	require.Empty(t, res.AppliedRates)
}

func TestSnapshotIsCachedPerTenant(t *testing.T) {
	svc, store, _, mr := newService(t)
	seedGST(t, svc)
	ctx := tenantCtx()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	_, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, store.listCalls())
	require.True(t, mr.Exists("nefol:tax:snapshot"))
}

func TestMutationInvalidatesSnapshotAndPublishes(t *testing.T) {
	svc, _, pub, mr := newService(t)
	seedGST(t, svc)
	ctx := tenantCtx()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("nefol:tax:snapshot"))

	rule, err := svc.SetRuleActive(ctx, 3, false)
	require.NoError(t, err)
	require.False(t, rule.Active)
	require.False(t, mr.Exists("nefol:tax:snapshot"))

	res, err := svc.Calculate(ctx, 100000, "IN", "face")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(5000), res.TotalTax, "disabled rule must be skipped after invalidation")
	require.Contains(t, pub.topics, events.TopicTaxRuleUpdated)
	require.Contains(t, pub.topics, events.TopicTaxRateCreated)
}

func TestConcurrentMissesRebuildOnce(t *testing.T) {
	svc, store, _, _ := newService(t)
	seedGST(t, svc)
	ctx := tenantCtx()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Snapshot(ctx)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, store.listCalls())
}

func TestCreateRateRejectsUnknownKind(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.CreateRate(tenantCtx(), tax.RateInput{Name: "odd", Kind: "compound", Rate: decimal.NewFromInt(1), Region: "IN"})
	require.ErrorIs(t, err, tax.ErrInvalidRate)
}

func TestCreateRuleDefaultsPriority(t *testing.T) {
	svc, _, _, _ := newService(t)
	rule, err := svc.CreateRule(tenantCtx(), tax.RuleInput{Name: "any", Conditions: nil, TaxRateIDs: []int64{1}})
	require.NoError(t, err)
	require.Equal(t, 1, rule.Priority)
	require.Empty(t, rule.Conditions)

	_, err = svc.CreateRule(tenantCtx(), tax.RuleInput{Name: "empty"})
	require.ErrorIs(t, err, tax.ErrInvalidRule)
}
