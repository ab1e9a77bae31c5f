package tax

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// ErrNotFound is returned when a rate or rule does not exist for the tenant.
var ErrNotFound = errors.New("tax: not found")

// RateInput carries the fields of a new tax rate.
type RateInput struct {
	Name   string
	Kind   pricing.RateKind
	Rate   decimal.Decimal
	Region string
}

// RatePatch carries optional rate updates; nil fields are left unchanged.
type RatePatch struct {
	Name   *string
	Kind   *pricing.RateKind
	Rate   *decimal.Decimal
	Region *string
	Active *bool
}

// RuleInput carries the fields of a new tax rule.
type RuleInput struct {
	Name       string
	Conditions []string
	TaxRateIDs []int64
	Priority   int
}

// Store persists tax rates and rules per tenant.
type Store interface {
	ListRates(ctx context.Context) ([]pricing.TaxRate, error)
	CreateRate(ctx context.Context, in RateInput) (pricing.TaxRate, error)
	UpdateRate(ctx context.Context, id int64, patch RatePatch) (pricing.TaxRate, error)
	DeleteRate(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]pricing.TaxRule, error)
	CreateRule(ctx context.Context, in RuleInput) (pricing.TaxRule, error)
	SetRuleActive(ctx context.Context, id int64, active bool) (pricing.TaxRule, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rateColumns = `id, name, kind, rate::text, region, is_active`

func scanRate(row pgx.Row) (pricing.TaxRate, error) {
	var (
		rt   pricing.TaxRate
		kind string
		rate string
	)
	if err := row.Scan(&rt.ID, &rt.Name, &kind, &rate, &rt.Region, &rt.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.TaxRate{}, ErrNotFound
		}
		return pricing.TaxRate{}, err
	}
	rt.Kind = pricing.RateKind(kind)
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return pricing.TaxRate{}, fmt.Errorf("tax: decode rate %d: %w", rt.ID, err)
	}
	rt.Rate = d
	return rt, nil
}

func (s *PGStore) ListRates(ctx context.Context) ([]pricing.TaxRate, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+rateColumns+`
		FROM tax_rates
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rates := make([]pricing.TaxRate, 0)
	for rows.Next() {
		rt, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		rates = append(rates, rt)
	}
	return rates, rows.Err()
}

func (s *PGStore) CreateRate(ctx context.Context, in RateInput) (pricing.TaxRate, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.TaxRate{}, err
	}
	return scanRate(s.db.QueryRow(ctx, `
		INSERT INTO tax_rates (tenant_id, name, kind, rate, region)
		VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING `+rateColumns,
		tenantID, in.Name, string(in.Kind), in.Rate.String(), in.Region,
	))
}

func (s *PGStore) UpdateRate(ctx context.Context, id int64, patch RatePatch) (pricing.TaxRate, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.TaxRate{}, err
	}
	sets := []string{"updated_at = NOW()"}
	args := []any{id, tenantID}
	add := func(column string, value any, cast string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", column, len(args), cast))
	}
	if patch.Name != nil {
		add("name", *patch.Name, "")
	}
	if patch.Kind != nil {
		add("kind", string(*patch.Kind), "")
	}
	if patch.Rate != nil {
		add("rate", patch.Rate.String(), "::numeric")
	}
	if patch.Region != nil {
		add("region", *patch.Region, "")
	}
	if patch.Active != nil {
		add("is_active", *patch.Active, "")
	}
	return scanRate(s.db.QueryRow(ctx, `
		UPDATE tax_rates SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+rateColumns,
		args...,
	))
}

func (s *PGStore) DeleteRate(ctx context.Context, id int64) error {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM tax_rates WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const ruleColumns = `id, name, conditions, tax_rate_ids, priority, is_active`

func scanRule(row pgx.Row) (pricing.TaxRule, error) {
	var (
		rule       pricing.TaxRule
		conditions []string
	)
	if err := row.Scan(&rule.ID, &rule.Name, &conditions, &rule.TaxRateIDs, &rule.Priority, &rule.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.TaxRule{}, ErrNotFound
		}
		return pricing.TaxRule{}, err
	}
	rule.Conditions = pricing.ParseConditions(conditions)
	if rule.TaxRateIDs == nil {
		rule.TaxRateIDs = []int64{}
	}
	return rule, nil
}

func (s *PGStore) ListRules(ctx context.Context) ([]pricing.TaxRule, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM tax_rules
		WHERE tenant_id = $1
		ORDER BY priority, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]pricing.TaxRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *PGStore) CreateRule(ctx context.Context, in RuleInput) (pricing.TaxRule, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.TaxRule{}, err
	}
	return scanRule(s.db.QueryRow(ctx, `
		INSERT INTO tax_rules (tenant_id, name, conditions, tax_rate_ids, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+ruleColumns,
		tenantID, in.Name, in.Conditions, in.TaxRateIDs, in.Priority,
	))
}

func (s *PGStore) SetRuleActive(ctx context.Context, id int64, active bool) (pricing.TaxRule, error) {
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return pricing.TaxRule{}, err
	}
	return scanRule(s.db.QueryRow(ctx, `
		UPDATE tax_rules SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+ruleColumns,
		id, tenantID, active,
	))
}
