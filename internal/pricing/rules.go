package pricing

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RateKind distinguishes percentage rates from flat charges.
type RateKind string

const (
	RatePercentage RateKind = "percentage"
	RateFixed      RateKind = "fixed"
)

// Valid reports whether k is a known rate kind.
func (k RateKind) Valid() bool {
	return k == RatePercentage || k == RateFixed
}

// TaxRate is a named percentage or fixed charge.
type TaxRate struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Kind   RateKind        `json:"type"`
	Rate   decimal.Decimal `json:"rate"`
	Region string          `json:"region"`
	Active bool            `json:"isActive"`
}

// ConditionKind tags a parsed rule predicate.
type ConditionKind string

const (
	ConditionRegion      ConditionKind = "region"
	ConditionProductType ConditionKind = "product_type"
	ConditionOpaque      ConditionKind = "opaque"
)

const (
	regionMarker      = "Country:"
	productTypeMarker = "Product Type:"
)

// Condition is a rule predicate such as "Country: IN". The raw text is kept
// because matching is substring containment against the whole predicate.
type Condition struct {
	Kind ConditionKind
	Raw  string
}

// ParseCondition tags a raw predicate by the marker it mentions.
// A predicate mentioning both markers is tagged by the region marker but
// Matches still checks both.
func ParseCondition(raw string) Condition {
	switch {
	case strings.Contains(raw, regionMarker):
		return Condition{Kind: ConditionRegion, Raw: raw}
	case strings.Contains(raw, productTypeMarker):
		return Condition{Kind: ConditionProductType, Raw: raw}
	default:
		return Condition{Kind: ConditionOpaque, Raw: raw}
	}
}

// Matches applies case-sensitive substring containment of the request value in
// the raw predicate. Opaque predicates are always satisfied. An empty value is
// contained in every predicate, so a missing region or product type does not
// exclude a rule.
func (c Condition) Matches(region, productType string) bool {
	if strings.Contains(c.Raw, regionMarker) && !strings.Contains(c.Raw, region) {
		return false
	}
	if strings.Contains(c.Raw, productTypeMarker) && !strings.Contains(c.Raw, productType) {
		return false
	}
	return true
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Raw)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ParseCondition(raw)
	return nil
}

// ParseConditions tags every raw predicate.
func ParseConditions(raw []string) []Condition {
	out := make([]Condition, 0, len(raw))
	for _, r := range raw {
		out = append(out, ParseCondition(r))
	}
	return out
}

// TaxRule selects which rates apply when all of its conditions match.
type TaxRule struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	TaxRateIDs []int64     `json:"taxRateIds"`
	Priority   int         `json:"priority"`
	Active     bool        `json:"isActive"`
}

// Matches reports whether every condition of the rule is satisfied.
func (r TaxRule) Matches(region, productType string) bool {
	for _, c := range r.Conditions {
		if !c.Matches(region, productType) {
			return false
		}
	}
	return true
}

// AppliedRate is one rate charged by the matched rule.
type AppliedRate struct {
	RateID int64           `json:"id"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Kind   RateKind        `json:"kind"`
	Amount Money           `json:"amount"`
}

// MatchedRule identifies the rule that won evaluation.
type MatchedRule struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// RuleTax is the result of the calculator path.
type RuleTax struct {
	OriginalAmount Money         `json:"originalAmount"`
	TotalTax       Money         `json:"totalTax"`
	FinalAmount    Money         `json:"finalAmount"`
	AppliedRates   []AppliedRate `json:"appliedRates"`
	MatchedRule    *MatchedRule  `json:"matchedRule,omitempty"`
}

// OrderRules returns the active rules sorted by ascending priority, ties by id.
// The input slice is not modified.
func OrderRules(rules []TaxRule) []TaxRule {
	active := make([]TaxRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// ResolveRuleBasedTax evaluates rules in order and charges the rates of the
// first one that matches. No match yields zero tax.
func ResolveRuleBasedTax(amount Money, region, productType string, rules []TaxRule, rates []TaxRate) RuleTax {
	if amount < 0 {
		amount = 0
	}
	out := RuleTax{OriginalAmount: amount, FinalAmount: amount, AppliedRates: []AppliedRate{}}

	byID := make(map[int64]TaxRate, len(rates))
	for _, rt := range rates {
		if rt.Active {
			byID[rt.ID] = rt
		}
	}

	for _, rule := range OrderRules(rules) {
		if !rule.Matches(region, productType) {
			continue
		}
		for _, id := range rule.TaxRateIDs {
			rt, ok := byID[id]
			if !ok {
				continue
			}
			charge := rateCharge(amount, rt)
			out.TotalTax += charge
			out.AppliedRates = append(out.AppliedRates, AppliedRate{
				RateID: rt.ID,
				Name:   rt.Name,
				Rate:   rt.Rate,
				Kind:   rt.Kind,
				Amount: charge,
			})
		}
		out.MatchedRule = &MatchedRule{ID: rule.ID, Name: rule.Name, Priority: rule.Priority}
		break
	}

	out.FinalAmount = amount + out.TotalTax
	return out
}

func rateCharge(amount Money, rt TaxRate) Money {
	if rt.Kind == RatePercentage {
		return percentOf(amount, rt.Rate)
	}
	return FromDecimal(rt.Rate)
}
