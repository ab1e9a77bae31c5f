package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxMode selects which tax path a combined quote uses.
type TaxMode string

const (
	TaxModeCategory TaxMode = "category"
	TaxModeRules    TaxMode = "rules"
)

// ParseTaxMode maps an empty value to the category path.
func ParseTaxMode(raw string) (TaxMode, error) {
	switch TaxMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TaxModeCategory:
		return TaxModeCategory, nil
	case TaxModeRules:
		return TaxModeRules, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTaxMode, raw)
}

// Context carries the request-specific inputs of a quote. Now is explicit so
// repeated evaluations with the same inputs are identical.
type Context struct {
	Region       string
	ProductType  string
	DiscountCode string
	TaxMode      TaxMode
	Now          time.Time
}

// Snapshot is a point-in-time, read-only view of administrator-managed state.
type Snapshot struct {
	Rules     []TaxRule  `json:"rules"`
	Rates     []TaxRate  `json:"rates"`
	Discounts []Discount `json:"discounts,omitempty"`
}

// TaxLine is one charge in a combined quote.
type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Kind   RateKind        `json:"kind"`
	Amount Money           `json:"amount"`
}

// Result is a complete, internally consistent quote.
type Result struct {
	Subtotal        Money            `json:"subtotal"`
	DiscountApplied *DiscountApplied `json:"discountApplied,omitempty"`
	TaxApplied      []TaxLine        `json:"taxApplied"`
	TotalTax        Money            `json:"totalTax"`
	Total           Money            `json:"total"`
	TaxMode         TaxMode          `json:"taxMode"`
	MatchedRule     *MatchedRule     `json:"matchedRule,omitempty"`
}

// DiscountAmount returns the applied reduction or zero.
func (r Result) DiscountAmount() Money {
	if r.DiscountApplied == nil {
		return 0
	}
	return r.DiscountApplied.Amount
}

// FreeShipping reports whether the applied discount waives shipping.
func (r Result) FreeShipping() bool {
	return r.DiscountApplied != nil && r.DiscountApplied.FreeShipping
}

// Price computes a quote. Tax is charged on the pre-discount subtotal and
// total = subtotal - discount + tax. The snapshot is never modified.
func Price(items []LineItem, ctx Context, snap Snapshot) (Result, error) {
	mode := ctx.TaxMode
	if mode == "" {
		mode = TaxModeCategory
	}
	subtotal, err := ComputeSubtotal(items)
	if err != nil {
		return Result{}, err
	}
	res := Result{Subtotal: subtotal, TaxMode: mode, TaxApplied: []TaxLine{}}

	if strings.TrimSpace(ctx.DiscountCode) != "" {
		d, ok := FindDiscount(snap.Discounts, ctx.DiscountCode)
		if !ok {
			return Result{}, &DiscountInapplicableError{Code: NormalizeCode(ctx.DiscountCode), Reason: ReasonNotFound}
		}
		applied, err := ApplyDiscount(subtotal, d, ctx.Now)
		if err != nil {
			return Result{}, err
		}
		res.DiscountApplied = &applied
	}

	switch mode {
	case TaxModeCategory:
		cat, err := ResolveCategoryTax(items)
		if err != nil {
			return Result{}, err
		}
		res.TotalTax = cat.Tax
		res.TaxApplied = groupCategoryTax(cat.Lines)
	case TaxModeRules:
		rt := ResolveRuleBasedTax(subtotal, ctx.Region, ctx.ProductType, snap.Rules, snap.Rates)
		res.TotalTax = rt.TotalTax
		res.MatchedRule = rt.MatchedRule
		for _, ar := range rt.AppliedRates {
			res.TaxApplied = append(res.TaxApplied, TaxLine{Name: ar.Name, Rate: ar.Rate, Kind: ar.Kind, Amount: ar.Amount})
		}
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTaxMode, mode)
	}

	res.Total = res.Subtotal - res.DiscountAmount() + res.TotalTax
	return res, nil
}

// groupCategoryTax folds per-line taxes into one line per rate. Amounts are
// rounded per group from the exact line taxes.
func groupCategoryTax(lines []LineTax) []TaxLine {
	type bucket struct {
		rate  decimal.Decimal
		exact decimal.Decimal
	}
	groups := map[string]*bucket{}
	for _, l := range lines {
		key := l.RatePercent.String()
		b, ok := groups[key]
		if !ok {
			b = &bucket{rate: l.RatePercent, exact: decimal.Zero}
			groups[key] = b
		}
		b.exact = b.exact.Add(l.LineTotal.Decimal().Mul(l.RatePercent).Div(hundred))
	}
	out := make([]TaxLine, 0, len(groups))
	for _, b := range groups {
		out = append(out, TaxLine{
			Name:   "GST " + b.rate.String() + "%",
			Rate:   b.rate,
			Kind:   RatePercentage,
			Amount: FromDecimal(b.exact),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rate.LessThan(out[j].Rate) })
	return out
}
