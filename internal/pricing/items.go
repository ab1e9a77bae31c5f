package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one product/quantity pair as it arrives from the storefront cart.
type LineItem struct {
	SKU       string `json:"sku"`
	Title     string `json:"title"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Category  string `json:"category"`
}

// LineTotal is the parsed unit price multiplied by quantity. Callers validate
// the line first so the product stays within MaxAmount.
func (it LineItem) LineTotal() Money {
	return ParsePrice(it.UnitPrice).Times(it.Quantity)
}

// Category tax rates, expressed in percent.
var (
	HairRatePercent     = decimal.NewFromInt(5)
	StandardRatePercent = decimal.NewFromInt(18)
)

const hairMarker = "hair"

// CategoryRatePercent returns the flat rate applied to a product category.
func CategoryRatePercent(category string) decimal.Decimal {
	if strings.Contains(strings.ToLower(category), hairMarker) {
		return HairRatePercent
	}
	return StandardRatePercent
}

// LineTax is the per-line breakdown of the category path.
type LineTax struct {
	SKU         string          `json:"sku"`
	Category    string          `json:"category"`
	LineTotal   Money           `json:"lineTotal"`
	RatePercent decimal.Decimal `json:"ratePercent"`
	Tax         Money           `json:"tax"`
}

// CategoryTax is the result of the category flat-rate path.
type CategoryTax struct {
	Subtotal Money     `json:"subtotal"`
	Tax      Money     `json:"tax"`
	Total    Money     `json:"total"`
	Lines    []LineTax `json:"lines"`
}

// MaxQuantity bounds the quantity of a single line.
const MaxQuantity = 10_000

// ValidateItems fails fast on the first line without a positive quantity or
// without any price string. A present but unparsable price counts as zero.
// Lines and their running sum must stay within MaxAmount.
func ValidateItems(items []LineItem) error {
	var subtotal Money
	for i, it := range items {
		if it.Quantity <= 0 {
			return &InvalidLineItemError{Index: i, SKU: it.SKU, Reason: "quantity must be positive"}
		}
		if it.Quantity > MaxQuantity {
			return &InvalidLineItemError{Index: i, SKU: it.SKU, Reason: fmt.Sprintf("quantity exceeds %d", MaxQuantity)}
		}
		if strings.TrimSpace(it.UnitPrice) == "" {
			return &InvalidLineItemError{Index: i, SKU: it.SKU, Reason: "unit price is missing"}
		}
		price := ParsePrice(it.UnitPrice)
		if price > MaxAmount/Money(it.Quantity) {
			return &InvalidLineItemError{Index: i, SKU: it.SKU, Reason: "line total out of range"}
		}
		line := price.Times(it.Quantity)
		if subtotal > MaxAmount-line {
			return &InvalidLineItemError{Index: i, SKU: it.SKU, Reason: "subtotal out of range"}
		}
		subtotal += line
	}
	return nil
}

// ComputeSubtotal sums parsed unit price × quantity over all lines.
// An empty list is a zero subtotal.
func ComputeSubtotal(items []LineItem) (Money, error) {
	if err := ValidateItems(items); err != nil {
		return 0, err
	}
	var subtotal Money
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	return subtotal, nil
}

// ResolveCategoryTax applies 5% to hair categories and 18% to everything else.
// Line taxes are accumulated unrounded; the total is rounded half-up once.
// The per-line breakdown shows each line's tax rounded on its own.
func ResolveCategoryTax(items []LineItem) (CategoryTax, error) {
	subtotal, err := ComputeSubtotal(items)
	if err != nil {
		return CategoryTax{}, err
	}
	out := CategoryTax{Subtotal: subtotal, Lines: make([]LineTax, 0, len(items))}
	sum := decimal.Zero
	for _, it := range items {
		lineTotal := it.LineTotal()
		rate := CategoryRatePercent(it.Category)
		exact := lineTotal.Decimal().Mul(rate).Div(hundred)
		sum = sum.Add(exact)
		out.Lines = append(out.Lines, LineTax{
			SKU:         it.SKU,
			Category:    it.Category,
			LineTotal:   lineTotal,
			RatePercent: rate,
			Tax:         FromDecimal(exact),
		})
	}
	out.Tax = FromDecimal(sum)
	out.Total = out.Subtotal + out.Tax
	return out, nil
}
