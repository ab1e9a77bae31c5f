package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units (paise).
type Money int64

const minorDigits = 2

// MaxAmount is the largest subtotal the engine prices (10^15 rupees).
const MaxAmount Money = 100_000_000_000_000_000

var (
	hundred = decimal.NewFromInt(100)
	// maxMajor bounds parsed amounts so the minor-unit conversion cannot overflow int64.
	maxMajor = decimal.New(1, 15)
)

// ParsePrice normalises a display price such as "₹1,299.50" into Money.
// Everything except digits and '.' is stripped; anything that still does not
// parse as a non-negative decimal becomes zero.
func ParsePrice(raw string) Money {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" || cleaned == "." {
		return 0
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	return FromDecimal(d)
}

// FromDecimal converts a major-unit decimal to Money, rounding half-up to two places.
// Negative or out of range values coerce to zero.
func FromDecimal(d decimal.Decimal) Money {
	if d.IsNegative() || d.GreaterThanOrEqual(maxMajor) {
		return 0
	}
	return Money(d.Shift(minorDigits).Round(0).IntPart())
}

// Decimal returns the major-unit value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorDigits)
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(minorDigits)
}

// Times multiplies by a quantity.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if other < m {
		return other
	}
	return m
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number in major units or a display price string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*m = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		*m = ParsePrice(strings.Trim(raw, `"`))
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return errors.New("pricing: amount must not be negative")
	}
	*m = FromDecimal(d)
	return nil
}

// percentOf returns base × pct / 100 rounded half-up.
func percentOf(base Money, pct decimal.Decimal) Money {
	return FromDecimal(base.Decimal().Mul(pct).Div(hundred))
}
