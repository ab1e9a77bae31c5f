package pricing_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]pricing.Money{
		"₹599":      59900,
		"₹1,299.50": 129950,
		"INR 45.5":  4550,
		"10.005":    1001,
		"0.125":     13,
		"abc":       0,
		"":          0,
		".":         0,
		"1.2.3":     0,
	}
	for raw, want := range cases {
		require.Equal(t, want, pricing.ParsePrice(raw), "input %q", raw)
	}
}

func TestFromDecimalRejectsNegative(t *testing.T) {
	require.Equal(t, pricing.Money(0), pricing.FromDecimal(decimal.NewFromInt(-3)))
	require.Equal(t, pricing.Money(250), pricing.FromDecimal(decimal.RequireFromString("2.5")))
}

func TestMoneyJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Total pricing.Money `json:"total"`
	}{Total: 21000})
	require.NoError(t, err)
	require.JSONEq(t, `{"total":210.00}`, string(out))

	var in struct {
		A pricing.Money `json:"a"`
		B pricing.Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":199.99,"b":"₹50"}`), &in))
	require.Equal(t, pricing.Money(19999), in.A)
	require.Equal(t, pricing.Money(5000), in.B)

	var neg pricing.Money
	require.Error(t, json.Unmarshal([]byte(`-1`), &neg))
}
