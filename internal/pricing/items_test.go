package pricing_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

func TestComputeSubtotalEmpty(t *testing.T) {
	subtotal, err := pricing.ComputeSubtotal(nil)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), subtotal)
}

func TestComputeSubtotalUnparsablePrice(t *testing.T) {
	items := []pricing.LineItem{
		{SKU: "a", UnitPrice: "abc", Quantity: 3, Category: "Face Serum"},
		{SKU: "b", UnitPrice: "₹250", Quantity: 2, Category: "Face Serum"},
	}
	subtotal, err := pricing.ComputeSubtotal(items)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(50000), subtotal)
}

func TestComputeSubtotalRejectsBadLines(t *testing.T) {
	_, err := pricing.ComputeSubtotal([]pricing.LineItem{
		{SKU: "ok", UnitPrice: "₹10", Quantity: 1},
		{SKU: "zero", UnitPrice: "₹10", Quantity: 0},
	})
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)
	var lineErr *pricing.InvalidLineItemError
	require.True(t, errors.As(err, &lineErr))
	require.Equal(t, 1, lineErr.Index)
	require.Equal(t, "zero", lineErr.SKU)

	_, err = pricing.ComputeSubtotal([]pricing.LineItem{{SKU: "neg", UnitPrice: "₹10", Quantity: -2}})
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)

	_, err = pricing.ComputeSubtotal([]pricing.LineItem{{SKU: "noprice", UnitPrice: "  ", Quantity: 1}})
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)
}

func TestResolveCategoryTaxHairOil(t *testing.T) {
	res, err := pricing.ResolveCategoryTax([]pricing.LineItem{
		{SKU: "oil", UnitPrice: "₹100", Quantity: 2, Category: "Hair Oil"},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(20000), res.Subtotal)
	require.Equal(t, pricing.Money(1000), res.Tax)
	require.Equal(t, pricing.Money(21000), res.Total)
	require.Len(t, res.Lines, 1)
	require.Equal(t, "5", res.Lines[0].RatePercent.String())
}

func TestResolveCategoryTaxSplit(t *testing.T) {
	res, err := pricing.ResolveCategoryTax([]pricing.LineItem{
		{SKU: "oil", UnitPrice: "₹100", Quantity: 1, Category: "HAIR care"},
		{SKU: "serum", UnitPrice: "₹100", Quantity: 1, Category: "Face Serum"},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(500), res.Lines[0].Tax)
	require.Equal(t, pricing.Money(1800), res.Lines[1].Tax)
	require.Equal(t, pricing.Money(2300), res.Tax)
	require.Equal(t, pricing.Money(22300), res.Total)
}

func TestResolveCategoryTaxRoundsOnce(t *testing.T) {
	// 5% of 0.10 is 0.005 per line; the sum is rounded, not each line.
	res, err := pricing.ResolveCategoryTax([]pricing.LineItem{
		{SKU: "a", UnitPrice: "0.10", Quantity: 1, Category: "Hair"},
		{SKU: "b", UnitPrice: "0.10", Quantity: 1, Category: "Hair"},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1), res.Tax)
	require.Equal(t, pricing.Money(21), res.Total)
}

func TestComputeSubtotalRejectsOverflow(t *testing.T) {
	_, err := pricing.ComputeSubtotal([]pricing.LineItem{
		{SKU: "big", UnitPrice: "₹999999999999999", Quantity: 100, Category: "Face Serum"},
	})
	var lineErr *pricing.InvalidLineItemError
	require.True(t, errors.As(err, &lineErr))
	require.Equal(t, "big", lineErr.SKU)

	_, err = pricing.ResolveCategoryTax([]pricing.LineItem{
		{SKU: "a", UnitPrice: "₹600000000000000", Quantity: 1},
		{SKU: "b", UnitPrice: "₹600000000000000", Quantity: 1},
	})
	require.True(t, errors.As(err, &lineErr))
	require.Equal(t, 1, lineErr.Index)

	_, err = pricing.ComputeSubtotal([]pricing.LineItem{{SKU: "bulk", UnitPrice: "₹1", Quantity: pricing.MaxQuantity + 1}})
	require.ErrorIs(t, err, pricing.ErrInvalidLineItem)

	subtotal, err := pricing.ComputeSubtotal([]pricing.LineItem{{SKU: "edge", UnitPrice: "₹100", Quantity: pricing.MaxQuantity}})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(100_000_000), subtotal)
}
