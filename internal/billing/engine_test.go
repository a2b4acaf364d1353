package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/shared"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func weights(vs ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = d(v)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestDeriveLineFromBreakdown(t *testing.T) {
	line, err := DeriveLine(Line{ProductID: 1, UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9")})
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(d("36")))
	assert.Equal(t, 3, line.Bags)
	assert.True(t, line.Total.Equal(d("360")))

	// Adding a bag re-derives both values.
	line, err = DeriveLine(Line{ProductID: 1, UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9", "4")})
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(d("40")))
	assert.Equal(t, 4, line.Bags)

	line, err = DeriveLine(Line{ProductID: 1, UnitPrice: d("10"), WeightBreakdown: weights("12", "9")})
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(d("21")))
	assert.Equal(t, 2, line.Bags)
}

func TestDeriveLineRejectsInconsistentQuantity(t *testing.T) {
	_, err := DeriveLine(Line{ProductID: 1, Quantity: d("40"), UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9")})
	require.ErrorIs(t, err, ErrWeightMismatch)
	require.ErrorIs(t, err, shared.ErrValidation)

	line, err := DeriveLine(Line{ProductID: 1, Quantity: d("36"), UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9")})
	require.NoError(t, err)
	assert.True(t, line.Quantity.Equal(d("36")))
}

func TestDeriveLineValidation(t *testing.T) {
	cases := []struct {
		name string
		line Line
		err  error
	}{
		{"missing product", Line{Quantity: d("1"), UnitPrice: d("1")}, ErrInvalidProduct},
		{"negative quantity", Line{ProductID: 1, Quantity: d("-1"), UnitPrice: d("1")}, ErrInvalidQuantity},
		{"zero quantity", Line{ProductID: 1, UnitPrice: d("1")}, ErrInvalidQuantity},
		{"negative price", Line{ProductID: 1, Quantity: d("1"), UnitPrice: d("-0.01")}, ErrInvalidPrice},
		{"zero bag weight", Line{ProductID: 1, UnitPrice: d("1"), WeightBreakdown: weights("5", "0")}, ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveLine(tc.line)
			require.ErrorIs(t, err, tc.err)
		})
	}

	line, err := DeriveLine(Line{ProductID: 1, Quantity: d("2"), UnitPrice: decimal.Zero})
	require.NoError(t, err)
	assert.True(t, line.Total.IsZero())
}

func TestComputeHamaliPerKg(t *testing.T) {
	totals, err := Compute(
		[]Line{{ProductID: 1, Quantity: d("100"), UnitPrice: d("25")}},
		HamaliConfig{
			Include:       true,
			RatePerKg:     decimal.NewNullDecimal(d("2")),
			TotalKgWeight: decimal.NewNullDecimal(d("100")),
		},
	)
	require.NoError(t, err)
	assert.Equal(t, HamaliPerKg, totals.HamaliMode)
	assert.True(t, totals.HamaliCharge.Equal(d("200")), totals.HamaliCharge.String())
	assert.True(t, totals.Subtotal.Equal(d("2500")))
	assert.True(t, totals.GrandTotal.Equal(totals.Subtotal.Add(totals.HamaliCharge)))
}

func TestComputeHamaliPerBag(t *testing.T) {
	totals, err := Compute(
		[]Line{{ProductID: 1, Quantity: d("100"), UnitPrice: d("25")}},
		HamaliConfig{
			Include:    true,
			RatePerBag: decimal.NewNullDecimal(d("5")),
			Bags:       intPtr(10),
		},
	)
	require.NoError(t, err)
	assert.Equal(t, HamaliPerBag, totals.HamaliMode)
	assert.True(t, totals.HamaliCharge.Equal(d("50")))
	assert.True(t, totals.GrandTotal.Equal(d("2550")))
}

func TestComputeHamaliModes(t *testing.T) {
	lines := []Line{{ProductID: 1, Quantity: d("10"), UnitPrice: d("3")}}

	_, err := Compute(lines, HamaliConfig{
		Include:    true,
		RatePerKg:  decimal.NewNullDecimal(d("1")),
		RatePerBag: decimal.NewNullDecimal(d("1")),
	})
	require.ErrorIs(t, err, ErrHamaliMode)

	_, err = Compute(lines, HamaliConfig{Include: true})
	require.ErrorIs(t, err, ErrHamaliMode)

	_, err = Compute(lines, HamaliConfig{Include: true, RatePerKg: decimal.NewNullDecimal(d("-1"))})
	require.ErrorIs(t, err, ErrInvalidRate)

	totals, err := Compute(lines, HamaliConfig{RatePerKg: decimal.NewNullDecimal(d("2"))})
	require.NoError(t, err)
	assert.Equal(t, HamaliNone, totals.HamaliMode)
	assert.True(t, totals.HamaliCharge.IsZero())
	assert.True(t, totals.GrandTotal.Equal(d("30")))
}

func TestComputeDefaultsWeightToQuantity(t *testing.T) {
	totals, err := Compute(
		[]Line{
			{ProductID: 1, UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9")},
			{ProductID: 2, Quantity: d("4.5"), UnitPrice: d("20")},
		},
		HamaliConfig{Include: true, RatePerKg: decimal.NewNullDecimal(d("0.5"))},
	)
	require.NoError(t, err)
	assert.True(t, totals.TotalKgWeight.Equal(d("40.5")))
	assert.Equal(t, 3, totals.Bags)
	assert.True(t, totals.HamaliCharge.Equal(d("20.25")))
	assert.True(t, totals.Subtotal.Equal(d("450")))
}

func TestComputeBagConsistency(t *testing.T) {
	broken := []Line{
		{ProductID: 1, UnitPrice: d("10"), WeightBreakdown: weights("12", "15", "9")},
		{ProductID: 2, UnitPrice: d("10"), WeightBreakdown: weights("20")},
	}
	totals, err := Compute(broken, HamaliConfig{Bags: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, totals.Bags)

	_, err = Compute(broken, HamaliConfig{Bags: intPtr(5)})
	require.ErrorIs(t, err, ErrBagMismatch)

	_, err = Compute(broken, HamaliConfig{TotalKgWeight: decimal.NewNullDecimal(d("55"))})
	require.ErrorIs(t, err, ErrWeightMismatch)

	// Lines without a breakdown may add unweighed bags.
	mixed := append(broken, Line{ProductID: 3, Quantity: d("30"), UnitPrice: d("1")})
	totals, err = Compute(mixed, HamaliConfig{Bags: intPtr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, totals.Bags)

	_, err = Compute(mixed, HamaliConfig{Bags: intPtr(3)})
	require.ErrorIs(t, err, ErrBagMismatch)
}

func TestComputeRejectsEmptyAndReportsLine(t *testing.T) {
	_, err := Compute(nil, HamaliConfig{})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = Compute([]Line{
		{ProductID: 1, Quantity: d("1"), UnitPrice: d("1")},
		{ProductID: 1, Quantity: d("-3"), UnitPrice: d("1")},
	}, HamaliConfig{})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Contains(t, err.Error(), "line 2")
}

func TestAverageSalePrice(t *testing.T) {
	price, ok := AverageSalePrice([]SaleSample{
		{Quantity: d("10"), Total: d("100")},
		{Quantity: d("20"), Total: d("250")},
	})
	require.True(t, ok)
	assert.True(t, price.Equal(d("11.67")), price.String())

	_, ok = AverageSalePrice(nil)
	assert.False(t, ok)
}

func TestStockOrderSortsByProduct(t *testing.T) {
	lines := []PricedLine{{ProductID: 9}, {ProductID: 2}, {ProductID: 9}, {ProductID: 4}}
	assert.Equal(t, []int{1, 3, 0, 2}, StockOrder(lines))
	assert.Empty(t, StockOrder(nil))
}

func BenchmarkComputePerKg(b *testing.B) {
	lines := make([]Line, 0, 40)
	for i := range 40 {
		lines = append(lines, Line{
			ProductID:       int64(i%7 + 1),
			UnitPrice:       d("22.50"),
			WeightBreakdown: weights("25.5", "24.8", "26", "25.2"),
		})
	}
	cfg := HamaliConfig{Include: true, RatePerKg: decimal.NewNullDecimal(d("1.5"))}
	b.ReportAllocs()
	for b.Loop() {
		if _, err := Compute(lines, cfg); err != nil {
			b.Fatal(err)
		}
	}
}
