package billing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DeriveLine validates a single line and fills in quantity and bags from
// its weight breakdown when one is present.
func DeriveLine(line Line) (PricedLine, error) {
	if line.ProductID <= 0 {
		return PricedLine{}, ErrInvalidProduct
	}
	if line.UnitPrice.IsNegative() {
		return PricedLine{}, ErrInvalidPrice
	}
	qty := line.Quantity
	bags := 0
	var breakdown []decimal.Decimal
	if len(line.WeightBreakdown) > 0 {
		sum := decimal.Zero
		breakdown = make([]decimal.Decimal, len(line.WeightBreakdown))
		for i, w := range line.WeightBreakdown {
			if !w.IsPositive() {
				return PricedLine{}, fmt.Errorf("bag %d: %w", i+1, ErrInvalidQuantity)
			}
			breakdown[i] = w
			sum = sum.Add(w)
		}
		if !qty.IsZero() && !qty.Equal(sum) {
			return PricedLine{}, fmt.Errorf("%w: quantity %s, breakdown sums to %s", ErrWeightMismatch, qty, sum)
		}
		qty = sum
		bags = len(breakdown)
	}
	if !qty.IsPositive() {
		return PricedLine{}, ErrInvalidQuantity
	}
	return PricedLine{
		ProductID:       line.ProductID,
		Quantity:        qty,
		UnitPrice:       line.UnitPrice,
		Total:           qty.Mul(line.UnitPrice),
		WeightBreakdown: breakdown,
		Bags:            bags,
	}, nil
}

// PriceLines derives every line. The first failing line aborts with its
// 1-based position in the error.
func PriceLines(lines []Line) ([]PricedLine, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	priced := make([]PricedLine, 0, len(lines))
	for i, line := range lines {
		pl, err := DeriveLine(line)
		if err != nil {
			return nil, fmt.Errorf("billing: line %d: %w", i+1, err)
		}
		priced = append(priced, pl)
	}
	return priced, nil
}

// Subtotal sums line totals.
func Subtotal(lines []PricedLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}

// ComputeHamali returns the handling charge for the given weight and bag count.
func ComputeHamali(cfg HamaliConfig, totalKg decimal.Decimal, bags int) (HamaliMode, decimal.Decimal, error) {
	if cfg.RatePerKg.Valid && cfg.RatePerKg.Decimal.IsNegative() {
		return HamaliNone, decimal.Zero, ErrInvalidRate
	}
	if cfg.RatePerBag.Valid && cfg.RatePerBag.Decimal.IsNegative() {
		return HamaliNone, decimal.Zero, ErrInvalidRate
	}
	if cfg.RatePerKg.Valid && cfg.RatePerBag.Valid {
		return HamaliNone, decimal.Zero, ErrHamaliMode
	}
	if !cfg.Include {
		return HamaliNone, decimal.Zero, nil
	}
	switch {
	case cfg.RatePerKg.Valid:
		return HamaliPerKg, totalKg.Mul(cfg.RatePerKg.Decimal), nil
	case cfg.RatePerBag.Valid:
		return HamaliPerBag, decimal.NewFromInt(int64(bags)).Mul(cfg.RatePerBag.Decimal), nil
	default:
		return HamaliNone, decimal.Zero, ErrHamaliMode
	}
}

// Compute prices the lines, reconciles weight and bag totals against the
// breakdowns and applies the Hamali charge.
func Compute(lines []Line, cfg HamaliConfig) (Totals, error) {
	priced, err := PriceLines(lines)
	if err != nil {
		return Totals{}, err
	}
	sumQty := decimal.Zero
	derivedBags := 0
	allBroken := true
	for _, l := range priced {
		sumQty = sumQty.Add(l.Quantity)
		derivedBags += l.Bags
		if !l.HasBreakdown() {
			allBroken = false
		}
	}

	bags := derivedBags
	if cfg.Bags != nil {
		switch {
		case *cfg.Bags < 0:
			return Totals{}, fmt.Errorf("%w: bags must not be negative", ErrBagMismatch)
		case allBroken && *cfg.Bags != derivedBags:
			return Totals{}, fmt.Errorf("%w: %d supplied, %d weighed", ErrBagMismatch, *cfg.Bags, derivedBags)
		case *cfg.Bags < derivedBags:
			return Totals{}, fmt.Errorf("%w: %d supplied, at least %d weighed", ErrBagMismatch, *cfg.Bags, derivedBags)
		}
		bags = *cfg.Bags
	}

	weight := sumQty
	if cfg.TotalKgWeight.Valid {
		w := cfg.TotalKgWeight.Decimal
		if w.IsNegative() {
			return Totals{}, fmt.Errorf("%w: total weight must not be negative", ErrWeightMismatch)
		}
		if allBroken && !w.Equal(sumQty) {
			return Totals{}, fmt.Errorf("%w: total weight %s, breakdowns sum to %s", ErrWeightMismatch, w, sumQty)
		}
		weight = w
	}

	mode, charge, err := ComputeHamali(cfg, weight, bags)
	if err != nil {
		return Totals{}, err
	}
	subtotal := Subtotal(priced)
	return Totals{
		Lines:         priced,
		Subtotal:      subtotal,
		TotalKgWeight: weight,
		Bags:          bags,
		HamaliMode:    mode,
		HamaliCharge:  charge,
		GrandTotal:    subtotal.Add(charge),
	}, nil
}

// SaleSample is one invoice line considered for price discovery.
type SaleSample struct {
	Quantity decimal.Decimal
	Total    decimal.Decimal
}

// AverageSalePrice returns Σtotal / Σquantity rounded to paise. ok is false
// when there is no quantity to average over.
func AverageSalePrice(samples []SaleSample) (price decimal.Decimal, ok bool) {
	qty := decimal.Zero
	total := decimal.Zero
	for _, s := range samples {
		qty = qty.Add(s.Quantity)
		total = total.Add(s.Total)
	}
	if !qty.IsPositive() {
		return decimal.Zero, false
	}
	return total.DivRound(qty, 2), true
}

// StockOrder returns the line indexes sorted by product so that concurrent
// documents take product row locks in the same order.
func StockOrder(lines []PricedLine) []int {
	order := make([]int, len(lines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lines[order[a]].ProductID < lines[order[b]].ProductID
	})
	return order
}
