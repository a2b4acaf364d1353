// Package billing prices purchase and invoice lines and computes Hamali
// handling charges and grand totals. It has no storage dependencies.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

var (
	// ErrNoLines indicates a document without line items.
	ErrNoLines = fmt.Errorf("%w: at least one line item required", shared.ErrValidation)
	// ErrInvalidQuantity indicates a non-positive quantity or bag weight.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	// ErrInvalidPrice indicates a negative unit price.
	ErrInvalidPrice = fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	// ErrWeightMismatch indicates a quantity that differs from its weight breakdown.
	ErrWeightMismatch = fmt.Errorf("%w: quantity does not match weight breakdown", shared.ErrValidation)
	// ErrBagMismatch indicates a bag count inconsistent with the weight breakdowns.
	ErrBagMismatch = fmt.Errorf("%w: bags do not match weight breakdown", shared.ErrValidation)
	// ErrHamaliMode indicates zero or both Hamali rates on a charged document.
	ErrHamaliMode = fmt.Errorf("%w: exactly one hamali rate required", shared.ErrValidation)
	// ErrInvalidRate indicates a negative Hamali rate.
	ErrInvalidRate = fmt.Errorf("%w: hamali rate must not be negative", shared.ErrValidation)
	// ErrInvalidProduct indicates a line without a product.
	ErrInvalidProduct = fmt.Errorf("%w: product required", shared.ErrValidation)
)

// HamaliMode names how the handling charge is computed.
type HamaliMode string

const (
	// HamaliNone means no handling charge applies.
	HamaliNone HamaliMode = "none"
	// HamaliPerKg charges totalKgWeight × ratePerKg.
	HamaliPerKg HamaliMode = "per_kg"
	// HamaliPerBag charges bags × ratePerBag.
	HamaliPerBag HamaliMode = "per_bag"
)

// Line is an unpriced line item as submitted by the caller.
type Line struct {
	ProductID       int64
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	WeightBreakdown []decimal.Decimal
}

// PricedLine is a validated line with its derived values.
type PricedLine struct {
	ProductID       int64
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Total           decimal.Decimal
	WeightBreakdown []decimal.Decimal
	Bags            int
}

// HasBreakdown reports whether the line carries individual bag weights.
func (l PricedLine) HasBreakdown() bool {
	return len(l.WeightBreakdown) > 0
}

// HamaliConfig carries the invoice-level handling charge inputs. Unset
// optional values are represented with Valid=false.
type HamaliConfig struct {
	Include       bool
	RatePerKg     decimal.NullDecimal
	RatePerBag    decimal.NullDecimal
	TotalKgWeight decimal.NullDecimal
	Bags          *int
}

// Totals is the fully derived pricing of a document.
type Totals struct {
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	TotalKgWeight decimal.Decimal
	Bags          int
	HamaliMode    HamaliMode
	HamaliCharge  decimal.Decimal
	GrandTotal    decimal.Decimal
}

// IsValidation reports whether err is a billing input error.
func IsValidation(err error) bool {
	return errors.Is(err, shared.ErrValidation)
}
