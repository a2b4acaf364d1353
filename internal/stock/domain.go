// Package stock maintains the per-product stock mirror and its append-only
// movement log.
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// Direction of a product stock movement.
type Direction string

const (
	// DirectionIn increases stock.
	DirectionIn Direction = "in"
	// DirectionOut decreases stock.
	DirectionOut Direction = "out"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Policy controls what happens when an out movement exceeds current stock.
type Policy string

const (
	// PolicyAdvisory clamps the mirror at zero and lets the write proceed.
	PolicyAdvisory Policy = "advisory"
	// PolicyStrict rejects the write with shared.ErrInsufficientStock.
	PolicyStrict Policy = "strict"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case PolicyAdvisory, PolicyStrict:
		return Policy(raw), nil
	case "":
		return PolicyAdvisory, nil
	default:
		return "", fmt.Errorf("%w: unknown stock policy %q", shared.ErrValidation, raw)
	}
}

// Reference types linking movements to their source documents.
const (
	RefPurchase     = "purchase"
	RefInvoice      = "invoice"
	RefVendorReturn = "vendor_return"
	RefVehicle      = "vehicle"
	RefProduct      = "product"
	RefAdjustment   = "adjustment"
)

// Movement reasons written by the system.
const (
	ReasonPurchase      = "Purchase"
	ReasonSale          = "Sale"
	ReasonVendorReturn  = "Vendor return"
	ReasonVehicleLoad   = "Vehicle load"
	ReasonManualUpdate  = "Manual stock update"
	ReasonOpeningStock  = "Opening stock"
	ReasonInvoiceEdit   = "Invoice edit"
	ReasonInvoiceDelete = "Invoice deleted"
)

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: stock quantity must be positive", shared.ErrValidation)
	// ErrInvalidDirection indicates an unknown movement direction.
	ErrInvalidDirection = fmt.Errorf("%w: stock direction must be in or out", shared.ErrValidation)
	// ErrProductNotFound indicates the product row does not exist.
	ErrProductNotFound = fmt.Errorf("%w: product", shared.ErrNotFound)
)

// Movement is an append-only product stock event. Quantity is the requested
// amount, not the amount the clamp actually removed.
type Movement struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	Direction     Direction       `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Date          time.Time       `json:"date"`
	Reason        string          `json:"reason"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   int64           `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Change requests a single stock movement.
type Change struct {
	ProductID     int64
	Direction     Direction
	Quantity      decimal.Decimal
	Date          time.Time
	Reason        string
	ReferenceType string
	ReferenceID   int64
}

// Result reports the effect of an applied change.
type Result struct {
	MovementID int64
	Before     decimal.Decimal
	After      decimal.Decimal
	Clamped    bool
}

// CardEntry is a stock card row: a movement with the mirror balance after it.
type CardEntry struct {
	Movement
	Balance decimal.Decimal `json:"balance"`
	Clamped bool            `json:"clamped"`
}

// Drift describes a product whose cached stock disagreed with its log.
type Drift struct {
	ProductID int64           `json:"product_id"`
	Cached    decimal.Decimal `json:"cached"`
	Derived   decimal.Decimal `json:"derived"`
}

// ReconcileReport summarises a reconciliation pass.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
}

// AdjustInput sets a product's stock to an absolute quantity.
type AdjustInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      time.Time       `json:"date"`
	Note      string          `json:"note" validate:"max=255"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID     int64
	ReferenceType string
	ReferenceIDs  []int64
	Direction     Direction
	Window        shared.Window
	Limit         int
}
