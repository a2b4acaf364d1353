// Package fleet keeps per-vehicle inventory as a cached projection of an
// append-only load/sale movement log.
package fleet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// MovementType enumerates vehicle inventory events.
type MovementType string

const (
	// MovementLoad adds stock to a vehicle.
	MovementLoad MovementType = "load"
	// MovementSale removes stock from a vehicle.
	MovementSale MovementType = "sale"
)

// NoteManualUpdate marks movements written by Adjust.
const NoteManualUpdate = "Manual stock update"

// Outcome of a sale against a vehicle.
type Outcome string

const (
	// OutcomeApplied means the vehicle had enough stock and was decremented.
	OutcomeApplied Outcome = "applied"
	// OutcomeInsufficient means the vehicle carried less than requested.
	OutcomeInsufficient Outcome = "insufficient"
	// OutcomeMissing means the vehicle never carried the product.
	OutcomeMissing Outcome = "missing"
)

var (
	// ErrInventoryNotFound signals that no inventory row existed for the pair.
	ErrInventoryNotFound = errors.New("vehicle inventory not found")
	// ErrVehicleNotFound indicates an unknown vehicle.
	ErrVehicleNotFound = fmt.Errorf("%w: vehicle", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a non-positive movement or negative target quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: vehicle quantity must be positive", shared.ErrValidation)
)

// Key identifies a (vehicle, product) pair.
type Key struct {
	VehicleID int64
	ProductID int64
}

func (k Key) String() string {
	return shared.VehicleStockKey(k.VehicleID, k.ProductID)
}

// Inventory is the cached quantity of one product on one vehicle.
type Inventory struct {
	VehicleID   int64           `json:"vehicle_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Movement is an append-only vehicle inventory event.
type Movement struct {
	ID            int64           `json:"id"`
	VehicleID     int64           `json:"vehicle_id"`
	ProductID     int64           `json:"product_id"`
	Type          MovementType    `json:"type"`
	Quantity      decimal.Decimal `json:"quantity"`
	Date          time.Time       `json:"date"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   int64           `json:"reference_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Source describes the document behind a movement. Reason overrides the
// product stock reason written when the movement is mirrored.
type Source struct {
	Date          time.Time
	ReferenceType string
	ReferenceID   int64
	Notes         string
	Reason        string
}

// LoadResult reports a load.
type LoadResult struct {
	MovementID int64           `json:"movement_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// SaleResult reports a sale. Insufficient and missing outcomes leave the
// vehicle unchanged and write no movement.
type SaleResult struct {
	Outcome    Outcome         `json:"outcome"`
	MovementID int64           `json:"movement_id,omitempty"`
	Requested  decimal.Decimal `json:"requested"`
	Available  decimal.Decimal `json:"available"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Applied reports whether the vehicle was decremented.
func (r SaleResult) Applied() bool {
	return r.Outcome == OutcomeApplied
}

// AdjustResult reports a manual correction.
type AdjustResult struct {
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
	MovementID int64           `json:"movement_id,omitempty"`
}

// LoadInput loads stock onto a vehicle outside a purchase.
type LoadInput struct {
	VehicleID int64           `json:"vehicle_id" validate:"required,gt=0"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes" validate:"max=255"`
}

// DeductInput removes stock from a vehicle outside an invoice. MirrorProduct
// also decrements global product stock.
type DeductInput struct {
	VehicleID     int64           `json:"vehicle_id" validate:"required,gt=0"`
	ProductID     int64           `json:"product_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	Date          time.Time       `json:"date"`
	Notes         string          `json:"notes" validate:"max=255"`
	MirrorProduct bool            `json:"mirror_product"`
}

// AdjustInput sets a vehicle's quantity of a product.
type AdjustInput struct {
	VehicleID int64           `json:"vehicle_id" validate:"required,gt=0"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Date      time.Time       `json:"date"`
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	VehicleID     int64
	ProductID     int64
	ReferenceType string
	Limit         int
}

// Drift describes a pair whose cached quantity disagreed with its log.
type Drift struct {
	VehicleID int64           `json:"vehicle_id"`
	ProductID int64           `json:"product_id"`
	Cached    decimal.Decimal `json:"cached"`
	Derived   decimal.Decimal `json:"derived"`
}

// ReconcileReport summarises a vehicle reconciliation pass.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
}

// Baseline is the weighed starting load recorded on a vehicle.
type Baseline struct {
	VehicleID      int64               `json:"vehicle_id"`
	StartingWeight decimal.NullDecimal `json:"starting_weight"`
	StartingBags   *int                `json:"starting_bags"`
}

// LoadSummary compares a vehicle's baseline with what was loaded and sold.
type LoadSummary struct {
	VehicleID      int64               `json:"vehicle_id"`
	StartingWeight decimal.NullDecimal `json:"starting_weight"`
	StartingBags   *int                `json:"starting_bags"`
	Loaded         decimal.Decimal     `json:"loaded"`
	Sold           decimal.Decimal     `json:"sold"`
	OnHand         decimal.Decimal     `json:"on_hand"`
	WeightGain     decimal.Decimal     `json:"weight_gain"`
	WeightLoss     decimal.Decimal     `json:"weight_loss"`
}
