package vehicles

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is a truck acting as a mobile stock location. Weight gain and loss
// totals are written by the fleet load summary, not by edits.
type Vehicle struct {
	ID              int64               `json:"id"`
	Number          string              `json:"number"`
	Driver          string              `json:"driver"`
	VendorID        *int64              `json:"vendor_id"`
	Shop            string              `json:"shop"`
	StartingWeight  decimal.NullDecimal `json:"starting_weight"`
	StartingBags    *int                `json:"starting_bags"`
	TotalWeightGain decimal.Decimal     `json:"total_weight_gain"`
	TotalWeightLoss decimal.Decimal     `json:"total_weight_loss"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}
