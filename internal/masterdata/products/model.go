package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a traded commodity. CurrentStock is a mirror maintained by
// stock movements and is never written by product edits.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	ReorderLevel  decimal.Decimal `json:"reorder_level"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LowStock reports whether stock is at or below the reorder level.
func (p Product) LowStock() bool {
	return p.ReorderLevel.IsPositive() && p.CurrentStock.LessThanOrEqual(p.ReorderLevel)
}
