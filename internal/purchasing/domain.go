// Package purchasing records stock bought from vendors, goods returned to
// them and the payments that settle their ledgers.
package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// PurchaseStatus tracks purchase lifecycle.
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "completed"
)

var (
	// ErrVendorNotFound indicates an unknown vendor.
	ErrVendorNotFound = fmt.Errorf("%w: vendor", shared.ErrNotFound)
	// ErrPurchaseNotFound indicates an unknown purchase.
	ErrPurchaseNotFound = fmt.Errorf("%w: purchase", shared.ErrNotFound)
	// ErrReturnNotFound indicates an unknown vendor return.
	ErrReturnNotFound = fmt.Errorf("%w: vendor return", shared.ErrNotFound)
	// ErrPaymentNotFound indicates an unknown vendor payment.
	ErrPaymentNotFound = fmt.Errorf("%w: vendor payment", shared.ErrNotFound)
	// ErrPurchaseVendorMismatch indicates a return linked to another vendor's purchase.
	ErrPurchaseVendorMismatch = fmt.Errorf("%w: purchase belongs to a different vendor", shared.ErrValidation)
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
)

// Purchase is stock bought from a vendor into the yard or onto a vehicle.
type Purchase struct {
	ID          int64           `json:"id"`
	VendorID    int64           `json:"vendor_id"`
	VehicleID   *int64          `json:"vehicle_id"`
	Date        time.Time       `json:"date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      PurchaseStatus  `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Items       []PurchaseItem  `json:"items,omitempty"`
}

// PurchaseItem is one priced purchase line.
type PurchaseItem struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
}

// VendorReturn sends goods back to a vendor and reduces the vendor balance.
type VendorReturn struct {
	ID          int64              `json:"id"`
	VendorID    int64              `json:"vendor_id"`
	VehicleID   *int64             `json:"vehicle_id"`
	PurchaseID  *int64             `json:"purchase_id"`
	Date        time.Time          `json:"date"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Items       []VendorReturnItem `json:"items,omitempty"`
}

// VendorReturnItem is one returned line.
type VendorReturnItem struct {
	ID        int64           `json:"id"`
	ReturnID  int64           `json:"return_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Reason    string          `json:"reason,omitempty"`
}

// VendorPayment settles part of a vendor balance.
type VendorPayment struct {
	ID            int64           `json:"id"`
	VendorID      int64           `json:"vendor_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LineInput is a submitted purchase or return line.
type LineInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason" validate:"max=255"`
}

// CreatePurchaseInput carries a new purchase.
type CreatePurchaseInput struct {
	VendorID       int64
	VehicleID      *int64
	Date           time.Time
	Notes          string
	Items          []LineInput
	IdempotencyKey string
}

// CreateReturnInput carries a new vendor return.
type CreateReturnInput struct {
	VendorID       int64
	VehicleID      *int64
	PurchaseID     *int64
	Date           time.Time
	Notes          string
	Items          []LineInput
	IdempotencyKey string
}

// PaymentInput carries a vendor payment create or update.
type PaymentInput struct {
	VendorID      int64
	Amount        decimal.Decimal
	Date          time.Time
	PaymentMethod string
	Notes         string
}

// ListFilter narrows document listings.
type ListFilter struct {
	VendorID int64
	Window   shared.Window
	Limit    int
	Offset   int
}
