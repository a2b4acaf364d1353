// Package sales issues customer invoices, applies their stock effects and
// records customer and hamali payments.
package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/billing"
	"github.com/mandi-erp/mandi/internal/shared"
)

// ============================================================================
// INVOICE
// ============================================================================

// InvoiceStatus tracks invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusCompleted InvoiceStatus = "completed"
)

var (
	// ErrCustomerNotFound indicates an unknown customer.
	ErrCustomerNotFound = fmt.Errorf("%w: customer", shared.ErrNotFound)
	// ErrInvoiceNotFound indicates an unknown invoice.
	ErrInvoiceNotFound = fmt.Errorf("%w: invoice", shared.ErrNotFound)
	// ErrItemNotFound indicates an unknown invoice item.
	ErrItemNotFound = fmt.Errorf("%w: invoice item", shared.ErrNotFound)
	// ErrPaymentNotFound indicates an unknown customer payment.
	ErrPaymentNotFound = fmt.Errorf("%w: customer payment", shared.ErrNotFound)
	// ErrInvoiceNumberRequired indicates a missing invoice number.
	ErrInvoiceNumberRequired = fmt.Errorf("%w: invoice number required", shared.ErrValidation)
	// ErrInvalidStatus indicates an unknown status or a backwards transition.
	ErrInvalidStatus = fmt.Errorf("%w: invalid invoice status transition", shared.ErrValidation)
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	// ErrInvoiceCustomerMismatch indicates a payment linked to another customer's invoice.
	ErrInvoiceCustomerMismatch = fmt.Errorf("%w: invoice belongs to a different customer", shared.ErrValidation)
)

// Invoice is a sale to a customer from the yard or a vehicle.
type Invoice struct {
	ID                 int64               `json:"id"`
	CustomerID         int64               `json:"customer_id"`
	VehicleID          *int64              `json:"vehicle_id"`
	InvoiceNumber      string              `json:"invoice_number"`
	Date               time.Time           `json:"date"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Bags               int                 `json:"bags"`
	IncludeHamali      bool                `json:"include_hamali_charge"`
	HamaliRatePerKg    decimal.NullDecimal `json:"hamali_rate_per_kg"`
	HamaliRatePerBag   decimal.NullDecimal `json:"hamali_rate_per_bag"`
	HamaliChargeAmount decimal.Decimal     `json:"hamali_charge_amount"`
	HamaliPaidByCash   bool                `json:"hamali_paid_by_cash"`
	TotalKgWeight      decimal.Decimal     `json:"total_kg_weight"`
	GrandTotal         decimal.Decimal     `json:"grand_total"`
	Status             InvoiceStatus       `json:"status"`
	Notes              string              `json:"notes,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Items              []InvoiceItem       `json:"items,omitempty"`
}

// InvoiceItem is one priced invoice line.
type InvoiceItem struct {
	ID              int64             `json:"id"`
	InvoiceID       int64             `json:"invoice_id"`
	ProductID       int64             `json:"product_id"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	Total           decimal.Decimal   `json:"total"`
	WeightBreakdown []decimal.Decimal `json:"weight_breakdown,omitempty"`
}

func (it InvoiceItem) line() billing.Line {
	return billing.Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, WeightBreakdown: it.WeightBreakdown}
}

// Rounded returns a copy with money rounded to paise for presentation.
func (inv Invoice) Rounded() Invoice {
	inv.Subtotal = shared.Round2(inv.Subtotal)
	inv.HamaliChargeAmount = shared.Round2(inv.HamaliChargeAmount)
	inv.GrandTotal = shared.Round2(inv.GrandTotal)
	items := make([]InvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		it.Total = shared.Round2(it.Total)
		items[i] = it
	}
	if inv.Items != nil {
		inv.Items = items
	}
	return inv
}

// editConfig rebuilds the hamali configuration for an edit that keeps the
// stored settings. A hand-entered weight that differs from the previous line
// quantities is kept while some line is unweighed; otherwise weight follows
// the lines. A hand-counted bag total is kept while it still covers the
// weighed bags.
func (inv Invoice) editConfig(before []InvoiceItem, lines []billing.Line) billing.HamaliConfig {
	cfg := billing.HamaliConfig{
		Include:    inv.IncludeHamali,
		RatePerKg:  inv.HamaliRatePerKg,
		RatePerBag: inv.HamaliRatePerBag,
	}
	weighed, allWeighed := 0, true
	for _, l := range lines {
		weighed += len(l.WeightBreakdown)
		if len(l.WeightBreakdown) == 0 {
			allWeighed = false
		}
	}
	if allWeighed {
		return cfg
	}
	previous := decimal.Zero
	for _, it := range before {
		previous = previous.Add(it.Quantity)
	}
	if !inv.TotalKgWeight.Equal(previous) {
		cfg.TotalKgWeight = decimal.NewNullDecimal(inv.TotalKgWeight)
	}
	if inv.Bags >= weighed {
		bags := inv.Bags
		cfg.Bags = &bags
	}
	return cfg
}

// apply copies derived totals onto the invoice header.
func (inv *Invoice) apply(t billing.Totals) {
	inv.Subtotal = t.Subtotal
	inv.Bags = t.Bags
	inv.TotalKgWeight = t.TotalKgWeight
	inv.HamaliChargeAmount = t.HamaliCharge
	inv.GrandTotal = t.GrandTotal
}

// ============================================================================
// PAYMENTS
// ============================================================================

// CustomerPayment settles part of a customer balance.
type CustomerPayment struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	InvoiceID     *int64          `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// HamaliCashPayment is handling charge collected in cash, either standalone
// or created with an invoice whose hamali was paid by cash.
type HamaliCashPayment struct {
	ID        int64           `json:"id"`
	InvoiceID *int64          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ============================================================================
// INPUTS
// ============================================================================

// ItemInput is a submitted invoice line. Quantity may be omitted when a
// weight breakdown is given.
type ItemInput struct {
	ProductID       int64             `json:"product_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal   `json:"quantity"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	WeightBreakdown []decimal.Decimal `json:"weight_breakdown"`
}

func (in ItemInput) line() billing.Line {
	return billing.Line{ProductID: in.ProductID, Quantity: in.Quantity, UnitPrice: in.UnitPrice, WeightBreakdown: in.WeightBreakdown}
}

// HamaliInput carries the invoice-level handling charge settings.
type HamaliInput struct {
	Include       bool                `json:"include_hamali_charge"`
	RatePerKg     decimal.NullDecimal `json:"hamali_rate_per_kg"`
	RatePerBag    decimal.NullDecimal `json:"hamali_rate_per_bag"`
	TotalKgWeight decimal.NullDecimal `json:"total_kg_weight"`
	Bags          *int                `json:"bags"`
	PaidByCash    bool                `json:"hamali_paid_by_cash"`
}

func (h HamaliInput) config() billing.HamaliConfig {
	return billing.HamaliConfig{
		Include:       h.Include,
		RatePerKg:     h.RatePerKg,
		RatePerBag:    h.RatePerBag,
		TotalKgWeight: h.TotalKgWeight,
		Bags:          h.Bags,
	}
}

// CreateInvoiceInput carries a new invoice.
type CreateInvoiceInput struct {
	CustomerID     int64
	VehicleID      *int64
	InvoiceNumber  string
	Date           time.Time
	Items          []ItemInput
	Hamali         HamaliInput
	Notes          string
	IdempotencyKey string
}

// UpdateInvoiceInput is a partial invoice edit. Nil fields are unchanged;
// Items replaces every line.
type UpdateInvoiceInput struct {
	Items  []ItemInput
	Hamali *HamaliInput
	Status *InvoiceStatus
	Notes  *string
}

// ItemPatch is a partial edit of one invoice line.
type ItemPatch struct {
	Quantity        *decimal.Decimal
	UnitPrice       *decimal.Decimal
	WeightBreakdown *[]decimal.Decimal
}

// BulkDeleteResult reports a bulk invoice deletion.
type BulkDeleteResult struct {
	Deleted  int     `json:"deleted"`
	Reversed int     `json:"reversed_movements"`
	IDs      []int64 `json:"ids"`
}

// PaymentInput carries a customer payment create or update.
type PaymentInput struct {
	CustomerID    int64
	InvoiceID     *int64
	Amount        decimal.Decimal
	Date          time.Time
	PaymentMethod string
	Notes         string
}

// HamaliPaymentInput carries a standalone hamali cash payment.
type HamaliPaymentInput struct {
	Amount decimal.Decimal
	Date   time.Time
	Notes  string
}

// ListFilter narrows listings.
type ListFilter struct {
	CustomerID int64
	VehicleID  int64
	Status     InvoiceStatus
	Window     shared.Window
	Limit      int
	Offset     int
}
