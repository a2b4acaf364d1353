package sales

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/billing"
	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	SaleSamples(ctx context.Context, productID int64, date time.Time) ([]billing.SaleSample, error)
	SetSalePrice(ctx context.Context, productID int64, price decimal.Decimal) error
	InvoiceCustomer(ctx context.Context, invoiceID int64) (int64, error)
	CreatePayment(ctx context.Context, p CustomerPayment) (CustomerPayment, error)
	UpdatePayment(ctx context.Context, id int64, p CustomerPayment) (CustomerPayment, error)
	DeletePayment(ctx context.Context, id int64) error
	GetPayment(ctx context.Context, id int64) (CustomerPayment, error)
	ListPayments(ctx context.Context, filter ListFilter) ([]CustomerPayment, error)
	CreateHamaliPayment(ctx context.Context, p HamaliCashPayment) (HamaliCashPayment, error)
	ListHamaliPayments(ctx context.Context, filter ListFilter) ([]HamaliCashPayment, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates sales flows.
type Service struct {
	repo        RepositoryPort
	ledger      *fleet.Ledger
	mirror      *stock.Mirror
	audit       AuditPort
	idempotency shared.IdempotencyPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs sales service.
func NewService(repo RepositoryPort, ledger *fleet.Ledger, mirror *stock.Mirror, audit AuditPort, idem shared.IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, ledger: ledger, mirror: mirror, audit: audit, idempotency: idem, logger: logger, now: time.Now}
}

func (s *Service) dateOrToday(t time.Time) time.Time {
	if t.IsZero() {
		return shared.Day(s.now())
	}
	return shared.Day(t)
}

func itemLines(items []ItemInput) []billing.Line {
	lines := make([]billing.Line, len(items))
	for i, it := range items {
		lines[i] = it.line()
	}
	return lines
}

func storedLines(items []InvoiceItem) []billing.Line {
	lines := make([]billing.Line, len(items))
	for i, it := range items {
		lines[i] = it.line()
	}
	return lines
}

// ============================================================================
// INVOICES
// ============================================================================

// CreateInvoice prices the lines, stores the invoice and books its stock.
// Selling from a vehicle decrements the vehicle first; product stock is
// always decremented. Prices are refreshed after commit on a best-effort basis.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if input.CustomerID <= 0 {
		return Invoice{}, fmt.Errorf("%w: customer required", shared.ErrValidation)
	}
	number := strings.TrimSpace(input.InvoiceNumber)
	if number == "" {
		return Invoice{}, ErrInvoiceNumberRequired
	}
	totals, err := billing.Compute(itemLines(input.Items), input.Hamali.config())
	if err != nil {
		return Invoice{}, err
	}
	inv := Invoice{
		CustomerID:       input.CustomerID,
		VehicleID:        input.VehicleID,
		InvoiceNumber:    number,
		Date:             s.dateOrToday(input.Date),
		IncludeHamali:    input.Hamali.Include,
		HamaliRatePerKg:  input.Hamali.RatePerKg,
		HamaliRatePerBag: input.Hamali.RatePerBag,
		HamaliPaidByCash: input.Hamali.PaidByCash,
		Status:           InvoiceStatusPending,
		Notes:            strings.TrimSpace(input.Notes),
	}
	inv.apply(totals)

	err = shared.RunOnce(ctx, s.idempotency, input.IdempotencyKey, "sales.invoice", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			ok, err := tx.CustomerExists(ctx, inv.CustomerID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w %d", ErrCustomerNotFound, inv.CustomerID)
			}
			id, err := tx.InsertInvoice(ctx, inv)
			if err != nil {
				return err
			}
			inv.ID = id
			inv.Items = make([]InvoiceItem, len(totals.Lines))
			for i, line := range totals.Lines {
				item := InvoiceItem{
					InvoiceID:       id,
					ProductID:       line.ProductID,
					Quantity:        line.Quantity,
					UnitPrice:       line.UnitPrice,
					Total:           line.Total,
					WeightBreakdown: line.WeightBreakdown,
				}
				if item.ID, err = tx.InsertInvoiceItem(ctx, item); err != nil {
					return err
				}
				inv.Items[i] = item
			}
			for _, i := range billing.StockOrder(totals.Lines) {
				if err := s.issue(ctx, tx, inv, totals.Lines[i]); err != nil {
					return fmt.Errorf("sales: line %d: %w", i+1, err)
				}
			}
			return s.syncHamali(ctx, tx, inv, false)
		})
	})
	if err != nil {
		return Invoice{}, err
	}
	s.refreshPrices(ctx, inv)
	s.recordAudit(ctx, "invoice.create", inv.ID, map[string]any{
		"invoice_number": inv.InvoiceNumber,
		"customer_id":    inv.CustomerID,
		"grand_total":    inv.GrandTotal.String(),
	})
	return inv, nil
}

func (s *Service) issue(ctx context.Context, tx TxRepository, inv Invoice, line billing.PricedLine) error {
	if inv.VehicleID != nil {
		if _, err := s.ledger.Sale(ctx, tx, fleet.Key{VehicleID: *inv.VehicleID, ProductID: line.ProductID}, line.Quantity, fleet.Source{
			Date:          inv.Date,
			ReferenceType: stock.RefInvoice,
			ReferenceID:   inv.ID,
			Notes:         "Invoice " + inv.InvoiceNumber,
		}); err != nil {
			return err
		}
	}
	_, err := s.mirror.Apply(ctx, tx, stock.Change{
		ProductID:     line.ProductID,
		Direction:     stock.DirectionOut,
		Quantity:      line.Quantity,
		Date:          inv.Date,
		Reason:        stock.ReasonSale,
		ReferenceType: stock.RefInvoice,
		ReferenceID:   inv.ID,
	})
	return err
}

// syncHamali keeps the invoice's cash hamali payment in step with its charge.
func (s *Service) syncHamali(ctx context.Context, tx TxRepository, inv Invoice, replace bool) error {
	if replace {
		if err := tx.DeleteInvoiceHamaliPayments(ctx, []int64{inv.ID}); err != nil {
			return err
		}
	}
	if !inv.IncludeHamali || !inv.HamaliPaidByCash || !inv.HamaliChargeAmount.IsPositive() {
		return nil
	}
	id := inv.ID
	_, err := tx.InsertHamaliPayment(ctx, HamaliCashPayment{
		InvoiceID: &id,
		Amount:    inv.HamaliChargeAmount,
		Date:      inv.Date,
		Notes:     "Hamali for invoice " + inv.InvoiceNumber,
	})
	return err
}

// refreshPrices stores each sold product's average price for the invoice date.
func (s *Service) refreshPrices(ctx context.Context, inv Invoice) {
	seen := make(map[int64]bool, len(inv.Items))
	for _, it := range inv.Items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		samples, err := s.repo.SaleSamples(ctx, it.ProductID, inv.Date)
		if err != nil {
			s.logger.WarnContext(ctx, "sale price refresh failed", slog.Int64("product_id", it.ProductID), slog.Any("error", err))
			continue
		}
		price, ok := billing.AverageSalePrice(samples)
		if !ok {
			continue
		}
		if err := s.repo.SetSalePrice(ctx, it.ProductID, price); err != nil {
			s.logger.WarnContext(ctx, "sale price refresh failed", slog.Int64("product_id", it.ProductID), slog.Any("error", err))
		}
	}
}

// GetInvoice returns an invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices lists invoice headers.
func (s *Service) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

func checkTransition(from, to InvoiceStatus) error {
	switch {
	case to != InvoiceStatusPending && to != InvoiceStatusCompleted:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	case from == InvoiceStatusCompleted && to == InvoiceStatusPending:
		return ErrInvalidStatus
	}
	return nil
}

// UpdateInvoice edits an invoice. Replaced lines are repriced and the
// difference in quantity per product is booked against product stock;
// vehicle inventory is not revisited.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, input UpdateInvoiceInput) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Status != nil {
			if err := checkTransition(inv.Status, *input.Status); err != nil {
				return err
			}
			inv.Status = *input.Status
		}
		if input.Notes != nil {
			inv.Notes = strings.TrimSpace(*input.Notes)
		}
		if input.Items == nil && input.Hamali == nil {
			return tx.UpdateInvoice(ctx, inv)
		}

		before := inv.Items
		lines := storedLines(before)
		if input.Items != nil {
			lines = itemLines(input.Items)
		}
		totals, err := reprice(&inv, before, lines, input.Hamali)
		if err != nil {
			return err
		}
		if input.Items != nil {
			if err := tx.DeleteInvoiceItems(ctx, inv.ID); err != nil {
				return err
			}
			inv.Items = make([]InvoiceItem, len(totals.Lines))
			for i, line := range totals.Lines {
				item := InvoiceItem{
					InvoiceID:       inv.ID,
					ProductID:       line.ProductID,
					Quantity:        line.Quantity,
					UnitPrice:       line.UnitPrice,
					Total:           line.Total,
					WeightBreakdown: line.WeightBreakdown,
				}
				if item.ID, err = tx.InsertInvoiceItem(ctx, item); err != nil {
					return err
				}
				inv.Items[i] = item
			}
			if err := s.rebook(ctx, tx, inv, before, inv.Items); err != nil {
				return err
			}
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		return s.syncHamali(ctx, tx, inv, true)
	})
	if err != nil {
		return Invoice{}, err
	}
	if input.Items != nil {
		s.refreshPrices(ctx, inv)
	}
	s.recordAudit(ctx, "invoice.update", inv.ID, map[string]any{
		"grand_total": inv.GrandTotal.String(),
		"status":      string(inv.Status),
	})
	return inv, nil
}

// UpdateInvoiceItem edits one line and recomputes the invoice totals. A new
// quantity without a breakdown drops the line's stored breakdown.
func (s *Service) UpdateInvoiceItem(ctx context.Context, invoiceID, itemID int64, patch ItemPatch) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(inv.Items, func(it InvoiceItem) bool { return it.ID == itemID })
		if idx < 0 {
			return fmt.Errorf("%w %d", ErrItemNotFound, itemID)
		}
		before := slices.Clone(inv.Items)
		item := inv.Items[idx]
		switch {
		case patch.WeightBreakdown != nil:
			item.WeightBreakdown = *patch.WeightBreakdown
			item.Quantity = decimal.Zero
			if patch.Quantity != nil {
				item.Quantity = *patch.Quantity
			}
		case patch.Quantity != nil:
			item.WeightBreakdown = nil
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		inv.Items[idx] = item

		totals, err := reprice(&inv, before, storedLines(inv.Items), nil)
		if err != nil {
			return err
		}
		priced := totals.Lines[idx]
		item.Quantity, item.Total, item.WeightBreakdown = priced.Quantity, priced.Total, priced.WeightBreakdown
		inv.Items[idx] = item
		if err := tx.UpdateInvoiceItem(ctx, item); err != nil {
			return err
		}
		if err := s.rebook(ctx, tx, inv, before, inv.Items); err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		return s.syncHamali(ctx, tx, inv, true)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.refreshPrices(ctx, inv)
	s.recordAudit(ctx, "invoice.update_item", inv.ID, map[string]any{"item_id": itemID, "grand_total": inv.GrandTotal.String()})
	return inv, nil
}

// reprice recomputes invoice totals for lines, taking new hamali settings
// when given and the stored ones otherwise.
func reprice(inv *Invoice, before []InvoiceItem, lines []billing.Line, hamali *HamaliInput) (billing.Totals, error) {
	cfg := inv.editConfig(before, lines)
	if hamali != nil {
		cfg = hamali.config()
		inv.IncludeHamali = hamali.Include
		inv.HamaliRatePerKg = hamali.RatePerKg
		inv.HamaliRatePerBag = hamali.RatePerBag
		inv.HamaliPaidByCash = hamali.PaidByCash
	}
	totals, err := billing.Compute(lines, cfg)
	if err != nil {
		return billing.Totals{}, err
	}
	inv.apply(totals)
	return totals, nil
}

// rebook books the per-product quantity difference between two versions of
// an invoice's lines. Selling less returns stock; selling more takes it out.
func (s *Service) rebook(ctx context.Context, tx TxRepository, inv Invoice, before, after []InvoiceItem) error {
	delta := make(map[int64]decimal.Decimal)
	for _, it := range before {
		delta[it.ProductID] = delta[it.ProductID].Add(it.Quantity)
	}
	for _, it := range after {
		delta[it.ProductID] = delta[it.ProductID].Sub(it.Quantity)
	}
	products := make([]int64, 0, len(delta))
	for id := range delta {
		products = append(products, id)
	}
	slices.Sort(products)
	for _, productID := range products {
		if _, err := s.mirror.ApplyDelta(ctx, tx, stock.Change{
			ProductID:     productID,
			Date:          shared.Day(s.now()),
			Reason:        stock.ReasonInvoiceEdit,
			ReferenceType: stock.RefInvoice,
			ReferenceID:   inv.ID,
		}, delta[productID]); err != nil {
			return fmt.Errorf("sales: rebook product %d: %w", productID, err)
		}
	}
	return nil
}

// CompleteInvoice marks a pending invoice completed.
func (s *Service) CompleteInvoice(ctx context.Context, id int64) (Invoice, error) {
	status := InvoiceStatusCompleted
	return s.UpdateInvoice(ctx, id, UpdateInvoiceInput{Status: &status})
}

// BulkDelete removes invoices and returns the stock they still hold out.
// Every id must exist or nothing is deleted. Vehicle inventory is not
// reversed; linked cash hamali payments are removed and customer payments
// are kept but unlinked.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) (BulkDeleteResult, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 || ids[0] <= 0 {
		return BulkDeleteResult{}, fmt.Errorf("%w: invoice ids required", shared.ErrValidation)
	}
	var result BulkDeleteResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range ids {
			if _, err := tx.GetInvoiceForUpdate(ctx, id); err != nil {
				return err
			}
		}
		moves, err := tx.ListStockMovements(ctx, stock.MovementFilter{ReferenceType: stock.RefInvoice, ReferenceIDs: ids})
		if err != nil {
			return err
		}
		held := outstanding(moves)
		products := make([]int64, 0, len(held))
		for productID := range held {
			products = append(products, productID)
		}
		slices.Sort(products)
		today := shared.Day(s.now())
		for _, productID := range products {
			for _, invoiceID := range ids {
				qty := held[productID][invoiceID]
				if !qty.IsPositive() {
					continue
				}
				if _, err := s.mirror.Apply(ctx, tx, stock.Change{
					ProductID:     productID,
					Direction:     stock.DirectionIn,
					Quantity:      qty,
					Date:          today,
					Reason:        stock.ReasonInvoiceDelete,
					ReferenceType: stock.RefInvoice,
					ReferenceID:   invoiceID,
				}); err != nil {
					return fmt.Errorf("sales: reverse invoice %d: %w", invoiceID, err)
				}
				result.Reversed++
			}
		}
		if err := tx.DeleteInvoiceHamaliPayments(ctx, ids); err != nil {
			return err
		}
		if err := tx.UnlinkCustomerPayments(ctx, ids); err != nil {
			return err
		}
		deleted, err := tx.DeleteInvoices(ctx, ids)
		if err != nil {
			return err
		}
		result.Deleted = int(deleted)
		return nil
	})
	if err != nil {
		return BulkDeleteResult{}, err
	}
	result.IDs = ids
	s.recordAudit(ctx, "invoice.bulk_delete", ids[0], map[string]any{"ids": ids, "reversed": result.Reversed})
	return result, nil
}

// outstanding nets invoice-tied movements into the quantity each invoice
// still holds out of each product.
func outstanding(moves []stock.Movement) map[int64]map[int64]decimal.Decimal {
	held := make(map[int64]map[int64]decimal.Decimal)
	for _, m := range moves {
		byInvoice, ok := held[m.ProductID]
		if !ok {
			byInvoice = make(map[int64]decimal.Decimal)
			held[m.ProductID] = byInvoice
		}
		switch m.Direction {
		case stock.DirectionOut:
			byInvoice[m.ReferenceID] = byInvoice[m.ReferenceID].Add(m.Quantity)
		case stock.DirectionIn:
			byInvoice[m.ReferenceID] = byInvoice[m.ReferenceID].Sub(m.Quantity)
		}
	}
	return held
}

// ============================================================================
// PAYMENTS
// ============================================================================

func (s *Service) paymentFrom(ctx context.Context, input PaymentInput) (CustomerPayment, error) {
	if input.CustomerID <= 0 {
		return CustomerPayment{}, fmt.Errorf("%w: customer required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return CustomerPayment{}, ErrInvalidAmount
	}
	if input.InvoiceID != nil {
		owner, err := s.repo.InvoiceCustomer(ctx, *input.InvoiceID)
		if err != nil {
			return CustomerPayment{}, err
		}
		if owner != input.CustomerID {
			return CustomerPayment{}, ErrInvoiceCustomerMismatch
		}
	}
	return CustomerPayment{
		CustomerID:    input.CustomerID,
		InvoiceID:     input.InvoiceID,
		Amount:        input.Amount,
		Date:          s.dateOrToday(input.Date),
		PaymentMethod: strings.TrimSpace(input.PaymentMethod),
		Notes:         strings.TrimSpace(input.Notes),
	}, nil
}

// CreatePayment records a customer payment, optionally against one invoice.
func (s *Service) CreatePayment(ctx context.Context, input PaymentInput) (CustomerPayment, error) {
	p, err := s.paymentFrom(ctx, input)
	if err != nil {
		return CustomerPayment{}, err
	}
	created, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return CustomerPayment{}, err
	}
	s.recordAudit(ctx, "customer_payment.create", created.ID, map[string]any{"customer_id": created.CustomerID, "amount": created.Amount.String()})
	return created, nil
}

// UpdatePayment edits a customer payment.
func (s *Service) UpdatePayment(ctx context.Context, id int64, input PaymentInput) (CustomerPayment, error) {
	p, err := s.paymentFrom(ctx, input)
	if err != nil {
		return CustomerPayment{}, err
	}
	updated, err := s.repo.UpdatePayment(ctx, id, p)
	if err != nil {
		return CustomerPayment{}, err
	}
	s.recordAudit(ctx, "customer_payment.update", id, map[string]any{"amount": updated.Amount.String()})
	return updated, nil
}

// DeletePayment removes a customer payment.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "customer_payment.delete", id, nil)
	return nil
}

// GetPayment fetches one customer payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (CustomerPayment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments lists customer payments.
func (s *Service) ListPayments(ctx context.Context, filter ListFilter) ([]CustomerPayment, error) {
	return s.repo.ListPayments(ctx, filter)
}

// CreateHamaliPayment records hamali collected in cash outside an invoice.
func (s *Service) CreateHamaliPayment(ctx context.Context, input HamaliPaymentInput) (HamaliCashPayment, error) {
	if !input.Amount.IsPositive() {
		return HamaliCashPayment{}, ErrInvalidAmount
	}
	created, err := s.repo.CreateHamaliPayment(ctx, HamaliCashPayment{
		Amount: input.Amount,
		Date:   s.dateOrToday(input.Date),
		Notes:  strings.TrimSpace(input.Notes),
	})
	if err != nil {
		return HamaliCashPayment{}, err
	}
	s.recordAudit(ctx, "hamali_payment.create", created.ID, map[string]any{"amount": created.Amount.String()})
	return created, nil
}

// ListHamaliPayments lists hamali cash payments.
func (s *Service) ListHamaliPayments(ctx context.Context, filter ListFilter) ([]HamaliCashPayment, error) {
	return s.repo.ListHamaliPayments(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entity, _, _ := strings.Cut(action, ".")
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       time.Now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
