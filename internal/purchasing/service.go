package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mandi-erp/mandi/internal/billing"
	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error)
	GetReturn(ctx context.Context, id int64) (VendorReturn, error)
	ListReturns(ctx context.Context, filter ListFilter) ([]VendorReturn, error)
	CreatePayment(ctx context.Context, p VendorPayment) (VendorPayment, error)
	UpdatePayment(ctx context.Context, id int64, p VendorPayment) (VendorPayment, error)
	DeletePayment(ctx context.Context, id int64) error
	GetPayment(ctx context.Context, id int64) (VendorPayment, error)
	ListPayments(ctx context.Context, filter ListFilter) ([]VendorPayment, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates purchasing flows.
type Service struct {
	repo        RepositoryPort
	ledger      *fleet.Ledger
	mirror      *stock.Mirror
	audit       AuditPort
	idempotency shared.IdempotencyPort
	logger      *slog.Logger
}

// NewService constructs purchasing service.
func NewService(repo RepositoryPort, ledger *fleet.Ledger, mirror *stock.Mirror, audit AuditPort, idem shared.IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, ledger: ledger, mirror: mirror, audit: audit, idempotency: idem, logger: logger}
}

func priceLines(items []LineInput) ([]billing.PricedLine, error) {
	lines := make([]billing.Line, len(items))
	for i, item := range items {
		lines[i] = billing.Line{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return billing.PriceLines(lines)
}

func requireVendor(ctx context.Context, tx TxRepository, vendorID int64) error {
	if vendorID <= 0 {
		return fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	ok, err := tx.VendorExists(ctx, vendorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w %d", ErrVendorNotFound, vendorID)
	}
	return nil
}

func dateOrToday(t time.Time) time.Time {
	if t.IsZero() {
		return shared.Day(time.Now())
	}
	return shared.Day(t)
}

// CreatePurchase records the purchase and its items and books the stock. A
// purchase onto a vehicle loads the vehicle, which mirrors into product
// stock; otherwise product stock is increased directly.
func (s *Service) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (Purchase, error) {
	priced, err := priceLines(input.Items)
	if err != nil {
		return Purchase{}, err
	}
	purchase := Purchase{
		VendorID:    input.VendorID,
		VehicleID:   input.VehicleID,
		Date:        dateOrToday(input.Date),
		TotalAmount: billing.Subtotal(priced),
		Status:      PurchaseStatusCompleted,
		Notes:       strings.TrimSpace(input.Notes),
	}
	err = shared.RunOnce(ctx, s.idempotency, input.IdempotencyKey, "purchasing.purchase", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := requireVendor(ctx, tx, purchase.VendorID); err != nil {
				return err
			}
			id, err := tx.InsertPurchase(ctx, purchase)
			if err != nil {
				return err
			}
			purchase.ID = id
			purchase.Items = make([]PurchaseItem, len(priced))
			for i, line := range priced {
				item := PurchaseItem{PurchaseID: id, ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Total: line.Total}
				if item.ID, err = tx.InsertPurchaseItem(ctx, item); err != nil {
					return err
				}
				purchase.Items[i] = item
			}
			for _, i := range billing.StockOrder(priced) {
				if err := s.receive(ctx, tx, purchase, priced[i]); err != nil {
					return fmt.Errorf("purchasing: line %d: %w", i+1, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, "purchase.create", purchase.ID, map[string]any{
		"vendor_id": purchase.VendorID,
		"total":     purchase.TotalAmount.String(),
		"lines":     len(purchase.Items),
	})
	return purchase, nil
}

func (s *Service) receive(ctx context.Context, tx TxRepository, p Purchase, line billing.PricedLine) error {
	if p.VehicleID != nil {
		_, err := s.ledger.Load(ctx, tx, fleet.Key{VehicleID: *p.VehicleID, ProductID: line.ProductID}, line.Quantity, fleet.Source{
			Date:          p.Date,
			ReferenceType: stock.RefPurchase,
			ReferenceID:   p.ID,
			Notes:         "Purchase #" + strconv.FormatInt(p.ID, 10),
			Reason:        stock.ReasonPurchase,
		})
		return err
	}
	_, err := s.mirror.Apply(ctx, tx, stock.Change{
		ProductID:     line.ProductID,
		Direction:     stock.DirectionIn,
		Quantity:      line.Quantity,
		Date:          p.Date,
		Reason:        stock.ReasonPurchase,
		ReferenceType: stock.RefPurchase,
		ReferenceID:   p.ID,
	})
	return err
}

// GetPurchase returns a purchase with its items.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases lists purchase headers.
func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, filter)
}

// CreateReturn records goods sent back to a vendor. Product stock is always
// decremented; a vehicle, when given, is decremented first under the
// vehicle policy.
func (s *Service) CreateReturn(ctx context.Context, input CreateReturnInput) (VendorReturn, error) {
	priced, err := priceLines(input.Items)
	if err != nil {
		return VendorReturn{}, err
	}
	ret := VendorReturn{
		VendorID:    input.VendorID,
		VehicleID:   input.VehicleID,
		PurchaseID:  input.PurchaseID,
		Date:        dateOrToday(input.Date),
		TotalAmount: billing.Subtotal(priced),
		Notes:       strings.TrimSpace(input.Notes),
	}
	err = shared.RunOnce(ctx, s.idempotency, input.IdempotencyKey, "purchasing.return", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := requireVendor(ctx, tx, ret.VendorID); err != nil {
				return err
			}
			if ret.PurchaseID != nil {
				owner, err := tx.PurchaseVendor(ctx, *ret.PurchaseID)
				if err != nil {
					return err
				}
				if owner != ret.VendorID {
					return ErrPurchaseVendorMismatch
				}
			}
			id, err := tx.InsertReturn(ctx, ret)
			if err != nil {
				return err
			}
			ret.ID = id
			ret.Items = make([]VendorReturnItem, len(priced))
			for i, line := range priced {
				item := VendorReturnItem{
					ReturnID:  id,
					ProductID: line.ProductID,
					Quantity:  line.Quantity,
					UnitPrice: line.UnitPrice,
					Total:     line.Total,
					Reason:    strings.TrimSpace(input.Items[i].Reason),
				}
				if item.ID, err = tx.InsertReturnItem(ctx, item); err != nil {
					return err
				}
				ret.Items[i] = item
			}
			for _, i := range billing.StockOrder(priced) {
				if err := s.dispatch(ctx, tx, ret, priced[i]); err != nil {
					return fmt.Errorf("purchasing: return line %d: %w", i+1, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return VendorReturn{}, err
	}
	s.recordAudit(ctx, "vendor_return.create", ret.ID, map[string]any{
		"vendor_id": ret.VendorID,
		"total":     ret.TotalAmount.String(),
	})
	return ret, nil
}

func (s *Service) dispatch(ctx context.Context, tx TxRepository, ret VendorReturn, line billing.PricedLine) error {
	if ret.VehicleID != nil {
		if _, err := s.ledger.Sale(ctx, tx, fleet.Key{VehicleID: *ret.VehicleID, ProductID: line.ProductID}, line.Quantity, fleet.Source{
			Date:          ret.Date,
			ReferenceType: stock.RefVendorReturn,
			ReferenceID:   ret.ID,
			Notes:         "Vendor return #" + strconv.FormatInt(ret.ID, 10),
		}); err != nil {
			return err
		}
	}
	_, err := s.mirror.Apply(ctx, tx, stock.Change{
		ProductID:     line.ProductID,
		Direction:     stock.DirectionOut,
		Quantity:      line.Quantity,
		Date:          ret.Date,
		Reason:        stock.ReasonVendorReturn,
		ReferenceType: stock.RefVendorReturn,
		ReferenceID:   ret.ID,
	})
	return err
}

// GetReturn returns a vendor return with its items.
func (s *Service) GetReturn(ctx context.Context, id int64) (VendorReturn, error) {
	return s.repo.GetReturn(ctx, id)
}

// ListReturns lists vendor return headers.
func (s *Service) ListReturns(ctx context.Context, filter ListFilter) ([]VendorReturn, error) {
	return s.repo.ListReturns(ctx, filter)
}

func paymentFrom(input PaymentInput) (VendorPayment, error) {
	if input.VendorID <= 0 {
		return VendorPayment{}, fmt.Errorf("%w: vendor required", shared.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return VendorPayment{}, ErrInvalidAmount
	}
	return VendorPayment{
		VendorID:      input.VendorID,
		Amount:        input.Amount,
		Date:          dateOrToday(input.Date),
		PaymentMethod: strings.TrimSpace(input.PaymentMethod),
		Notes:         strings.TrimSpace(input.Notes),
	}, nil
}

// CreatePayment records a vendor payment.
func (s *Service) CreatePayment(ctx context.Context, input PaymentInput) (VendorPayment, error) {
	p, err := paymentFrom(input)
	if err != nil {
		return VendorPayment{}, err
	}
	created, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return VendorPayment{}, err
	}
	s.recordAudit(ctx, "vendor_payment.create", created.ID, map[string]any{"vendor_id": created.VendorID, "amount": created.Amount.String()})
	return created, nil
}

// UpdatePayment edits a vendor payment. Balances are derived, so nothing
// else needs recomputing.
func (s *Service) UpdatePayment(ctx context.Context, id int64, input PaymentInput) (VendorPayment, error) {
	p, err := paymentFrom(input)
	if err != nil {
		return VendorPayment{}, err
	}
	updated, err := s.repo.UpdatePayment(ctx, id, p)
	if err != nil {
		return VendorPayment{}, err
	}
	s.recordAudit(ctx, "vendor_payment.update", id, map[string]any{"amount": updated.Amount.String()})
	return updated, nil
}

// DeletePayment removes a vendor payment.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if err := s.repo.DeletePayment(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "vendor_payment.delete", id, nil)
	return nil
}

// GetPayment fetches one vendor payment.
func (s *Service) GetPayment(ctx context.Context, id int64) (VendorPayment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments lists vendor payments.
func (s *Service) ListPayments(ctx context.Context, filter ListFilter) ([]VendorPayment, error) {
	return s.repo.ListPayments(ctx, filter)
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
