package stock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product stock operations outside document flows.
type Service struct {
	repo   RepositoryPort
	mirror *Mirror
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, mirror *Mirror, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, mirror: mirror, audit: audit, logger: logger}
}

// Adjust sets the product's stock to an absolute quantity by appending the
// difference as a manual movement.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Result, error) {
	if input.ProductID <= 0 {
		return Result{}, ErrProductNotFound
	}
	if input.Quantity.IsNegative() {
		return Result{}, ErrInvalidQuantity
	}
	var res Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetStockForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		reason := ReasonManualUpdate
		if input.Note != "" {
			reason = ReasonManualUpdate + ": " + input.Note
		}
		res, err = s.mirror.ApplyDelta(ctx, tx, Change{
			ProductID:     input.ProductID,
			Date:          input.Date,
			Reason:        reason,
			ReferenceType: RefAdjustment,
		}, input.Quantity.Sub(current))
		if err != nil {
			return err
		}
		if res.MovementID == 0 {
			res.Before, res.After = current, current
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.record(ctx, "stock.adjust", input.ProductID, map[string]any{
		"before": res.Before.String(),
		"after":  res.After.String(),
	})
	return res, nil
}

// Movements lists movements matching the filter.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// Card returns the product's stock card within the window. Balances are
// computed from the full history so the first row carries the true opening.
func (s *Service) Card(ctx context.Context, productID int64, window shared.Window) ([]CardEntry, error) {
	if productID <= 0 {
		return nil, ErrProductNotFound
	}
	movements, err := s.repo.ListMovements(ctx, MovementFilter{ProductID: productID})
	if err != nil {
		return nil, err
	}
	return BuildCard(movements, window), nil
}

// BuildCard folds movements into card entries, keeping those inside window.
func BuildCard(movements []Movement, window shared.Window) []CardEntry {
	level := decimal.Zero
	entries := make([]CardEntry, 0, len(movements))
	for _, m := range movements {
		var clamped bool
		level, clamped = Next(level, m.Quantity, m.Direction)
		if window.To.IsZero() || window.Contains(m.Date) {
			entries = append(entries, CardEntry{Movement: m, Balance: level, Clamped: clamped})
		}
	}
	return entries
}

// Reconcile rebuilds every product's cached stock from its movement log.
// Each product is locked and corrected in its own transaction.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var ids []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ids, err = tx.ListProductIDs(ctx)
		return err
	})
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("stock: list products: %w", err)
	}
	report := ReconcileReport{Drifts: []Drift{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		drift, changed, err := s.reconcileProduct(ctx, id)
		if err != nil {
			return report, fmt.Errorf("stock: reconcile product %d: %w", id, err)
		}
		report.Checked++
		if changed {
			report.Drifts = append(report.Drifts, drift)
			s.logger.WarnContext(ctx, "product stock drift corrected",
				slog.Int64("product_id", id),
				slog.String("cached", drift.Cached.String()),
				slog.String("derived", drift.Derived.String()))
		}
	}
	return report, nil
}

func (s *Service) reconcileProduct(ctx context.Context, productID int64) (Drift, bool, error) {
	var (
		drift   Drift
		changed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cached, err := tx.GetStockForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		movements, err := tx.ListMovementsForProduct(ctx, productID)
		if err != nil {
			return err
		}
		derived := Replay(movements)
		if cached.Equal(derived) {
			return nil
		}
		drift = Drift{ProductID: productID, Cached: cached, Derived: derived}
		changed = true
		return tx.SetStock(ctx, productID, derived)
	})
	return drift, changed, err
}

func (s *Service) record(ctx context.Context, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
		At:       time.Now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
