package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListInventory(ctx context.Context, vehicleID int64) ([]Inventory, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	GetBaseline(ctx context.Context, vehicleID int64) (Baseline, error)
	SaveWeightReconciliation(ctx context.Context, vehicleID int64, gain, loss decimal.Decimal) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes the vehicle ledger outside document flows.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger *Ledger, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, ledger: ledger, audit: audit, logger: logger}
}

// Load puts stock on a vehicle and into product stock.
func (s *Service) Load(ctx context.Context, input LoadInput) (LoadResult, error) {
	var res LoadResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = s.ledger.Load(ctx, tx, Key{VehicleID: input.VehicleID, ProductID: input.ProductID}, input.Quantity, Source{
			Date:          input.Date,
			ReferenceType: stock.RefVehicle,
			ReferenceID:   input.VehicleID,
			Notes:         input.Notes,
		})
		return err
	})
	return res, err
}

// Deduct sells stock off a vehicle without an invoice.
func (s *Service) Deduct(ctx context.Context, input DeductInput) (SaleResult, error) {
	var res SaleResult
	key := Key{VehicleID: input.VehicleID, ProductID: input.ProductID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = s.ledger.Sale(ctx, tx, key, input.Quantity, Source{
			Date:          input.Date,
			ReferenceType: stock.RefVehicle,
			ReferenceID:   input.VehicleID,
			Notes:         input.Notes,
		})
		if err != nil || !input.MirrorProduct {
			return err
		}
		_, err = s.ledger.mirror.Apply(ctx, tx, stock.Change{
			ProductID:     input.ProductID,
			Direction:     stock.DirectionOut,
			Quantity:      input.Quantity,
			Date:          input.Date,
			Reason:        stock.ReasonSale,
			ReferenceType: stock.RefVehicle,
			ReferenceID:   input.VehicleID,
		})
		return err
	})
	return res, err
}

// Adjust corrects a vehicle's quantity of a product.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (AdjustResult, error) {
	var res AdjustResult
	key := Key{VehicleID: input.VehicleID, ProductID: input.ProductID}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		res, err = s.ledger.Adjust(ctx, tx, key, input.Quantity, input.Date)
		return err
	})
	if err != nil {
		return AdjustResult{}, err
	}
	if s.audit != nil && res.MovementID != 0 {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "vehicle_inventory.adjust",
			Entity:   "vehicle",
			EntityID: strconv.FormatInt(input.VehicleID, 10),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"before":     res.Before.String(),
				"after":      res.After.String(),
			},
			At: time.Now(),
		}); err != nil {
			s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
		}
	}
	return res, nil
}

// Inventory lists what a vehicle currently carries.
func (s *Service) Inventory(ctx context.Context, vehicleID int64) ([]Inventory, error) {
	if vehicleID <= 0 {
		return nil, ErrVehicleNotFound
	}
	return s.repo.ListInventory(ctx, vehicleID)
}

// Movements lists movements matching the filter.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// LoadSummary compares the vehicle's weighed baseline with its loads and
// stores the resulting gain or loss on the vehicle.
func (s *Service) LoadSummary(ctx context.Context, vehicleID int64) (LoadSummary, error) {
	base, err := s.repo.GetBaseline(ctx, vehicleID)
	if err != nil {
		return LoadSummary{}, err
	}
	movements, err := s.repo.ListMovements(ctx, MovementFilter{VehicleID: vehicleID})
	if err != nil {
		return LoadSummary{}, err
	}
	summary := Summarise(base, movements)
	if base.StartingWeight.Valid {
		if err := s.repo.SaveWeightReconciliation(ctx, vehicleID, summary.WeightGain, summary.WeightLoss); err != nil {
			return LoadSummary{}, err
		}
	}
	return summary, nil
}

// Reconcile rebuilds every pair's cached quantity from its movement log.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var keys []Key
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		keys, err = tx.ListPairs(ctx)
		return err
	})
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("fleet: list pairs: %w", err)
	}
	report := ReconcileReport{Drifts: []Drift{}}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var (
			drift   Drift
			changed bool
		)
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := lockPair(ctx, tx, key)
			if err != nil {
				return err
			}
			movements, err := tx.ListMovementsForPair(ctx, key)
			if err != nil {
				return err
			}
			derived := Project(movements)[key]
			if derived.IsNegative() {
				derived = decimal.Zero
			}
			if inv.Quantity.Equal(derived) {
				return nil
			}
			drift = Drift{VehicleID: key.VehicleID, ProductID: key.ProductID, Cached: inv.Quantity, Derived: derived}
			changed = true
			inv.Quantity = derived
			return tx.UpsertInventory(ctx, inv)
		})
		if err != nil {
			return report, fmt.Errorf("fleet: reconcile %s: %w", key, err)
		}
		report.Checked++
		if changed {
			report.Drifts = append(report.Drifts, drift)
			s.logger.WarnContext(ctx, "vehicle inventory drift corrected",
				slog.Int64("vehicle_id", key.VehicleID),
				slog.Int64("product_id", key.ProductID),
				slog.String("cached", drift.Cached.String()),
				slog.String("derived", drift.Derived.String()))
		}
	}
	return report, nil
}
