package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// Job outcomes reported to metrics.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// StockReconciler rebuilds product stock.
type StockReconciler interface {
	Reconcile(ctx context.Context) (stock.ReconcileReport, error)
}

// VehicleReconciler rebuilds vehicle inventory.
type VehicleReconciler interface {
	Reconcile(ctx context.Context) (fleet.ReconcileReport, error)
}

// ReconcileMetrics receives job outcomes.
type ReconcileMetrics interface {
	ReconcileDrift(scope string, rows int)
	JobRun(task, outcome string)
}

// ReconcileResult summarises one run.
type ReconcileResult struct {
	Skipped        bool
	ProductsTested int
	ProductDrift   int
	PairsTested    int
	VehicleDrift   int
}

// ReconcileHandler runs stock reconciliation under a redis lock so only one
// worker reconciles at a time.
type ReconcileHandler struct {
	products StockReconciler
	vehicles VehicleReconciler
	locker   *redislock.Client
	lockTTL  time.Duration
	metrics  ReconcileMetrics
	logger   *slog.Logger
}

// NewReconcileHandler wires a ReconcileHandler. A nil locker runs unguarded.
func NewReconcileHandler(products StockReconciler, vehicles VehicleReconciler, locker *redislock.Client, lockTTL time.Duration, metrics ReconcileMetrics, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &ReconcileHandler{products: products, vehicles: vehicles, locker: locker, lockTTL: lockTTL, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskStockReconcile, err, asynq.SkipRetry)
	}
	res, err := h.Run(ctx)
	switch {
	case err != nil:
		h.record(OutcomeError)
		h.logger.ErrorContext(ctx, "stock reconcile failed", slog.String("trigger", payload.Trigger), slog.Any("error", err))
		return err
	case res.Skipped:
		h.record(OutcomeSkipped)
	default:
		h.record(OutcomeOK)
	}
	h.logger.InfoContext(ctx, "stock reconcile finished",
		slog.String("trigger", payload.Trigger),
		slog.Bool("skipped", res.Skipped),
		slog.Int("products", res.ProductsTested),
		slog.Int("product_drift", res.ProductDrift),
		slog.Int("pairs", res.PairsTested),
		slog.Int("vehicle_drift", res.VehicleDrift))
	return nil
}

// Run reconciles vehicles then products. A held lock skips the run.
func (h *ReconcileHandler) Run(ctx context.Context) (ReconcileResult, error) {
	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, shared.ReconcileLockKey, h.lockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			h.logger.InfoContext(ctx, "stock reconcile already running, skipping")
			return ReconcileResult{Skipped: true}, nil
		}
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("obtain reconcile lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				h.logger.WarnContext(ctx, "release reconcile lock", slog.Any("error", err))
			}
		}()
	}

	var res ReconcileResult
	vehicles, err := h.vehicles.Reconcile(ctx)
	if err != nil {
		return res, err
	}
	res.PairsTested, res.VehicleDrift = vehicles.Checked, len(vehicles.Drifts)
	h.drift("vehicle", res.VehicleDrift)

	products, err := h.products.Reconcile(ctx)
	if err != nil {
		return res, err
	}
	res.ProductsTested, res.ProductDrift = products.Checked, len(products.Drifts)
	h.drift("product", res.ProductDrift)
	return res, nil
}

func (h *ReconcileHandler) record(outcome string) {
	if h.metrics != nil {
		h.metrics.JobRun(TaskStockReconcile, outcome)
	}
}

func (h *ReconcileHandler) drift(scope string, rows int) {
	if h.metrics != nil {
		h.metrics.ReconcileDrift(scope, rows)
	}
}
