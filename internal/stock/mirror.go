package stock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// TxStore is the transactional storage the mirror writes through. Sales,
// purchasing and fleet transactions embed it so every side effect commits
// together.
type TxStore interface {
	GetStockForUpdate(ctx context.Context, productID int64) (decimal.Decimal, error)
	SetStock(ctx context.Context, productID int64, qty decimal.Decimal) error
	InsertStockMovement(ctx context.Context, m Movement) (int64, error)
}

// ClampRecorder observes clamped decrements.
type ClampRecorder interface {
	StockClamped()
}

// Next returns the mirror value after applying qty in direction dir. The
// result never drops below zero; clamped reports whether the floor absorbed
// part of an out movement.
func Next(current, qty decimal.Decimal, dir Direction) (next decimal.Decimal, clamped bool) {
	if dir == DirectionIn {
		return current.Add(qty), false
	}
	next = current.Sub(qty)
	if next.IsNegative() {
		return decimal.Zero, true
	}
	return next, false
}

// Replay folds movements in order from zero with the same clamp as Next.
func Replay(movements []Movement) decimal.Decimal {
	level := decimal.Zero
	for _, m := range movements {
		level, _ = Next(level, m.Quantity, m.Direction)
	}
	return level
}

// Mirror applies stock changes to the product mirror and the movement log.
type Mirror struct {
	policy   Policy
	logger   *slog.Logger
	recorder ClampRecorder
}

// NewMirror builds a Mirror. A nil logger discards output.
func NewMirror(policy Policy, logger *slog.Logger, recorder ClampRecorder) *Mirror {
	if policy == "" {
		policy = PolicyAdvisory
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{policy: policy, logger: logger, recorder: recorder}
}

// Policy returns the configured overdraft policy.
func (m *Mirror) Policy() Policy {
	return m.policy
}

// Apply locks the product row, moves the mirror and appends the movement.
func (m *Mirror) Apply(ctx context.Context, tx TxStore, change Change) (Result, error) {
	if change.ProductID <= 0 {
		return Result{}, ErrProductNotFound
	}
	if !change.Direction.Valid() {
		return Result{}, ErrInvalidDirection
	}
	if !change.Quantity.IsPositive() {
		return Result{}, ErrInvalidQuantity
	}
	current, err := tx.GetStockForUpdate(ctx, change.ProductID)
	if err != nil {
		return Result{}, fmt.Errorf("stock: lock product %d: %w", change.ProductID, err)
	}
	next, clamped := Next(current, change.Quantity, change.Direction)
	if clamped {
		if m.policy == PolicyStrict {
			return Result{}, fmt.Errorf("%w: product %d has %s, requested %s",
				shared.ErrInsufficientStock, change.ProductID, current, change.Quantity)
		}
		m.logger.WarnContext(ctx, "product stock clamped at zero",
			slog.Int64("product_id", change.ProductID),
			slog.String("available", current.String()),
			slog.String("requested", change.Quantity.String()),
			slog.String("reason", change.Reason))
		if m.recorder != nil {
			m.recorder.StockClamped()
		}
	}
	if err := tx.SetStock(ctx, change.ProductID, next); err != nil {
		return Result{}, fmt.Errorf("stock: update product %d: %w", change.ProductID, err)
	}
	date := change.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	id, err := tx.InsertStockMovement(ctx, Movement{
		ProductID:     change.ProductID,
		Direction:     change.Direction,
		Quantity:      change.Quantity,
		Date:          shared.Day(date),
		Reason:        change.Reason,
		ReferenceType: change.ReferenceType,
		ReferenceID:   change.ReferenceID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("stock: insert movement: %w", err)
	}
	return Result{MovementID: id, Before: current, After: next, Clamped: clamped}, nil
}

// ApplyDelta applies a signed quantity, doing nothing for zero.
func (m *Mirror) ApplyDelta(ctx context.Context, tx TxStore, change Change, delta decimal.Decimal) (Result, error) {
	switch delta.Sign() {
	case 0:
		return Result{}, nil
	case 1:
		change.Direction = DirectionIn
		change.Quantity = delta
	default:
		change.Direction = DirectionOut
		change.Quantity = delta.Neg()
	}
	return m.Apply(ctx, tx, change)
}
