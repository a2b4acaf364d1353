package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// TxStore is the transactional storage for vehicle inventory.
type TxStore interface {
	VehicleExists(ctx context.Context, vehicleID int64) (bool, error)
	GetInventoryForUpdate(ctx context.Context, vehicleID, productID int64) (Inventory, error)
	UpsertInventory(ctx context.Context, inv Inventory) error
	InsertVehicleMovement(ctx context.Context, m Movement) (int64, error)
}

// LedgerTx combines vehicle and product stores for operations that mirror
// vehicle changes into product stock.
type LedgerTx interface {
	TxStore
	stock.TxStore
}

// InsufficientRecorder observes advisory vehicle overdrafts.
type InsufficientRecorder interface {
	VehicleStockInsufficient()
}

// Ledger applies load, sale and adjust transitions. Row locks are taken on
// the vehicle pair before the product row.
type Ledger struct {
	policy   stock.Policy
	mirror   *stock.Mirror
	logger   *slog.Logger
	recorder InsufficientRecorder
}

// NewLedger builds a Ledger. policy governs sales beyond vehicle stock.
func NewLedger(policy stock.Policy, mirror *stock.Mirror, logger *slog.Logger, recorder InsufficientRecorder) *Ledger {
	if policy == "" {
		policy = stock.PolicyAdvisory
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{policy: policy, mirror: mirror, logger: logger, recorder: recorder}
}

// Load adds qty to the vehicle and mirrors it into product stock.
func (l *Ledger) Load(ctx context.Context, tx LedgerTx, key Key, qty decimal.Decimal, src Source) (LoadResult, error) {
	if !qty.IsPositive() {
		return LoadResult{}, ErrInvalidQuantity
	}
	if err := ensureVehicle(ctx, tx, key.VehicleID); err != nil {
		return LoadResult{}, err
	}
	inv, err := lockPair(ctx, tx, key)
	if err != nil {
		return LoadResult{}, err
	}
	id, err := l.write(ctx, tx, inv, MovementLoad, qty, src)
	if err != nil {
		return LoadResult{}, err
	}
	if _, err := l.mirror.Apply(ctx, tx, stock.Change{
		ProductID:     key.ProductID,
		Direction:     stock.DirectionIn,
		Quantity:      qty,
		Date:          src.Date,
		Reason:        orDefault(src.Reason, stock.ReasonVehicleLoad),
		ReferenceType: orDefault(src.ReferenceType, stock.RefVehicle),
		ReferenceID:   orDefaultID(src.ReferenceID, key.VehicleID),
	}); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{MovementID: id, Quantity: inv.Quantity.Add(qty)}, nil
}

// Sale removes qty from the vehicle only. Under the advisory policy an
// overdraft is reported in the result and logged; the strict policy returns
// shared.ErrInsufficientStock instead.
func (l *Ledger) Sale(ctx context.Context, tx TxStore, key Key, qty decimal.Decimal, src Source) (SaleResult, error) {
	if !qty.IsPositive() {
		return SaleResult{}, ErrInvalidQuantity
	}
	if err := ensureVehicle(ctx, tx, key.VehicleID); err != nil {
		return SaleResult{}, err
	}
	inv, err := tx.GetInventoryForUpdate(ctx, key.VehicleID, key.ProductID)
	outcome := OutcomeApplied
	switch {
	case errors.Is(err, ErrInventoryNotFound):
		outcome = OutcomeMissing
		inv = Inventory{VehicleID: key.VehicleID, ProductID: key.ProductID, Quantity: decimal.Zero}
	case err != nil:
		return SaleResult{}, fmt.Errorf("fleet: lock %s: %w", key, err)
	case inv.Quantity.LessThan(qty):
		outcome = OutcomeInsufficient
	}
	res := SaleResult{Outcome: outcome, Requested: qty, Available: inv.Quantity, Quantity: inv.Quantity}
	if outcome != OutcomeApplied {
		if l.policy == stock.PolicyStrict {
			return SaleResult{}, fmt.Errorf("%w: vehicle %d has %s of product %d, requested %s",
				shared.ErrInsufficientStock, key.VehicleID, inv.Quantity, key.ProductID, qty)
		}
		l.logger.WarnContext(ctx, "vehicle stock insufficient, sale proceeds",
			slog.Int64("vehicle_id", key.VehicleID),
			slog.Int64("product_id", key.ProductID),
			slog.String("requested", qty.String()),
			slog.String("available", inv.Quantity.String()),
			slog.String("outcome", string(outcome)),
			slog.String("reference_type", src.ReferenceType),
			slog.Int64("reference_id", src.ReferenceID))
		if l.recorder != nil {
			l.recorder.VehicleStockInsufficient()
		}
		return res, nil
	}
	id, err := l.write(ctx, tx, inv, MovementSale, qty, src)
	if err != nil {
		return SaleResult{}, err
	}
	res.MovementID = id
	res.Quantity = inv.Quantity.Sub(qty)
	return res, nil
}

// Adjust sets the vehicle quantity to target, logging the difference as a
// manual load or sale and mirroring it into product stock.
func (l *Ledger) Adjust(ctx context.Context, tx LedgerTx, key Key, target decimal.Decimal, date time.Time) (AdjustResult, error) {
	if target.IsNegative() {
		return AdjustResult{}, ErrInvalidQuantity
	}
	if err := ensureVehicle(ctx, tx, key.VehicleID); err != nil {
		return AdjustResult{}, err
	}
	inv, err := lockPair(ctx, tx, key)
	if err != nil {
		return AdjustResult{}, err
	}
	diff := target.Sub(inv.Quantity)
	res := AdjustResult{Before: inv.Quantity, After: target}
	if diff.IsZero() {
		return res, nil
	}
	kind := MovementLoad
	if diff.IsNegative() {
		kind = MovementSale
	}
	src := Source{Date: date, ReferenceType: stock.RefAdjustment, Notes: NoteManualUpdate}
	id, err := l.write(ctx, tx, inv, kind, diff.Abs(), src)
	if err != nil {
		return AdjustResult{}, err
	}
	res.MovementID = id
	if _, err := l.mirror.ApplyDelta(ctx, tx, stock.Change{
		ProductID:     key.ProductID,
		Date:          date,
		Reason:        stock.ReasonManualUpdate,
		ReferenceType: stock.RefVehicle,
		ReferenceID:   key.VehicleID,
	}, diff); err != nil {
		return AdjustResult{}, err
	}
	return res, nil
}

func (l *Ledger) write(ctx context.Context, tx TxStore, inv Inventory, kind MovementType, qty decimal.Decimal, src Source) (int64, error) {
	date := src.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	next := inv.Quantity.Add(qty)
	if kind == MovementSale {
		next = inv.Quantity.Sub(qty)
	}
	inv.Quantity = next
	if err := tx.UpsertInventory(ctx, inv); err != nil {
		return 0, fmt.Errorf("fleet: upsert inventory: %w", err)
	}
	id, err := tx.InsertVehicleMovement(ctx, Movement{
		VehicleID:     inv.VehicleID,
		ProductID:     inv.ProductID,
		Type:          kind,
		Quantity:      qty,
		Date:          shared.Day(date),
		ReferenceType: src.ReferenceType,
		ReferenceID:   src.ReferenceID,
		Notes:         src.Notes,
	})
	if err != nil {
		return 0, fmt.Errorf("fleet: insert movement: %w", err)
	}
	return id, nil
}

func ensureVehicle(ctx context.Context, tx TxStore, vehicleID int64) error {
	if vehicleID <= 0 {
		return ErrVehicleNotFound
	}
	ok, err := tx.VehicleExists(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w %d", ErrVehicleNotFound, vehicleID)
	}
	return nil
}

func lockPair(ctx context.Context, tx TxStore, key Key) (Inventory, error) {
	inv, err := tx.GetInventoryForUpdate(ctx, key.VehicleID, key.ProductID)
	if errors.Is(err, ErrInventoryNotFound) {
		return Inventory{VehicleID: key.VehicleID, ProductID: key.ProductID, Quantity: decimal.Zero}, nil
	}
	if err != nil {
		return Inventory{}, fmt.Errorf("fleet: lock %s: %w", key, err)
	}
	return inv, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orDefaultID(v, fallback int64) int64 {
	if v == 0 {
		return fallback
	}
	return v
}

// Project rebuilds per-pair quantities from the movement log.
func Project(movements []Movement) map[Key]decimal.Decimal {
	out := make(map[Key]decimal.Decimal)
	for _, m := range movements {
		k := Key{VehicleID: m.VehicleID, ProductID: m.ProductID}
		switch m.Type {
		case MovementLoad:
			out[k] = out[k].Add(m.Quantity)
		case MovementSale:
			out[k] = out[k].Sub(m.Quantity)
		}
	}
	return out
}

// Summarise compares loads and sales with the vehicle's weighed baseline.
func Summarise(base Baseline, movements []Movement) LoadSummary {
	sum := LoadSummary{
		VehicleID:      base.VehicleID,
		StartingWeight: base.StartingWeight,
		StartingBags:   base.StartingBags,
		Loaded:         decimal.Zero,
		Sold:           decimal.Zero,
		WeightGain:     decimal.Zero,
		WeightLoss:     decimal.Zero,
	}
	for _, m := range movements {
		if m.VehicleID != base.VehicleID {
			continue
		}
		switch m.Type {
		case MovementLoad:
			sum.Loaded = sum.Loaded.Add(m.Quantity)
		case MovementSale:
			sum.Sold = sum.Sold.Add(m.Quantity)
		}
	}
	sum.OnHand = sum.Loaded.Sub(sum.Sold)
	if base.StartingWeight.Valid {
		diff := sum.Loaded.Sub(base.StartingWeight.Decimal)
		if diff.IsPositive() {
			sum.WeightGain = diff
		} else {
			sum.WeightLoss = diff.Neg()
		}
	}
	return sum
}
