// Package memdb provides in-memory implementations of the stock and fleet
// transactional stores for service tests.
package memdb

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/stock"
)

// Stock holds product stock, vehicle inventory and both movement logs. It
// satisfies fleet.LedgerTx. Tx rolls the whole store back when fn fails.
type Stock struct {
	mu sync.Mutex

	Products       map[int64]decimal.Decimal
	Vehicles       map[int64]bool
	Inventory      map[fleet.Key]fleet.Inventory
	StockMoves     []stock.Movement
	VehicleMoves   []fleet.Movement
	nextMovementID int64
}

// NewStock seeds products at zero stock and the given vehicles.
func NewStock(productIDs []int64, vehicleIDs []int64) *Stock {
	s := &Stock{
		Products:  make(map[int64]decimal.Decimal),
		Vehicles:  make(map[int64]bool),
		Inventory: make(map[fleet.Key]fleet.Inventory),
	}
	for _, id := range productIDs {
		s.Products[id] = decimal.Zero
	}
	for _, id := range vehicleIDs {
		s.Vehicles[id] = true
	}
	return s
}

type snapshot struct {
	products     map[int64]decimal.Decimal
	inventory    map[fleet.Key]fleet.Inventory
	stockMoves   []stock.Movement
	vehicleMoves []fleet.Movement
}

func (s *Stock) snapshot() snapshot {
	snap := snapshot{
		products:     make(map[int64]decimal.Decimal, len(s.Products)),
		inventory:    make(map[fleet.Key]fleet.Inventory, len(s.Inventory)),
		stockMoves:   append([]stock.Movement(nil), s.StockMoves...),
		vehicleMoves: append([]fleet.Movement(nil), s.VehicleMoves...),
	}
	for k, v := range s.Products {
		snap.products[k] = v
	}
	for k, v := range s.Inventory {
		snap.inventory[k] = v
	}
	return snap
}

func (s *Stock) restore(snap snapshot) {
	s.Products = snap.products
	s.Inventory = snap.inventory
	s.StockMoves = snap.stockMoves
	s.VehicleMoves = snap.vehicleMoves
}

// Tx runs fn under the store lock and rolls back state when fn fails.
func (s *Stock) Tx(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Quantity returns the cached vehicle quantity of a pair.
func (s *Stock) Quantity(vehicleID, productID int64) decimal.Decimal {
	return s.Inventory[fleet.Key{VehicleID: vehicleID, ProductID: productID}].Quantity
}

func (s *Stock) VehicleExists(_ context.Context, vehicleID int64) (bool, error) {
	return s.Vehicles[vehicleID], nil
}

func (s *Stock) GetInventoryForUpdate(_ context.Context, vehicleID, productID int64) (fleet.Inventory, error) {
	inv, ok := s.Inventory[fleet.Key{VehicleID: vehicleID, ProductID: productID}]
	if !ok {
		return fleet.Inventory{VehicleID: vehicleID, ProductID: productID}, fleet.ErrInventoryNotFound
	}
	return inv, nil
}

func (s *Stock) UpsertInventory(_ context.Context, inv fleet.Inventory) error {
	s.Inventory[fleet.Key{VehicleID: inv.VehicleID, ProductID: inv.ProductID}] = inv
	return nil
}

func (s *Stock) InsertVehicleMovement(_ context.Context, m fleet.Movement) (int64, error) {
	s.nextMovementID++
	m.ID = s.nextMovementID
	s.VehicleMoves = append(s.VehicleMoves, m)
	return m.ID, nil
}

func (s *Stock) GetStockForUpdate(_ context.Context, productID int64) (decimal.Decimal, error) {
	qty, ok := s.Products[productID]
	if !ok {
		return decimal.Zero, stock.ErrProductNotFound
	}
	return qty, nil
}

func (s *Stock) SetStock(_ context.Context, productID int64, qty decimal.Decimal) error {
	s.Products[productID] = qty
	return nil
}

func (s *Stock) InsertStockMovement(_ context.Context, m stock.Movement) (int64, error) {
	s.nextMovementID++
	m.ID = s.nextMovementID
	s.StockMoves = append(s.StockMoves, m)
	return m.ID, nil
}

func (s *Stock) ListStockMovements(_ context.Context, f stock.MovementFilter) ([]stock.Movement, error) {
	refs := make(map[int64]bool, len(f.ReferenceIDs))
	for _, id := range f.ReferenceIDs {
		refs[id] = true
	}
	var out []stock.Movement
	for _, m := range s.StockMoves {
		switch {
		case f.ProductID > 0 && m.ProductID != f.ProductID:
		case f.ReferenceType != "" && m.ReferenceType != f.ReferenceType:
		case len(refs) > 0 && !refs[m.ReferenceID]:
		case f.Direction != "" && m.Direction != f.Direction:
		default:
			out = append(out, m)
		}
	}
	return out, nil
}

// MovementsFor returns the product movements tied to a reference.
func (s *Stock) MovementsFor(refType string, refID int64) []stock.Movement {
	var out []stock.Movement
	for _, m := range s.StockMoves {
		if m.ReferenceType == refType && m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out
}
