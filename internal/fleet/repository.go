package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

// Repository persists vehicle inventory in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by Service.
type TxRepository interface {
	LedgerTx
	ListPairs(ctx context.Context) ([]Key, error)
	ListMovementsForPair(ctx context.Context, key Key) ([]Movement, error)
}

type txRepo struct {
	*InventoryStore
	*stock.MirrorStore
}

// WithTx executes the callback inside a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{InventoryStore: NewInventoryStore(tx), MirrorStore: stock.NewMirrorStore(tx)})
	})
}

// ListInventory returns the non-empty inventory rows of a vehicle.
func (r *Repository) ListInventory(ctx context.Context, vehicleID int64) ([]Inventory, error) {
	rows, err := r.pool.Query(ctx, `SELECT vi.vehicle_id, vi.product_id, p.name, vi.quantity, vi.updated_at
FROM vehicle_inventory vi JOIN products p ON p.id = vi.product_id
WHERE vi.vehicle_id = $1 AND vi.quantity > 0
ORDER BY p.name`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Inventory
	for rows.Next() {
		var inv Inventory
		if err := rows.Scan(&inv.VehicleID, &inv.ProductID, &inv.ProductName, &inv.Quantity, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListMovements returns movements matching the filter ordered by id.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return listMovements(ctx, r.pool, filter)
}

// GetBaseline reads the weighed starting load of a vehicle.
func (r *Repository) GetBaseline(ctx context.Context, vehicleID int64) (Baseline, error) {
	b := Baseline{VehicleID: vehicleID}
	err := r.pool.QueryRow(ctx, `SELECT starting_weight, starting_bags FROM vehicles WHERE id = $1`, vehicleID).
		Scan(&b.StartingWeight, &b.StartingBags)
	if errors.Is(err, pgx.ErrNoRows) {
		return Baseline{}, fmt.Errorf("%w %d", ErrVehicleNotFound, vehicleID)
	}
	return b, err
}

// SaveWeightReconciliation stores the computed gain and loss on the vehicle.
func (r *Repository) SaveWeightReconciliation(ctx context.Context, vehicleID int64, gain, loss decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `UPDATE vehicles SET total_weight_gain = $2, total_weight_loss = $3, updated_at = NOW() WHERE id = $1`, vehicleID, gain, loss)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w %d", ErrVehicleNotFound, vehicleID)
	}
	return nil
}

// InventoryStore implements TxStore on a pgx transaction.
type InventoryStore struct {
	tx pgx.Tx
}

// NewInventoryStore wraps tx.
func NewInventoryStore(tx pgx.Tx) *InventoryStore {
	return &InventoryStore{tx: tx}
}

// VehicleExists reports whether the vehicle row exists.
func (s *InventoryStore) VehicleExists(ctx context.Context, vehicleID int64) (bool, error) {
	var ok bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`, vehicleID).Scan(&ok)
	return ok, err
}

// GetInventoryForUpdate locks the pair's row, creating it at zero first so
// that concurrent first loads serialise on the same row. A row created by
// this call is reported as ErrInventoryNotFound.
func (s *InventoryStore) GetInventoryForUpdate(ctx context.Context, vehicleID, productID int64) (Inventory, error) {
	var created bool
	err := s.tx.QueryRow(ctx, `INSERT INTO vehicle_inventory (vehicle_id, product_id, quantity)
VALUES ($1, $2, 0) ON CONFLICT (vehicle_id, product_id) DO NOTHING RETURNING true`, vehicleID, productID).Scan(&created)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Inventory{}, fmt.Errorf("%w: vehicle %d or product %d", shared.ErrNotFound, vehicleID, productID)
		}
		return Inventory{}, err
	}
	inv := Inventory{VehicleID: vehicleID, ProductID: productID}
	err = s.tx.QueryRow(ctx, `SELECT quantity, updated_at FROM vehicle_inventory
WHERE vehicle_id = $1 AND product_id = $2 FOR UPDATE`, vehicleID, productID).Scan(&inv.Quantity, &inv.UpdatedAt)
	if err != nil {
		return Inventory{}, err
	}
	if created {
		return inv, ErrInventoryNotFound
	}
	return inv, nil
}

// UpsertInventory writes the pair's cached quantity.
func (s *InventoryStore) UpsertInventory(ctx context.Context, inv Inventory) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO vehicle_inventory (vehicle_id, product_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (vehicle_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`,
		inv.VehicleID, inv.ProductID, inv.Quantity)
	return err
}

// InsertVehicleMovement appends a movement and returns its id.
func (s *InventoryStore) InsertVehicleMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO vehicle_inventory_movements
(vehicle_id, product_id, type, quantity, date, reference_type, reference_id, notes)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0), NULLIF($8, '')) RETURNING id`,
		m.VehicleID, m.ProductID, string(m.Type), m.Quantity, m.Date, m.ReferenceType, m.ReferenceID, m.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) ListPairs(ctx context.Context) ([]Key, error) {
	rows, err := r.InventoryStore.tx.Query(ctx, `SELECT vehicle_id, product_id FROM vehicle_inventory
UNION
SELECT DISTINCT vehicle_id, product_id FROM vehicle_inventory_movements
ORDER BY 1, 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.VehicleID, &k.ProductID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *txRepo) ListMovementsForPair(ctx context.Context, key Key) ([]Movement, error) {
	return listMovements(ctx, r.InventoryStore.tx, MovementFilter{VehicleID: key.VehicleID, ProductID: key.ProductID})
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listMovements(ctx context.Context, q queryer, filter MovementFilter) ([]Movement, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.VehicleID > 0 {
		add("vehicle_id = $%d", filter.VehicleID)
	}
	if filter.ProductID > 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.ReferenceType != "" {
		add("reference_type = $%d", filter.ReferenceType)
	}
	sql := `SELECT id, vehicle_id, product_id, type, quantity, date, COALESCE(reference_type, ''), COALESCE(reference_id, 0), COALESCE(notes, ''), created_at
FROM vehicle_inventory_movements`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	sql += " ORDER BY id"
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var (
			m    Movement
			kind string
		)
		if err := rows.Scan(&m.ID, &m.VehicleID, &m.ProductID, &kind, &m.Quantity, &m.Date, &m.ReferenceType, &m.ReferenceID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}
