package vehicles

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
	"github.com/mandi-erp/mandi/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Vehicle, int, error)
	Get(ctx context.Context, id int64) (Vehicle, error)
	VendorExists(ctx context.Context, vendorID int64) (bool, error)
	Create(ctx context.Context, vehicle Vehicle) (Vehicle, error)
	Update(ctx context.Context, id int64, vehicle Vehicle) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const vehicleColumns = `id, number, driver, vendor_id, shop, starting_weight, starting_bags, total_weight_gain, total_weight_loss, created_at, updated_at`

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Number, &v.Driver, &v.VendorID, &v.Shop, &v.StartingWeight, &v.StartingBags,
		&v.TotalWeightGain, &v.TotalWeightLoss, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vehicle, int, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM vehicles WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (number ILIKE $1 OR driver ILIKE $1 OR shop ILIKE $1)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + shared.SortOrder(filters.SortBy, filters.SortDir, "number", "driver", "created_at")
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vehicle, error) {
	v, err := scanVehicle(r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Vehicle{}, fmt.Errorf("%w: vehicle %d", shared.ErrNotFound, id)
	}
	return v, err
}

func (r *repository) VendorExists(ctx context.Context, vendorID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&ok)
	return ok, err
}

func (r *repository) Create(ctx context.Context, v Vehicle) (Vehicle, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO vehicles (number, driver, vendor_id, shop, starting_weight, starting_bags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		v.Number, v.Driver, v.VendorID, v.Shop, v.StartingWeight, v.StartingBags, now).Scan(&v.ID)
	if err != nil {
		return Vehicle{}, db.MapError(err)
	}
	v.CreatedAt, v.UpdatedAt = now, now
	return v, nil
}

func (r *repository) Update(ctx context.Context, id int64, v Vehicle) error {
	tag, err := r.db.Exec(ctx, `UPDATE vehicles SET number = $1, driver = $2, vendor_id = $3, shop = $4,
starting_weight = $5, starting_bags = $6, updated_at = $7 WHERE id = $8`,
		v.Number, v.Driver, v.VendorID, v.Shop, v.StartingWeight, v.StartingBags, time.Now(), id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vehicle %d", shared.ErrNotFound, id)
	}
	return nil
}

// Delete removes a vehicle. Vehicles with inventory or movements are
// protected by foreign keys.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vehicle %d", shared.ErrNotFound, id)
	}
	return nil
}
