package vendors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
	"github.com/mandi-erp/mandi/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	query, countQuery, args, countArgs := shared.ContactListQuery("vendors", filters)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vendors []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Phone, &v.Email, &v.Address, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, err
		}
		vendors = append(vendors, v)
	}
	return vendors, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	query := `SELECT id, name, phone, email, address, created_at, updated_at FROM vendors WHERE id = $1`
	var v Vendor
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Phone, &v.Email, &v.Address, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, fmt.Errorf("%w: vendor %d", shared.ErrNotFound, id)
	}
	return v, err
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	query := `INSERT INTO vendors (name, phone, email, address, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`
	now := time.Now()
	if err := r.db.QueryRow(ctx, query, vendor.Name, vendor.Phone, vendor.Email, vendor.Address, now).Scan(&vendor.ID); err != nil {
		return Vendor{}, db.MapError(err)
	}
	vendor.CreatedAt = now
	vendor.UpdatedAt = now
	return vendor, nil
}

func (r *repository) Update(ctx context.Context, id int64, vendor Vendor) error {
	query := `UPDATE vendors SET name = $1, phone = $2, email = $3, address = $4, updated_at = $5 WHERE id = $6`
	tag, err := r.db.Exec(ctx, query, vendor.Name, vendor.Phone, vendor.Email, vendor.Address, time.Now(), id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vendor %d", shared.ErrNotFound, id)
	}
	return nil
}

// Delete removes a vendor. Vendors referenced by purchases, returns,
// payments or vehicles are protected by foreign keys and yield a conflict.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vendors WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: vendor %d", shared.ErrNotFound, id)
	}
	return nil
}
