package products

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
	"github.com/mandi-erp/mandi/internal/stock"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	ListLowStock(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

// TxRepository inserts products together with their opening stock movement.
type TxRepository interface {
	stock.TxStore
	Insert(ctx context.Context, product Product) (Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, name, unit, purchase_price, sale_price, current_stock, reorder_level, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Unit, &p.PurchasePrice, &p.SalePrice, &p.CurrentStock, &p.ReorderLevel, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type txRepo struct {
	*stock.MirrorStore
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{MirrorStore: stock.NewMirrorStore(tx), tx: tx})
	})
}

func (t *txRepo) Insert(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO products (name, unit, purchase_price, sale_price, current_stock, reorder_level, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6, $6) RETURNING id`,
		p.Name, p.Unit, p.PurchasePrice, p.SalePrice, p.ReorderLevel, now).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p, nil
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $1`
		countQuery += ` AND name ILIKE $1`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + shared.SortOrder(filters.SortBy, filters.SortDir, "name", "current_stock", "created_at")
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) ListLowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE reorder_level > 0 AND current_stock <= reorder_level ORDER BY current_stock, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *repository) Update(ctx context.Context, id int64, p Product) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET name = $1, unit = $2, purchase_price = $3, sale_price = $4, reorder_level = $5, updated_at = NOW()
WHERE id = $6`, p.Name, p.Unit, p.PurchasePrice, p.SalePrice, p.ReorderLevel, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}
