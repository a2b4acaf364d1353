package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/db"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by Service.
type TxRepository interface {
	TxStore
	ListProductIDs(ctx context.Context) ([]int64, error)
	ListMovementsForProduct(ctx context.Context, productID int64) ([]Movement, error)
}

// WithTx executes the callback inside a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{MirrorStore: NewMirrorStore(tx)})
	})
}

// ListMovements returns movements matching the filter ordered by id.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return listMovements(ctx, r.pool, filter)
}

// MirrorStore implements TxStore on a pgx transaction.
type MirrorStore struct {
	tx pgx.Tx
}

// NewMirrorStore wraps tx.
func NewMirrorStore(tx pgx.Tx) *MirrorStore {
	return &MirrorStore{tx: tx}
}

// GetStockForUpdate locks the product row and returns its current stock.
func (s *MirrorStore) GetStockForUpdate(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := s.tx.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w %d", ErrProductNotFound, productID)
	}
	return qty, err
}

// SetStock overwrites the cached stock of a locked product row.
func (s *MirrorStore) SetStock(ctx context.Context, productID int64, qty decimal.Decimal) error {
	tag, err := s.tx.Exec(ctx, `UPDATE products SET current_stock = $2, updated_at = NOW() WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w %d", ErrProductNotFound, productID)
	}
	return nil
}

// InsertStockMovement appends a movement and returns its id.
func (s *MirrorStore) InsertStockMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, type, quantity, date, reason, reference_type, reference_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, 0)) RETURNING id`,
		m.ProductID, string(m.Direction), m.Quantity, m.Date, m.Reason, m.ReferenceType, m.ReferenceID).Scan(&id)
	return id, err
}

type txRepo struct {
	*MirrorStore
}

// ListStockMovements reads movements inside the transaction.
func (s *MirrorStore) ListStockMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return listMovements(ctx, s.tx, filter)
}

func (r *txRepo) ListProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *txRepo) ListMovementsForProduct(ctx context.Context, productID int64) ([]Movement, error) {
	return listMovements(ctx, r.tx, MovementFilter{ProductID: productID})
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
	if filter.ProductID > 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.ReferenceType != "" {
		add("reference_type = $%d", filter.ReferenceType)
	}
	if len(filter.ReferenceIDs) > 0 {
		add("reference_id = ANY($%d)", filter.ReferenceIDs)
	}
	if filter.Direction != "" {
		add("type = $%d", string(filter.Direction))
	}
	if !filter.Window.From.IsZero() {
		add("date >= $%d", filter.Window.From)
	}
	if !filter.Window.To.IsZero() {
		add("date <= $%d", filter.Window.To)
	}
	sql := `SELECT id, product_id, type, quantity, date, reason, COALESCE(reference_type, ''), COALESCE(reference_id, 0), created_at
FROM stock_movements`
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
			m   Movement
			dir string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &dir, &m.Quantity, &m.Date, &m.Reason, &m.ReferenceType, &m.ReferenceID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(dir)
		out = append(out, m)
	}
	return out, rows.Err()
}
