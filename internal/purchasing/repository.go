package purchasing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/platform/db"
	"github.com/mandi-erp/mandi/internal/stock"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. It embeds the vehicle and
// product stock stores so that every side effect of a document commits
// together.
type TxRepository interface {
	fleet.LedgerTx
	VendorExists(ctx context.Context, vendorID int64) (bool, error)
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertPurchaseItem(ctx context.Context, item PurchaseItem) (int64, error)
	PurchaseVendor(ctx context.Context, purchaseID int64) (int64, error)
	InsertReturn(ctx context.Context, ret VendorReturn) (int64, error)
	InsertReturnItem(ctx context.Context, item VendorReturnItem) (int64, error)
}

type txRepo struct {
	*fleet.InventoryStore
	*stock.MirrorStore
	tx pgx.Tx
}

// WithTx wraps callback in a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			InventoryStore: fleet.NewInventoryStore(tx),
			MirrorStore:    stock.NewMirrorStore(tx),
			tx:             tx,
		})
	})
}

func (t *txRepo) VendorExists(ctx context.Context, vendorID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`, vendorID).Scan(&ok)
	return ok, err
}

func (t *txRepo) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchases (vendor_id, vehicle_id, date, total_amount, status, notes)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')) RETURNING id`,
		p.VendorID, p.VehicleID, p.Date, p.TotalAmount, string(p.Status), p.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertPurchaseItem(ctx context.Context, item PurchaseItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_price, total)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.PurchaseID, item.ProductID, item.Quantity, item.UnitPrice, item.Total).Scan(&id)
	return id, err
}

func (t *txRepo) PurchaseVendor(ctx context.Context, purchaseID int64) (int64, error) {
	var vendorID int64
	err := t.tx.QueryRow(ctx, `SELECT vendor_id FROM purchases WHERE id = $1`, purchaseID).Scan(&vendorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w %d", ErrPurchaseNotFound, purchaseID)
	}
	return vendorID, err
}

func (t *txRepo) InsertReturn(ctx context.Context, ret VendorReturn) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO vendor_returns (vendor_id, vehicle_id, purchase_id, date, total_amount, notes)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')) RETURNING id`,
		ret.VendorID, ret.VehicleID, ret.PurchaseID, ret.Date, ret.TotalAmount, ret.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReturnItem(ctx context.Context, item VendorReturnItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO vendor_return_items (return_id, product_id, quantity, unit_price, total, reason)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')) RETURNING id`,
		item.ReturnID, item.ProductID, item.Quantity, item.UnitPrice, item.Total, item.Reason).Scan(&id)
	return id, err
}

// GetPurchase returns a purchase with its items.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	var status string
	var notes *string
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, vehicle_id, date, total_amount, status, notes, created_at
FROM purchases WHERE id = $1`, id).
		Scan(&p.ID, &p.VendorID, &p.VehicleID, &p.Date, &p.TotalAmount, &status, &notes, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, fmt.Errorf("%w %d", ErrPurchaseNotFound, id)
	}
	if err != nil {
		return Purchase{}, err
	}
	p.Status = PurchaseStatus(status)
	p.Notes = deref(notes)

	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, product_id, quantity, unit_price, total
FROM purchase_items WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return Purchase{}, err
		}
		p.Items = append(p.Items, item)
	}
	return p, rows.Err()
}

// ListPurchases returns purchase headers newest first.
func (r *Repository) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	where, args := filterClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT id, vendor_id, vehicle_id, date, total_amount, status, notes, created_at
FROM purchases`+where+pageClause(filter, len(args)), append(args, pageArgs(filter)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		var p Purchase
		var status string
		var notes *string
		if err := rows.Scan(&p.ID, &p.VendorID, &p.VehicleID, &p.Date, &p.TotalAmount, &status, &notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = PurchaseStatus(status)
		p.Notes = deref(notes)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetReturn returns a vendor return with its items.
func (r *Repository) GetReturn(ctx context.Context, id int64) (VendorReturn, error) {
	var ret VendorReturn
	var notes *string
	err := r.pool.QueryRow(ctx, `SELECT id, vendor_id, vehicle_id, purchase_id, date, total_amount, notes, created_at
FROM vendor_returns WHERE id = $1`, id).
		Scan(&ret.ID, &ret.VendorID, &ret.VehicleID, &ret.PurchaseID, &ret.Date, &ret.TotalAmount, &notes, &ret.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorReturn{}, fmt.Errorf("%w %d", ErrReturnNotFound, id)
	}
	if err != nil {
		return VendorReturn{}, err
	}
	ret.Notes = deref(notes)

	rows, err := r.pool.Query(ctx, `SELECT id, return_id, product_id, quantity, unit_price, total, COALESCE(reason, '')
FROM vendor_return_items WHERE return_id = $1 ORDER BY id`, id)
	if err != nil {
		return VendorReturn{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item VendorReturnItem
		if err := rows.Scan(&item.ID, &item.ReturnID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Total, &item.Reason); err != nil {
			return VendorReturn{}, err
		}
		ret.Items = append(ret.Items, item)
	}
	return ret, rows.Err()
}

// ListReturns returns vendor return headers newest first.
func (r *Repository) ListReturns(ctx context.Context, filter ListFilter) ([]VendorReturn, error) {
	where, args := filterClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT id, vendor_id, vehicle_id, purchase_id, date, total_amount, notes, created_at
FROM vendor_returns`+where+pageClause(filter, len(args)), append(args, pageArgs(filter)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorReturn
	for rows.Next() {
		var ret VendorReturn
		var notes *string
		if err := rows.Scan(&ret.ID, &ret.VendorID, &ret.VehicleID, &ret.PurchaseID, &ret.Date, &ret.TotalAmount, &notes, &ret.CreatedAt); err != nil {
			return nil, err
		}
		ret.Notes = deref(notes)
		out = append(out, ret)
	}
	return out, rows.Err()
}

const paymentColumns = `id, vendor_id, amount, date, COALESCE(payment_method, ''), COALESCE(notes, ''), created_at, updated_at`

func scanPayment(row pgx.Row) (VendorPayment, error) {
	var p VendorPayment
	err := row.Scan(&p.ID, &p.VendorID, &p.Amount, &p.Date, &p.PaymentMethod, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePayment inserts a vendor payment.
func (r *Repository) CreatePayment(ctx context.Context, p VendorPayment) (VendorPayment, error) {
	created, err := scanPayment(r.pool.QueryRow(ctx, `INSERT INTO vendor_payments (vendor_id, amount, date, payment_method, notes)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, '')) RETURNING `+paymentColumns,
		p.VendorID, p.Amount, p.Date, p.PaymentMethod, p.Notes))
	if err != nil {
		return VendorPayment{}, db.MapError(err)
	}
	return created, nil
}

// UpdatePayment rewrites a vendor payment.
func (r *Repository) UpdatePayment(ctx context.Context, id int64, p VendorPayment) (VendorPayment, error) {
	updated, err := scanPayment(r.pool.QueryRow(ctx, `UPDATE vendor_payments
SET vendor_id = $2, amount = $3, date = $4, payment_method = NULLIF($5, ''), notes = NULLIF($6, ''), updated_at = NOW()
WHERE id = $1 RETURNING `+paymentColumns,
		id, p.VendorID, p.Amount, p.Date, p.PaymentMethod, p.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorPayment{}, fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	if err != nil {
		return VendorPayment{}, db.MapError(err)
	}
	return updated, nil
}

// DeletePayment removes a vendor payment.
func (r *Repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vendor_payments WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	return nil
}

// GetPayment fetches one vendor payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (VendorPayment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM vendor_payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorPayment{}, fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	return p, err
}

// ListPayments returns vendor payments newest first.
func (r *Repository) ListPayments(ctx context.Context, filter ListFilter) ([]VendorPayment, error) {
	where, args := filterClause(filter)
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM vendor_payments`+where+pageClause(filter, len(args)),
		append(args, pageArgs(filter)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func filterClause(filter ListFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.VendorID > 0 {
		add("vendor_id = $%d", filter.VendorID)
	}
	if !filter.Window.From.IsZero() {
		add("date >= $%d", filter.Window.From)
	}
	if !filter.Window.To.IsZero() {
		add("date <= $%d", filter.Window.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func pageClause(filter ListFilter, argCount int) string {
	clause := " ORDER BY date DESC, id DESC"
	if filter.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount+1, argCount+2)
	}
	return clause
}

func pageArgs(filter ListFilter) []any {
	if filter.Limit <= 0 {
		return nil
	}
	return []any{filter.Limit, filter.Offset}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
