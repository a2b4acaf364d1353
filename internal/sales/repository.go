package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/billing"
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

// TxRepository exposes transactional operations. Vehicle and product stock
// stores are embedded so an invoice and its stock effects commit together.
type TxRepository interface {
	fleet.LedgerTx
	ListStockMovements(ctx context.Context, filter stock.MovementFilter) ([]stock.Movement, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoiceItem(ctx context.Context, item InvoiceItem) error
	DeleteInvoiceItems(ctx context.Context, invoiceID int64) error
	InsertHamaliPayment(ctx context.Context, p HamaliCashPayment) (int64, error)
	DeleteInvoiceHamaliPayments(ctx context.Context, invoiceIDs []int64) error
	UnlinkCustomerPayments(ctx context.Context, invoiceIDs []int64) error
	DeleteInvoices(ctx context.Context, ids []int64) (int64, error)
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

const invoiceColumns = `id, customer_id, vehicle_id, invoice_number, date, subtotal, bags, include_hamali_charge,
hamali_rate_per_kg, hamali_rate_per_bag, hamali_charge_amount, hamali_paid_by_cash, total_kg_weight,
grand_total, status, COALESCE(notes, ''), created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv    Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.VehicleID, &inv.InvoiceNumber, &inv.Date, &inv.Subtotal, &inv.Bags,
		&inv.IncludeHamali, &inv.HamaliRatePerKg, &inv.HamaliRatePerBag, &inv.HamaliChargeAmount, &inv.HamaliPaidByCash,
		&inv.TotalKgWeight, &inv.GrandTotal, &status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Status = InvoiceStatus(status)
	return inv, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q queryer, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, product_id, quantity, unit_price, total, COALESCE(weight_breakdown, '[]'::jsonb)
FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Total, &it.WeightBreakdown); err != nil {
			return nil, err
		}
		if len(it.WeightBreakdown) == 0 {
			it.WeightBreakdown = nil
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// breakdownParam stores an absent breakdown as SQL NULL.
func breakdownParam(b []decimal.Decimal) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (t *txRepo) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&ok)
	return ok, err
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (customer_id, vehicle_id, invoice_number, date, subtotal, bags,
include_hamali_charge, hamali_rate_per_kg, hamali_rate_per_bag, hamali_charge_amount, hamali_paid_by_cash,
total_kg_weight, grand_total, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, '')) RETURNING id`,
		inv.CustomerID, inv.VehicleID, inv.InvoiceNumber, inv.Date, inv.Subtotal, inv.Bags,
		inv.IncludeHamali, inv.HamaliRatePerKg, inv.HamaliRatePerBag, inv.HamaliChargeAmount, inv.HamaliPaidByCash,
		inv.TotalKgWeight, inv.GrandTotal, string(inv.Status), inv.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertInvoiceItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price, total, weight_breakdown)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.InvoiceID, item.ProductID, item.Quantity, item.UnitPrice, item.Total, breakdownParam(item.WeightBreakdown)).Scan(&id)
	return id, err
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("%w %d", ErrInvoiceNotFound, id)
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = loadItems(ctx, t.tx, id)
	return inv, err
}

func (t *txRepo) UpdateInvoice(ctx context.Context, inv Invoice) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET subtotal = $2, bags = $3, include_hamali_charge = $4,
hamali_rate_per_kg = $5, hamali_rate_per_bag = $6, hamali_charge_amount = $7, hamali_paid_by_cash = $8,
total_kg_weight = $9, grand_total = $10, status = $11, notes = NULLIF($12, ''), updated_at = NOW()
WHERE id = $1`,
		inv.ID, inv.Subtotal, inv.Bags, inv.IncludeHamali, inv.HamaliRatePerKg, inv.HamaliRatePerBag,
		inv.HamaliChargeAmount, inv.HamaliPaidByCash, inv.TotalKgWeight, inv.GrandTotal, string(inv.Status), inv.Notes)
	return err
}

func (t *txRepo) UpdateInvoiceItem(ctx context.Context, item InvoiceItem) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoice_items SET quantity = $3, unit_price = $4, total = $5, weight_breakdown = $6
WHERE id = $1 AND invoice_id = $2`,
		item.ID, item.InvoiceID, item.Quantity, item.UnitPrice, item.Total, breakdownParam(item.WeightBreakdown))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w %d", ErrItemNotFound, item.ID)
	}
	return nil
}

func (t *txRepo) DeleteInvoiceItems(ctx context.Context, invoiceID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (t *txRepo) InsertHamaliPayment(ctx context.Context, p HamaliCashPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO hamali_cash_payments (invoice_id, amount, date, notes)
VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id`, p.InvoiceID, p.Amount, p.Date, p.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) DeleteInvoiceHamaliPayments(ctx context.Context, invoiceIDs []int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM hamali_cash_payments WHERE invoice_id = ANY($1)`, invoiceIDs)
	return err
}

func (t *txRepo) UnlinkCustomerPayments(ctx context.Context, invoiceIDs []int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE customer_payments SET invoice_id = NULL, updated_at = NOW() WHERE invoice_id = ANY($1)`, invoiceIDs)
	return err
}

func (t *txRepo) DeleteInvoices(ctx context.Context, ids []int64) (int64, error) {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = ANY($1)`, ids); err != nil {
		return 0, err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetInvoice returns an invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("%w %d", ErrInvoiceNotFound, id)
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Items, err = loadItems(ctx, r.pool, id)
	return inv, err
}

// ListInvoices returns invoice headers newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	where, args := filterClause(filter, "customer_id")
	if filter.VehicleID > 0 {
		args = append(args, filter.VehicleID)
		where = andClause(where, fmt.Sprintf("vehicle_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = andClause(where, fmt.Sprintf("status = $%d", len(args)))
	}
	sql := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY date DESC, id DESC`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// SaleSamples returns a product's invoice lines on one calendar date.
func (r *Repository) SaleSamples(ctx context.Context, productID int64, date time.Time) ([]billing.SaleSample, error) {
	rows, err := r.pool.Query(ctx, `SELECT ii.quantity, ii.total FROM invoice_items ii
JOIN invoices i ON i.id = ii.invoice_id
WHERE ii.product_id = $1 AND i.date = $2`, productID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []billing.SaleSample
	for rows.Next() {
		var s billing.SaleSample
		if err := rows.Scan(&s.Quantity, &s.Total); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetSalePrice stores a product's discovered sale price.
func (r *Repository) SetSalePrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET sale_price = $2, updated_at = NOW() WHERE id = $1`, productID, price)
	return err
}

// InvoiceCustomer returns the customer an invoice was issued to.
func (r *Repository) InvoiceCustomer(ctx context.Context, invoiceID int64) (int64, error) {
	var customerID int64
	err := r.pool.QueryRow(ctx, `SELECT customer_id FROM invoices WHERE id = $1`, invoiceID).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w %d", ErrInvoiceNotFound, invoiceID)
	}
	return customerID, err
}

const paymentColumns = `id, customer_id, invoice_id, amount, date, COALESCE(payment_method, ''), COALESCE(notes, ''), created_at, updated_at`

func scanPayment(row pgx.Row) (CustomerPayment, error) {
	var p CustomerPayment
	err := row.Scan(&p.ID, &p.CustomerID, &p.InvoiceID, &p.Amount, &p.Date, &p.PaymentMethod, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePayment inserts a customer payment.
func (r *Repository) CreatePayment(ctx context.Context, p CustomerPayment) (CustomerPayment, error) {
	created, err := scanPayment(r.pool.QueryRow(ctx, `INSERT INTO customer_payments (customer_id, invoice_id, amount, date, payment_method, notes)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')) RETURNING `+paymentColumns,
		p.CustomerID, p.InvoiceID, p.Amount, p.Date, p.PaymentMethod, p.Notes))
	if err != nil {
		return CustomerPayment{}, db.MapError(err)
	}
	return created, nil
}

// UpdatePayment rewrites a customer payment.
func (r *Repository) UpdatePayment(ctx context.Context, id int64, p CustomerPayment) (CustomerPayment, error) {
	updated, err := scanPayment(r.pool.QueryRow(ctx, `UPDATE customer_payments
SET customer_id = $2, invoice_id = $3, amount = $4, date = $5, payment_method = NULLIF($6, ''), notes = NULLIF($7, ''), updated_at = NOW()
WHERE id = $1 RETURNING `+paymentColumns,
		id, p.CustomerID, p.InvoiceID, p.Amount, p.Date, p.PaymentMethod, p.Notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerPayment{}, fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	if err != nil {
		return CustomerPayment{}, db.MapError(err)
	}
	return updated, nil
}

// DeletePayment removes a customer payment.
func (r *Repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customer_payments WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	return nil
}

// GetPayment fetches one customer payment.
func (r *Repository) GetPayment(ctx context.Context, id int64) (CustomerPayment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM customer_payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerPayment{}, fmt.Errorf("%w %d", ErrPaymentNotFound, id)
	}
	return p, err
}

// ListPayments returns customer payments newest first.
func (r *Repository) ListPayments(ctx context.Context, filter ListFilter) ([]CustomerPayment, error) {
	where, args := filterClause(filter, "customer_id")
	sql := `SELECT ` + paymentColumns + ` FROM customer_payments` + where + ` ORDER BY date DESC, id DESC`
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CustomerPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateHamaliPayment inserts a standalone hamali cash payment.
func (r *Repository) CreateHamaliPayment(ctx context.Context, p HamaliCashPayment) (HamaliCashPayment, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO hamali_cash_payments (invoice_id, amount, date, notes)
VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id, created_at`, p.InvoiceID, p.Amount, p.Date, p.Notes).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return HamaliCashPayment{}, db.MapError(err)
	}
	return p, nil
}

// ListHamaliPayments returns hamali cash payments in the window.
func (r *Repository) ListHamaliPayments(ctx context.Context, filter ListFilter) ([]HamaliCashPayment, error) {
	where, args := filterClause(ListFilter{Window: filter.Window}, "")
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, amount, date, COALESCE(notes, ''), created_at
FROM hamali_cash_payments`+where+` ORDER BY date DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HamaliCashPayment
	for rows.Next() {
		var p HamaliCashPayment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Date, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func filterClause(filter ListFilter, partyColumn string) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if partyColumn != "" && filter.CustomerID > 0 {
		add(partyColumn+" = $%d", filter.CustomerID)
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
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func andClause(where, clause string) string {
	if where == "" {
		return " WHERE " + clause
	}
	return where + " AND " + clause
}
