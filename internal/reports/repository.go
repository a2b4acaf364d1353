package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// Repository runs report aggregates against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// windowArgs binds an open start as NULL.
func windowArgs(w shared.Window) []any {
	var from any
	if !w.From.IsZero() {
		from = w.From
	}
	return []any{from, w.To}
}

const windowFilter = `($1::date IS NULL OR date >= $1) AND date <= $2`

// DailySales groups invoices by date.
func (r *Repository) DailySales(ctx context.Context, w shared.Window) ([]DailyRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, COUNT(*), COALESCE(SUM(grand_total), 0),
COALESCE(SUM(hamali_charge_amount), 0), COALESCE(SUM(total_kg_weight), 0)
FROM invoices WHERE `+windowFilter+` GROUP BY date ORDER BY date`, windowArgs(w)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyRow
	for rows.Next() {
		var row DailyRow
		if err := rows.Scan(&row.Date, &row.Invoices, &row.Sales, &row.Hamali, &row.Weight); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DailyCashHamali sums standalone hamali cash payments by date.
func (r *Repository) DailyCashHamali(ctx context.Context, w shared.Window) (map[time.Time]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT date, SUM(amount) FROM hamali_cash_payments
WHERE invoice_id IS NULL AND `+windowFilter+` GROUP BY date`, windowArgs(w)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[time.Time]decimal.Decimal)
	for rows.Next() {
		var (
			date   time.Time
			amount decimal.Decimal
		)
		if err := rows.Scan(&date, &amount); err != nil {
			return nil, err
		}
		out[shared.Day(date)] = amount
	}
	return out, rows.Err()
}

func (r *Repository) sum(ctx context.Context, sql string, w shared.Window) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, sql, windowArgs(w)...).Scan(&total)
	return total, err
}

// SalesTotal sums invoice grand totals.
func (r *Repository) SalesTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(grand_total), 0) FROM invoices WHERE `+windowFilter, w)
}

// PurchaseTotal sums purchase totals.
func (r *Repository) PurchaseTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM purchases WHERE `+windowFilter, w)
}

// ReturnTotal sums vendor return totals.
func (r *Repository) ReturnTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM vendor_returns WHERE `+windowFilter, w)
}

// InvoiceHamali sums charged invoice hamali and the part paid by cash.
func (r *Repository) InvoiceHamali(ctx context.Context, w shared.Window) (HamaliTotals, error) {
	var t HamaliTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(hamali_charge_amount), 0),
COALESCE(SUM(hamali_charge_amount) FILTER (WHERE hamali_paid_by_cash), 0)
FROM invoices WHERE include_hamali_charge AND `+windowFilter, windowArgs(w)...).Scan(&t.Charged, &t.PaidByCash)
	return t, err
}

// StandaloneHamali sums hamali cash payments not tied to an invoice.
func (r *Repository) StandaloneHamali(ctx context.Context, w shared.Window) (decimal.Decimal, error) {
	return r.sum(ctx, `SELECT COALESCE(SUM(amount), 0) FROM hamali_cash_payments WHERE invoice_id IS NULL AND `+windowFilter, w)
}
