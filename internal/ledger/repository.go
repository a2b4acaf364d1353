package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads ledger entries from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const vendorEntriesSQL = `SELECT date, 'billed', 'purchase', id, '', total_amount FROM purchases WHERE vendor_id = $1
UNION ALL
SELECT date, 'paid', 'vendor_payment', id, COALESCE(payment_method, ''), amount FROM vendor_payments WHERE vendor_id = $1
UNION ALL
SELECT date, 'returned', 'vendor_return', id, '', total_amount FROM vendor_returns WHERE vendor_id = $1
ORDER BY 1, 3, 4`

const customerEntriesSQL = `SELECT date, 'billed', 'invoice', id, invoice_number, grand_total FROM invoices WHERE customer_id = $1
UNION ALL
SELECT date, 'paid', 'customer_payment', id, COALESCE(payment_method, ''), amount FROM customer_payments WHERE customer_id = $1
ORDER BY 1, 3, 4`

// VendorEntries returns every balance-affecting document of a vendor.
func (r *Repository) VendorEntries(ctx context.Context, vendorID int64) ([]Entry, error) {
	return r.entries(ctx, vendorEntriesSQL, vendorID)
}

// CustomerEntries returns every balance-affecting document of a customer.
func (r *Repository) CustomerEntries(ctx context.Context, customerID int64) ([]Entry, error) {
	return r.entries(ctx, customerEntriesSQL, customerID)
}

func (r *Repository) entries(ctx context.Context, sql string, id int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, sql, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.Date, &kind, &e.Source, &e.SourceID, &e.Reference, &e.Amount); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

// PartyExists reports whether the vendor or customer row exists.
func (r *Repository) PartyExists(ctx context.Context, party Party, id int64) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1)`
	if party == PartyCustomer {
		sql = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`
	}
	var ok bool
	err := r.pool.QueryRow(ctx, sql, id).Scan(&ok)
	return ok, err
}

// ListSummaries totals every vendor or customer ledger in one query.
func (r *Repository) ListSummaries(ctx context.Context, party Party) ([]Summary, error) {
	sql := `SELECT v.id, v.name,
	COALESCE((SELECT SUM(total_amount) FROM purchases WHERE vendor_id = v.id), 0),
	COALESCE((SELECT SUM(amount) FROM vendor_payments WHERE vendor_id = v.id), 0),
	COALESCE((SELECT SUM(total_amount) FROM vendor_returns WHERE vendor_id = v.id), 0)
FROM vendors v ORDER BY v.name`
	if party == PartyCustomer {
		sql = `SELECT c.id, c.name,
	COALESCE((SELECT SUM(grand_total) FROM invoices WHERE customer_id = c.id), 0),
	COALESCE((SELECT SUM(amount) FROM customer_payments WHERE customer_id = c.id), 0),
	0
FROM customers c ORDER BY c.name`
	}
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		s := Summary{Party: party}
		err := row.Scan(&s.PartyID, &s.Name, &s.Billed, &s.Paid, &s.Returned)
		s.Balance = s.Billed.Sub(s.Paid).Sub(s.Returned)
		return s, err
	})
}
