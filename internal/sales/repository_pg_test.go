package sales

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/internal/testing/pgtest"
)

func newPostgresService(t *testing.T) (*Service, *Repository, *pgxpool.Pool, int64, int64) {
	t.Helper()
	pool := pgtest.Open(t, "mandi_sales_test")
	ctx := context.Background()

	var customerID, productID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO customers (name) VALUES ('Ravi Traders') RETURNING id`).Scan(&customerID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (name, current_stock) VALUES ('Onion', 500) RETURNING id`).Scan(&productID))

	repo := NewRepository(pool)
	mirror := stock.NewMirror(stock.PolicyAdvisory, nil, nil)
	svc := NewService(repo, fleet.NewLedger(stock.PolicyAdvisory, mirror, nil, nil), mirror, nil, nil, nil)
	return svc, repo, pool, customerID, productID
}

func TestPostgresInvoiceWithoutHamaliStoresNullRates(t *testing.T) {
	svc, repo, _, customerID, productID := newPostgresService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		CustomerID:    customerID,
		InvoiceNumber: "PG-1",
		Date:          saleDay,
		Items:         []ItemInput{{ProductID: productID, Quantity: d("10"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)

	stored, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, stored.HamaliRatePerKg.Valid)
	assert.False(t, stored.HamaliRatePerBag.Valid)
	assert.True(t, stored.GrandTotal.Equal(d("100")))

	price := d("11")
	updated, err := svc.UpdateInvoiceItem(ctx, inv.ID, stored.Items[0].ID, ItemPatch{UnitPrice: &price})
	require.NoError(t, err)
	assert.True(t, updated.GrandTotal.Equal(d("110")))
}

func TestPostgresInvoiceEditRoundTripKeepsPrecision(t *testing.T) {
	svc, repo, pool, customerID, productID := newPostgresService(t)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		CustomerID:    customerID,
		InvoiceNumber: "PG-2",
		Date:          saleDay,
		Items: []ItemInput{{
			ProductID:       productID,
			UnitPrice:       d("10.333"),
			WeightBreakdown: []decimal.Decimal{d("12.3456"), d("7.1")},
		}},
		Hamali: HamaliInput{Include: true, RatePerKg: nd("0.125")},
	})
	require.NoError(t, err)

	stored, err := repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, stored.HamaliRatePerKg.Valid)
	assert.True(t, stored.HamaliRatePerKg.Decimal.Equal(d("0.125")))
	assert.False(t, stored.HamaliRatePerBag.Valid)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Quantity.Equal(d("19.4456")), stored.Items[0].Quantity.String())
	assert.Len(t, stored.Items[0].WeightBreakdown, 2)
	assert.True(t, stored.HamaliChargeAmount.Equal(d("2.4307")), stored.HamaliChargeAmount.String())
	assert.True(t, stored.GrandTotal.Equal(stored.Subtotal.Add(stored.HamaliChargeAmount)))

	price := d("12")
	_, err = svc.UpdateInvoiceItem(ctx, inv.ID, stored.Items[0].ID, ItemPatch{UnitPrice: &price})
	require.NoError(t, err)

	stored, err = repo.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.HamaliChargeAmount.Equal(d("2.4307")))
	assert.True(t, stored.Subtotal.Equal(d("233.3472")), stored.Subtotal.String())
	assert.True(t, stored.GrandTotal.Equal(stored.Subtotal.Add(stored.HamaliChargeAmount)))

	var onHand decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, productID).Scan(&onHand))
	assert.True(t, onHand.Equal(d("480.5544")), onHand.String())
}

func TestPostgresRejectsBothHamaliRates(t *testing.T) {
	_, _, pool, customerID, _ := newPostgresService(t)
	_, err := pool.Exec(context.Background(), `INSERT INTO invoices (customer_id, invoice_number, date, hamali_rate_per_kg, hamali_rate_per_bag)
VALUES ($1, 'PG-3', '2024-03-15', 1, 2)`, customerID)
	require.Error(t, err)
}
