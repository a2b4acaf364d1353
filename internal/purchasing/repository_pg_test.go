package purchasing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/internal/testing/pgtest"
)

func TestPostgresPurchaseAndReturnThroughVehicle(t *testing.T) {
	pool := pgtest.Open(t, "mandi_purchasing_test")
	ctx := context.Background()

	var vendorID, vehicleID, productID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO vendors (name) VALUES ('Nashik Growers') RETURNING id`).Scan(&vendorID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO vehicles (number, vendor_id) VALUES ('MH 15 G 7', $1) RETURNING id`, vendorID).Scan(&vehicleID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (name) VALUES ('Onion') RETURNING id`).Scan(&productID))

	repo := NewRepository(pool)
	mirror := stock.NewMirror(stock.PolicyAdvisory, nil, nil)
	svc := NewService(repo, fleet.NewLedger(stock.PolicyAdvisory, mirror, nil, nil), mirror, nil, nil, nil)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	purchase, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		VendorID:  vendorID,
		VehicleID: &vehicleID,
		Date:      day,
		Items:     []LineInput{{ProductID: productID, Quantity: d("250.5"), UnitPrice: d("18.25")}},
	})
	require.NoError(t, err)

	stored, err := repo.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(d("4571.625")), stored.TotalAmount.String())
	require.Len(t, stored.Items, 1)

	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		VendorID:   vendorID,
		VehicleID:  &vehicleID,
		PurchaseID: &purchase.ID,
		Date:       day,
		Items:      []LineInput{{ProductID: productID, Quantity: d("10.5"), UnitPrice: d("18.25"), Reason: "rotten"}},
	})
	require.NoError(t, err)

	var vehicleQty, productQty decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, `SELECT quantity FROM vehicle_inventory WHERE vehicle_id = $1 AND product_id = $2`, vehicleID, productID).Scan(&vehicleQty))
	require.NoError(t, pool.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, productID).Scan(&productQty))
	assert.True(t, vehicleQty.Equal(d("240")), vehicleQty.String())
	assert.True(t, productQty.Equal(d("240")), productQty.String())
}
