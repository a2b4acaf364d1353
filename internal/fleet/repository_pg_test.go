package fleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/internal/testing/pgtest"
)

func TestPostgresConcurrentFirstLoadsShareOneRow(t *testing.T) {
	pool := pgtest.Open(t, "mandi_fleet_test")
	ctx := context.Background()

	var vehicleID, productID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO vehicles (number) VALUES ('MH 12 AB 4321') RETURNING id`).Scan(&vehicleID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (name) VALUES ('Tomato') RETURNING id`).Scan(&productID))

	mirror := stock.NewMirror(stock.PolicyAdvisory, nil, nil)
	svc := NewService(NewRepository(pool), NewLedger(stock.PolicyAdvisory, mirror, nil, nil), nil, nil)

	const loaders = 8
	var wg sync.WaitGroup
	errCh := make(chan error, loaders)
	for range loaders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Load(ctx, LoadInput{VehicleID: vehicleID, ProductID: productID, Quantity: q("5"), Date: time.Now()}); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent load: %v", err)
	}

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM vehicle_inventory WHERE vehicle_id = $1`, vehicleID).Scan(&rows))
	assert.Equal(t, 1, rows)

	inventory, err := svc.Inventory(ctx, vehicleID)
	require.NoError(t, err)
	require.Len(t, inventory, 1)
	assert.True(t, inventory[0].Quantity.Equal(q("40")), inventory[0].Quantity.String())
	assert.Equal(t, "Tomato", inventory[0].ProductName)

	var onHand decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, productID).Scan(&onHand))
	assert.True(t, onHand.Equal(q("40")))

	movements, err := svc.Movements(ctx, MovementFilter{VehicleID: vehicleID})
	require.NoError(t, err)
	assert.Len(t, movements, loaders)
}

func TestPostgresLoadSummaryWithoutBaseline(t *testing.T) {
	pool := pgtest.Open(t, "mandi_fleet_test")
	ctx := context.Background()

	var vehicleID, productID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO vehicles (number) VALUES ('KA 05 Z 9') RETURNING id`).Scan(&vehicleID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (name) VALUES ('Potato') RETURNING id`).Scan(&productID))

	repo := NewRepository(pool)
	base, err := repo.GetBaseline(ctx, vehicleID)
	require.NoError(t, err)
	assert.False(t, base.StartingWeight.Valid)
	assert.Nil(t, base.StartingBags)

	mirror := stock.NewMirror(stock.PolicyAdvisory, nil, nil)
	svc := NewService(repo, NewLedger(stock.PolicyAdvisory, mirror, nil, nil), nil, nil)
	_, err = svc.Load(ctx, LoadInput{VehicleID: vehicleID, ProductID: productID, Quantity: q("120"), Date: time.Now()})
	require.NoError(t, err)

	summary, err := svc.LoadSummary(ctx, vehicleID)
	require.NoError(t, err)
	assert.False(t, summary.StartingWeight.Valid)
	assert.True(t, summary.Loaded.Equal(q("120")))
	assert.True(t, summary.WeightGain.IsZero())
	assert.True(t, summary.WeightLoss.IsZero())
}
