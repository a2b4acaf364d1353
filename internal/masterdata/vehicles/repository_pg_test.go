package vehicles

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/testing/pgtest"
)

func TestPostgresVehicleBaselineIsOptional(t *testing.T) {
	pool := pgtest.Open(t, "mandi_vehicles_test")
	ctx := context.Background()
	svc := NewService(NewRepository(pool))

	bare, err := svc.Create(ctx, Vehicle{Number: "AP 09 C 1111"})
	require.NoError(t, err)
	got, err := svc.Get(ctx, bare.ID)
	require.NoError(t, err)
	assert.False(t, got.StartingWeight.Valid)
	assert.Nil(t, got.StartingBags)

	bags := 60
	weighed, err := svc.Create(ctx, Vehicle{
		Number:         "AP 09 C 2222",
		StartingWeight: decimal.NewNullDecimal(decimal.RequireFromString("1250.75")),
		StartingBags:   &bags,
	})
	require.NoError(t, err)
	got, err = svc.Get(ctx, weighed.ID)
	require.NoError(t, err)
	require.True(t, got.StartingWeight.Valid)
	assert.True(t, got.StartingWeight.Decimal.Equal(decimal.RequireFromString("1250.75")))
	require.NotNil(t, got.StartingBags)
	assert.Equal(t, 60, *got.StartingBags)

	_, err = svc.Create(ctx, Vehicle{Number: "AP 09 C 1111"})
	require.Error(t, err)
}
