package vehicles

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

type memoryRepo struct {
	items   map[int64]Vehicle
	vendors map[int64]bool
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Vehicle{}, vendors: map[int64]bool{7: true}}
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Vehicle, int, error) {
	out := make([]Vehicle, 0, len(m.items))
	for _, v := range m.items {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Vehicle, error) {
	v, ok := m.items[id]
	if !ok {
		return Vehicle{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) VendorExists(_ context.Context, id int64) (bool, error) {
	return m.vendors[id], nil
}

func (m *memoryRepo) Create(_ context.Context, v Vehicle) (Vehicle, error) {
	m.nextID++
	v.ID = m.nextID
	m.items[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, v Vehicle) error {
	if _, ok := m.items[id]; !ok {
		return shared.ErrNotFound
	}
	v.ID = id
	m.items[id] = v
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestVehicleLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Vehicle{
		Number:         " ka 01  ab 1234 ",
		Driver:         "Suresh",
		VendorID:       int64Ptr(7),
		StartingWeight: decimal.NewNullDecimal(decimal.NewFromInt(1200)),
	})
	require.NoError(t, err)
	require.Equal(t, "KA 01 AB 1234", created.Number)

	require.NoError(t, svc.Update(ctx, created.ID, Vehicle{Number: "KA 01 AB 1234", VendorID: int64Ptr(0)}))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got.VendorID)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestVehicleValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Vehicle{Driver: "no number"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Vehicle{Number: "TN 09 X 1", VendorID: int64Ptr(99)})
	require.ErrorIs(t, err, shared.ErrNotFound)

	bags := -1
	_, err = svc.Create(ctx, Vehicle{Number: "TN 09 X 1", StartingBags: &bags})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Vehicle{Number: "TN 09 X 1", StartingWeight: decimal.NewNullDecimal(decimal.NewFromInt(-5))})
	require.ErrorIs(t, err, shared.ErrValidation)

	require.ErrorIs(t, svc.Update(ctx, 0, Vehicle{Number: "X"}), shared.ErrInvalidID)
}
