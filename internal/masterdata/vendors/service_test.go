package vendors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

type memoryRepo struct {
	items  map[int64]Vendor
	nextID int64
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Vendor, int, error) {
	out := make([]Vendor, 0, len(m.items))
	for _, v := range m.items {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Vendor, error) {
	v, ok := m.items[id]
	if !ok {
		return Vendor{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) Create(_ context.Context, v Vendor) (Vendor, error) {
	m.nextID++
	v.ID = m.nextID
	m.items[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, v Vendor) error {
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

func TestVendorLifecycle(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Vendor{}})
	ctx := context.Background()

	created, err := svc.Create(ctx, Vendor{Name: "  Ramesh Traders ", Phone: "98450 00000"})
	require.NoError(t, err)
	require.Equal(t, "Ramesh Traders", created.Name)

	_, err = svc.Create(ctx, Vendor{Name: " "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Vendor{Name: "X", Email: "not-an-email"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Vendor{Name: "X", Phone: "12-34"})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Growers without a phone are reached through their driver.
	_, err = svc.Create(ctx, Vendor{Name: "Hosur Farmers Collective"})
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, created.ID, Vendor{Name: "Ramesh & Sons"}))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Ramesh & Sons", got.Name)

	require.ErrorIs(t, svc.Update(ctx, 0, Vendor{Name: "x"}), shared.ErrInvalidID)
	require.ErrorIs(t, svc.Update(ctx, 99, Vendor{Name: "x"}), shared.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
