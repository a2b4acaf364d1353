package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

type memoryRepo struct {
	items  map[int64]Customer
	nextID int64
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Customer, int, error) {
	out := make([]Customer, 0, len(m.items))
	for _, v := range m.items {
		out = append(out, v)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	v, ok := m.items[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *memoryRepo) Create(_ context.Context, v Customer) (Customer, error) {
	m.nextID++
	v.ID = m.nextID
	m.items[v.ID] = v
	return v, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, v Customer) error {
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

func TestCustomerLifecycle(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Customer{}})
	ctx := context.Background()

	created, err := svc.Create(ctx, Customer{Name: "  Lakshmi Stores ", Phone: " +91 98450-00000 "})
	require.NoError(t, err)
	require.Equal(t, "Lakshmi Stores", created.Name)
	require.Equal(t, "+91 98450-00000", created.Phone)

	require.NoError(t, svc.Update(ctx, created.ID, Customer{Name: "Lakshmi Fresh", Phone: "9845000000"}))
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Lakshmi Fresh", got.Name)

	require.ErrorIs(t, svc.Update(ctx, 0, Customer{Name: "x", Phone: "9845000000"}), shared.ErrInvalidID)
	require.ErrorIs(t, svc.Update(ctx, 99, Customer{Name: "x", Phone: "9845000000"}), shared.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCustomerContactRules(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Customer{}})
	ctx := context.Background()

	cases := []struct {
		name     string
		customer Customer
		want     string
	}{
		{"blank name", Customer{Name: " ", Phone: "9845000000"}, "customer name"},
		{"missing phone", Customer{Name: "Hotel Udupi"}, "customer phone"},
		{"short phone", Customer{Name: "Hotel Udupi", Phone: "98450"}, "invalid customer phone"},
		{"letters in phone", Customer{Name: "Hotel Udupi", Phone: "98450abcde"}, "invalid customer phone"},
		{"bad email", Customer{Name: "Hotel Udupi", Phone: "9845000000", Email: "not-an-email"}, "invalid customer email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.customer)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
