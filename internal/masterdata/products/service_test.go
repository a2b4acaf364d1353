package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

type memoryRepo struct {
	items     map[int64]Product
	movements []stock.Movement
	nextID    int64
}

type memoryTx struct{ repo *memoryRepo }

func newMemoryRepo() *memoryRepo { return &memoryRepo{items: map[int64]Product{}} }

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	items := make(map[int64]Product, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	moves := append([]stock.Movement(nil), m.movements...)
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.items, m.movements = items, moves
		return err
	}
	return nil
}

func (m *memoryRepo) List(context.Context, shared.ListFilters) ([]Product, int, error) {
	return nil, 0, nil
}

func (m *memoryRepo) ListLowStock(context.Context) ([]Product, error) {
	var out []Product
	for _, p := range m.items {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.items[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, p Product) error {
	cur, ok := m.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.ID, p.CurrentStock = id, cur.CurrentStock
	m.items[id] = p
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (t *memoryTx) Insert(_ context.Context, p Product) (Product, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	p.CurrentStock = decimal.Zero
	t.repo.items[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetStockForUpdate(_ context.Context, id int64) (decimal.Decimal, error) {
	p, ok := t.repo.items[id]
	if !ok {
		return decimal.Zero, stock.ErrProductNotFound
	}
	return p.CurrentStock, nil
}

func (t *memoryTx) SetStock(_ context.Context, id int64, qty decimal.Decimal) error {
	p := t.repo.items[id]
	p.CurrentStock = qty
	t.repo.items[id] = p
	return nil
}

func (t *memoryTx) InsertStockMovement(_ context.Context, mv stock.Movement) (int64, error) {
	t.repo.movements = append(t.repo.movements, mv)
	return int64(len(t.repo.movements)), nil
}

func TestCreateBooksOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stock.NewMirror(stock.PolicyAdvisory, nil, nil))
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{Name: " Tomato ", ReorderLevel: decimal.NewFromInt(50)}, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, "Tomato", p.Name)
	assert.Equal(t, "kg", p.Unit)
	assert.True(t, p.CurrentStock.Equal(decimal.NewFromInt(40)))
	require.Len(t, repo.movements, 1)
	assert.Equal(t, stock.ReasonOpeningStock, repo.movements[0].Reason)
	assert.True(t, stock.Replay(repo.movements).Equal(repo.items[p.ID].CurrentStock))

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)

	q, err := svc.Create(ctx, Product{Name: "Onion"}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, q.CurrentStock.IsZero())
	assert.Len(t, repo.movements, 1)
}

func TestUpdateNeverTouchesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, stock.NewMirror(stock.PolicyAdvisory, nil, nil))
	ctx := context.Background()

	p, err := svc.Create(ctx, Product{Name: "Potato"}, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, svc.Update(ctx, p.ID, Product{Name: "Potato (new)", CurrentStock: decimal.NewFromInt(999)}))
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentStock.Equal(decimal.NewFromInt(10)))
}

func TestProductValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), stock.NewMirror(stock.PolicyAdvisory, nil, nil))
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{}, decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, Product{Name: "Okra", SalePrice: decimal.NewFromInt(-1)}, decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, Product{Name: "Okra"}, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Get(ctx, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
