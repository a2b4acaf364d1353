package purchasing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/ledger"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/internal/testing/memdb"
)

type memoryRepo struct {
	*memdb.Stock
	vendors   map[int64]bool
	purchases map[int64]Purchase
	returns   map[int64]VendorReturn
	payments  map[int64]VendorPayment
	nextID    int64
}

type memoryTx struct {
	*memdb.Stock
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		Stock:     memdb.NewStock([]int64{10, 11}, []int64{1}),
		vendors:   map[int64]bool{5: true, 6: true},
		purchases: map[int64]Purchase{},
		returns:   map[int64]VendorReturn{},
		payments:  map[int64]VendorPayment{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	purchases := make(map[int64]Purchase, len(r.purchases))
	for k, v := range r.purchases {
		purchases[k] = v
	}
	returns := make(map[int64]VendorReturn, len(r.returns))
	for k, v := range r.returns {
		returns[k] = v
	}
	err := r.Stock.Tx(func() error {
		return fn(ctx, &memoryTx{Stock: r.Stock, repo: r})
	})
	if err != nil {
		r.purchases, r.returns = purchases, returns
	}
	return err
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (tx *memoryTx) VendorExists(_ context.Context, id int64) (bool, error) {
	return tx.repo.vendors[id], nil
}

func (tx *memoryTx) InsertPurchase(_ context.Context, p Purchase) (int64, error) {
	p.ID = tx.repo.id()
	tx.repo.purchases[p.ID] = p
	return p.ID, nil
}

func (tx *memoryTx) InsertPurchaseItem(_ context.Context, item PurchaseItem) (int64, error) {
	item.ID = tx.repo.id()
	p := tx.repo.purchases[item.PurchaseID]
	p.Items = append(p.Items, item)
	tx.repo.purchases[item.PurchaseID] = p
	return item.ID, nil
}

func (tx *memoryTx) PurchaseVendor(_ context.Context, id int64) (int64, error) {
	p, ok := tx.repo.purchases[id]
	if !ok {
		return 0, ErrPurchaseNotFound
	}
	return p.VendorID, nil
}

func (tx *memoryTx) InsertReturn(_ context.Context, ret VendorReturn) (int64, error) {
	ret.ID = tx.repo.id()
	tx.repo.returns[ret.ID] = ret
	return ret.ID, nil
}

func (tx *memoryTx) InsertReturnItem(_ context.Context, item VendorReturnItem) (int64, error) {
	item.ID = tx.repo.id()
	return item.ID, nil
}

func (r *memoryRepo) GetPurchase(_ context.Context, id int64) (Purchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return Purchase{}, ErrPurchaseNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPurchases(context.Context, ListFilter) ([]Purchase, error) {
	var out []Purchase
	for _, p := range r.purchases {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) GetReturn(_ context.Context, id int64) (VendorReturn, error) {
	ret, ok := r.returns[id]
	if !ok {
		return VendorReturn{}, ErrReturnNotFound
	}
	return ret, nil
}

func (r *memoryRepo) ListReturns(context.Context, ListFilter) ([]VendorReturn, error) {
	var out []VendorReturn
	for _, ret := range r.returns {
		out = append(out, ret)
	}
	return out, nil
}

func (r *memoryRepo) CreatePayment(_ context.Context, p VendorPayment) (VendorPayment, error) {
	if !r.vendors[p.VendorID] {
		return VendorPayment{}, ErrVendorNotFound
	}
	p.ID = r.id()
	r.payments[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdatePayment(_ context.Context, id int64, p VendorPayment) (VendorPayment, error) {
	if _, ok := r.payments[id]; !ok {
		return VendorPayment{}, ErrPaymentNotFound
	}
	p.ID = id
	r.payments[id] = p
	return p, nil
}

func (r *memoryRepo) DeletePayment(_ context.Context, id int64) error {
	if _, ok := r.payments[id]; !ok {
		return ErrPaymentNotFound
	}
	delete(r.payments, id)
	return nil
}

func (r *memoryRepo) GetPayment(_ context.Context, id int64) (VendorPayment, error) {
	p, ok := r.payments[id]
	if !ok {
		return VendorPayment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPayments(context.Context, ListFilter) ([]VendorPayment, error) {
	var out []VendorPayment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, nil
}

// vendorEntries turns the in-memory documents into ledger entries.
func (r *memoryRepo) vendorEntries(vendorID int64) []ledger.Entry {
	var entries []ledger.Entry
	for _, p := range r.purchases {
		if p.VendorID == vendorID {
			entries = append(entries, ledger.Entry{Date: p.Date, Kind: ledger.KindBilled, Amount: p.TotalAmount})
		}
	}
	for _, p := range r.payments {
		if p.VendorID == vendorID {
			entries = append(entries, ledger.Entry{Date: p.Date, Kind: ledger.KindPaid, Amount: p.Amount})
		}
	}
	for _, ret := range r.returns {
		if ret.VendorID == vendorID {
			entries = append(entries, ledger.Entry{Date: ret.Date, Kind: ledger.KindReturned, Amount: ret.TotalAmount})
		}
	}
	return entries
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func int64Ptr(v int64) *int64 { return &v }

func newService(repo *memoryRepo, policy stock.Policy) *Service {
	mirror := stock.NewMirror(stock.PolicyAdvisory, nil, nil)
	return NewService(repo, fleet.NewLedger(policy, mirror, nil, nil), mirror, nil, nil, nil)
}

func TestCreatePurchaseIntoYard(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)

	p, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		VendorID: 5,
		Items: []LineInput{
			{ProductID: 11, Quantity: d("40"), UnitPrice: d("12.5")},
			{ProductID: 10, Quantity: d("20"), UnitPrice: d("25")},
		},
	})
	require.NoError(t, err)
	assert.True(t, p.TotalAmount.Equal(d("1000")), p.TotalAmount.String())
	assert.Equal(t, PurchaseStatusCompleted, p.Status)
	assert.False(t, p.Date.IsZero())
	assert.True(t, repo.Products[10].Equal(d("20")))
	assert.True(t, repo.Products[11].Equal(d("40")))

	moves := repo.MovementsFor(stock.RefPurchase, p.ID)
	require.Len(t, moves, 2)
	assert.Equal(t, int64(10), moves[0].ProductID, "stock is booked in product order")
	assert.Equal(t, stock.ReasonPurchase, moves[0].Reason)
	assert.Empty(t, repo.VehicleMoves)
}

func TestCreatePurchaseOntoVehicle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)

	p, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		VendorID:  5,
		VehicleID: int64Ptr(1),
		Items:     []LineInput{{ProductID: 10, Quantity: d("50"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)
	assert.True(t, repo.Quantity(1, 10).Equal(d("50")))
	assert.True(t, repo.Products[10].Equal(d("50")))
	require.Len(t, repo.VehicleMoves, 1)
	assert.Equal(t, fleet.MovementLoad, repo.VehicleMoves[0].Type)
	assert.Equal(t, p.ID, repo.VehicleMoves[0].ReferenceID)
	require.Len(t, repo.StockMoves, 1)
	assert.Equal(t, stock.ReasonPurchase, repo.StockMoves[0].Reason)
}

func TestCreatePurchaseRollsBackOnUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		VendorID: 5,
		Items: []LineInput{
			{ProductID: 10, Quantity: d("5"), UnitPrice: d("1")},
			{ProductID: 99, Quantity: d("5"), UnitPrice: d("1")},
		},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.True(t, repo.Products[10].IsZero())
	assert.Empty(t, repo.StockMoves)
}

func TestCreatePurchaseValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 5, Items: []LineInput{{ProductID: 10, Quantity: d("-1"), UnitPrice: d("1")}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 5, Items: []LineInput{{ProductID: 10, Quantity: d("1"), UnitPrice: d("-1")}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 42, Items: []LineInput{{ProductID: 10, Quantity: d("1"), UnitPrice: d("1")}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateReturnDeductsStockAndVehicle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, CreatePurchaseInput{
		VendorID:  5,
		VehicleID: int64Ptr(1),
		Items:     []LineInput{{ProductID: 10, Quantity: d("30"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)

	ret, err := svc.CreateReturn(ctx, CreateReturnInput{
		VendorID:   5,
		VehicleID:  int64Ptr(1),
		PurchaseID: int64Ptr(p.ID),
		Items:      []LineInput{{ProductID: 10, Quantity: d("10"), UnitPrice: d("10"), Reason: " rotten "}},
	})
	require.NoError(t, err)
	assert.True(t, ret.TotalAmount.Equal(d("100")))
	assert.Equal(t, "rotten", ret.Items[0].Reason)
	assert.True(t, repo.Quantity(1, 10).Equal(d("20")))
	assert.True(t, repo.Products[10].Equal(d("20")))
	assert.Len(t, repo.MovementsFor(stock.RefVendorReturn, ret.ID), 1)
}

func TestCreateReturnWithoutVehicleStockStillDeductsProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.Products[10] = d("8")
	svc := newService(repo, stock.PolicyAdvisory)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		VendorID:  5,
		VehicleID: int64Ptr(1),
		Items:     []LineInput{{ProductID: 10, Quantity: d("5"), UnitPrice: d("2")}},
	})
	require.NoError(t, err)
	assert.True(t, repo.Products[10].Equal(d("3")))
	assert.Empty(t, repo.VehicleMoves)
}

func TestCreateReturnRejectsForeignPurchase(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)
	ctx := context.Background()

	p, err := svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 6, Items: []LineInput{{ProductID: 10, Quantity: d("5"), UnitPrice: d("1")}}})
	require.NoError(t, err)

	_, err = svc.CreateReturn(ctx, CreateReturnInput{
		VendorID:   5,
		PurchaseID: int64Ptr(p.ID),
		Items:      []LineInput{{ProductID: 10, Quantity: d("1"), UnitPrice: d("1")}},
	})
	require.ErrorIs(t, err, ErrPurchaseVendorMismatch)
	assert.True(t, repo.Products[10].Equal(d("5")))
}

func TestStrictVehiclePolicyRejectsReturn(t *testing.T) {
	repo := newMemoryRepo()
	repo.Products[10] = d("8")
	svc := newService(repo, stock.PolicyStrict)

	_, err := svc.CreateReturn(context.Background(), CreateReturnInput{
		VendorID:  5,
		VehicleID: int64Ptr(1),
		Items:     []LineInput{{ProductID: 10, Quantity: d("5"), UnitPrice: d("2")}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.True(t, repo.Products[10].Equal(d("8")))
}

func TestVendorScenarioBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)
	ctx := context.Background()

	_, err := svc.CreatePurchase(ctx, CreatePurchaseInput{VendorID: 5, Items: []LineInput{{ProductID: 10, Quantity: d("100"), UnitPrice: d("10")}}})
	require.NoError(t, err)
	_, err = svc.CreatePayment(ctx, PaymentInput{VendorID: 5, Amount: d("300"), PaymentMethod: "cash"})
	require.NoError(t, err)
	_, err = svc.CreateReturn(ctx, CreateReturnInput{VendorID: 5, Items: []LineInput{{ProductID: 10, Quantity: d("10"), UnitPrice: d("10")}}})
	require.NoError(t, err)

	assert.True(t, ledger.Balance(repo.vendorEntries(5)).Equal(d("600")))

	_, err = svc.CreatePayment(ctx, PaymentInput{VendorID: 5, Amount: d("600")})
	require.NoError(t, err)
	assert.True(t, ledger.Balance(repo.vendorEntries(5)).IsZero())
}

func TestVendorPaymentLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := newService(repo, stock.PolicyAdvisory)
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, PaymentInput{VendorID: 5, Amount: d("0")})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.CreatePayment(ctx, PaymentInput{Amount: d("10")})
	require.ErrorIs(t, err, shared.ErrValidation)

	p, err := svc.CreatePayment(ctx, PaymentInput{VendorID: 5, Amount: d("250"), PaymentMethod: " upi "})
	require.NoError(t, err)
	assert.Equal(t, "upi", p.PaymentMethod)

	updated, err := svc.UpdatePayment(ctx, p.ID, PaymentInput{VendorID: 5, Amount: d("200")})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(d("200")))

	require.NoError(t, svc.DeletePayment(ctx, p.ID))
	require.ErrorIs(t, svc.DeletePayment(ctx, p.ID), shared.ErrNotFound)
	_, err = svc.UpdatePayment(ctx, p.ID, PaymentInput{VendorID: 5, Amount: d("1")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
