package products

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

type Service struct {
	repo   Repository
	mirror *stock.Mirror
}

func NewService(repo Repository, mirror *stock.Mirror) *Service {
	return &Service{repo: repo, mirror: mirror}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// LowStock lists products at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// Create inserts the product and books any opening stock as an inbound
// movement so the mirror stays derivable from the log.
func (s *Service) Create(ctx context.Context, product Product, opening decimal.Decimal) (Product, error) {
	product = normalise(product)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if opening.IsNegative() {
		return Product{}, errNegative("opening stock")
	}
	var created Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, product)
		if err != nil {
			return err
		}
		if !opening.IsPositive() {
			return nil
		}
		res, err := s.mirror.Apply(ctx, tx, stock.Change{
			ProductID:     created.ID,
			Direction:     stock.DirectionIn,
			Quantity:      opening,
			Date:          time.Now(),
			Reason:        stock.ReasonOpeningStock,
			ReferenceType: stock.RefProduct,
			ReferenceID:   created.ID,
		})
		if err != nil {
			return err
		}
		created.CurrentStock = res.After
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	product = normalise(product)
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}
