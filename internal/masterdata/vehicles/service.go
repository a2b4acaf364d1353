package vehicles

import (
	"context"
	"fmt"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vehicle, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vehicle, error) {
	if id <= 0 {
		return Vehicle{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vehicle Vehicle) (Vehicle, error) {
	vehicle = normalise(vehicle)
	if err := s.validate(ctx, vehicle); err != nil {
		return Vehicle{}, err
	}
	return s.repo.Create(ctx, vehicle)
}

func (s *Service) Update(ctx context.Context, id int64, vehicle Vehicle) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	vehicle = normalise(vehicle)
	if err := s.validate(ctx, vehicle); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, vehicle)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) checkVendor(ctx context.Context, vendorID *int64) error {
	if vendorID == nil {
		return nil
	}
	ok, err := s.repo.VendorExists(ctx, *vendorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: vendor %d", shared.ErrNotFound, *vendorID)
	}
	return nil
}
