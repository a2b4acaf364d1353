package vehicles

import (
	"context"
	"fmt"
	"strings"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

func normalise(v Vehicle) Vehicle {
	v.Number = strings.ToUpper(strings.Join(strings.Fields(v.Number), " "))
	v.Driver = strings.TrimSpace(v.Driver)
	v.Shop = strings.TrimSpace(v.Shop)
	if v.VendorID != nil && *v.VendorID <= 0 {
		v.VendorID = nil
	}
	return v
}

func (s *Service) validate(ctx context.Context, v Vehicle) error {
	if v.Number == "" {
		return shared.Required("vehicle number")
	}
	if v.StartingWeight.Valid && v.StartingWeight.Decimal.IsNegative() {
		return fmt.Errorf("%w: starting weight must not be negative", shared.ErrValidation)
	}
	if v.StartingBags != nil && *v.StartingBags < 0 {
		return fmt.Errorf("%w: starting bags must not be negative", shared.ErrValidation)
	}
	return s.checkVendor(ctx, v.VendorID)
}
