package products

import (
	"fmt"
	"strings"

	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

func normalise(p Product) Product {
	p.Name = strings.TrimSpace(p.Name)
	p.Unit = strings.TrimSpace(p.Unit)
	if p.Unit == "" {
		p.Unit = "kg"
	}
	return p
}

func errNegative(field string) error {
	return fmt.Errorf("%w: %s must not be negative", shared.ErrValidation, field)
}

func (s *Service) validate(p Product) error {
	if p.Name == "" {
		return shared.Required("product name")
	}
	switch {
	case p.PurchasePrice.IsNegative():
		return errNegative("purchase price")
	case p.SalePrice.IsNegative():
		return errNegative("sale price")
	case p.ReorderLevel.IsNegative():
		return errNegative("reorder level")
	}
	return nil
}
