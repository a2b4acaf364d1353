package vendors

import (
	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

func normalise(v Vendor) Vendor {
	c := shared.Contact{Name: v.Name, Phone: v.Phone, Email: v.Email, Address: v.Address}.Trimmed()
	v.Name, v.Phone, v.Email, v.Address = c.Name, c.Phone, c.Email, c.Address
	return v
}

// validate accepts vendors without a phone; growers often deal through the
// vehicle driver.
func (s *Service) validate(v Vendor) error {
	return shared.ValidateContact("vendor", shared.Contact{Name: v.Name, Phone: v.Phone, Email: v.Email, Address: v.Address}, false)
}
