package customers

import (
	"github.com/mandi-erp/mandi/internal/masterdata/shared"
)

func (c Customer) contact() shared.Contact {
	return shared.Contact{Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
}

func normalise(c Customer) Customer {
	t := c.contact().Trimmed()
	c.Name, c.Phone, c.Email, c.Address = t.Name, t.Phone, t.Email, t.Address
	return c
}

// Customers buy on credit, so a reachable phone is mandatory.
func (s *Service) validate(c Customer) error {
	return shared.ValidateContact("customer", c.contact(), true)
}
