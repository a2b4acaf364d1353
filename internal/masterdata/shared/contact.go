package shared

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
)

// Contact holds the reach details vendors and customers have in common.
type Contact struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Trimmed returns c with surrounding whitespace removed from every field.
func (c Contact) Trimmed() Contact {
	return Contact{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		Address: strings.TrimSpace(c.Address),
	}
}

// ValidateContact checks a party's contact details; party names it in errors.
func ValidateContact(party string, c Contact, phoneRequired bool) error {
	if c.Name == "" {
		return Required(party + " name")
	}
	switch {
	case c.Phone == "" && phoneRequired:
		return Required(party + " phone")
	case c.Phone != "" && !validPhone(c.Phone):
		return fmt.Errorf("%w: invalid %s phone %q", ErrValidation, party, c.Phone)
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return fmt.Errorf("%w: invalid %s email", ErrValidation, party)
		}
	}
	return nil
}

// validPhone accepts 10 to 15 digits with an optional leading plus and
// space or hyphen separators.
func validPhone(p string) bool {
	digits := 0
	for i, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

// ContactListQuery builds the list and count statements over a vendors or
// customers table, searching name and phone.
func ContactListQuery(table string, filters ListFilters) (query, count string, args, countArgs []any) {
	query = `SELECT id, name, phone, email, address, created_at, updated_at FROM ` + table + ` WHERE 1=1`
	count = `SELECT COUNT(*) FROM ` + table + ` WHERE 1=1`
	if filters.Search != "" {
		cond := ` AND (name ILIKE $1 OR phone ILIKE $1)`
		query += cond
		count += cond
		args = append(args, "%"+filters.Search+"%")
	}
	countArgs = args
	query += " ORDER BY " + SortOrder(filters.SortBy, filters.SortDir, "name", "created_at")
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(slices.Clone(args), filters.Limit, filters.Offset())
	}
	return query, count, args, countArgs
}
