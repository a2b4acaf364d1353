package shared

import (
	"fmt"

	internalShared "github.com/mandi-erp/mandi/internal/shared"
)

var (
	ErrNotFound      = internalShared.ErrNotFound
	ErrDuplicate     = internalShared.ErrDuplicate
	ErrValidation    = internalShared.ErrValidation
	ErrInvalidID     = fmt.Errorf("%w: invalid ID", internalShared.ErrValidation)
	ErrRequiredField = fmt.Errorf("%w: field is required", internalShared.ErrValidation)
)

// Required returns ErrRequiredField naming the field.
func Required(field string) error {
	return fmt.Errorf("%w: %s", ErrRequiredField, field)
}
