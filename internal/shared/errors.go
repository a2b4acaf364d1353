package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request violates an input rule.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique value is already taken.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict indicates the operation conflicts with existing state.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock is returned only by scopes running the strict policy.
	ErrInsufficientStock = errors.New("insufficient stock")
)
