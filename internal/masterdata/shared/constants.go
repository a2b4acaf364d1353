package shared

const (
	// Default pagination
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 200

	// Sort directions
	SortAsc  = "asc"
	SortDesc = "desc"
)
