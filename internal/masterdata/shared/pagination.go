package shared

import (
	"net/http"
	"strconv"
	"strings"
)

// ListFilters represents standard list filters
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// FiltersFromRequest reads page, limit, search, sort and dir query values.
func FiltersFromRequest(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  strings.TrimSpace(q.Get("search")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
}

// SortOrder builds an ORDER BY clause from an allow-list of columns, falling
// back to the first allowed column.
func SortOrder(sortBy, sortDir string, allowed ...string) string {
	dir := "ASC"
	if sortDir == SortDesc {
		dir = "DESC"
	}
	for _, col := range allowed {
		if col == sortBy {
			return col + " " + dir
		}
	}
	if len(allowed) == 0 {
		return "id " + dir
	}
	return allowed[0] + " " + dir
}
