package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFiltersFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&limit=500&search=+tom+&sort=created_at&dir=desc", nil)
	f := FiltersFromRequest(r)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Equal(t, "tom", f.Search)
	assert.Equal(t, 400, f.Offset())

	f = FiltersFromRequest(httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, DefaultPage, f.Page)
	assert.Equal(t, DefaultLimit, f.Limit)
	assert.Equal(t, 0, f.Offset())
}

func TestSortOrderAllowList(t *testing.T) {
	assert.Equal(t, "created_at DESC", SortOrder("created_at", SortDesc, "name", "created_at"))
	assert.Equal(t, "name ASC", SortOrder("id; DROP TABLE vendors", SortAsc, "name", "created_at"))
	assert.Equal(t, "number ASC", SortOrder("", "", "number", "driver"))
}
