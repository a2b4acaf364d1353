package shared

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatINR(t *testing.T) {
	big := FormatINR(decimal.RequireFromString("123456.499"))
	assert.True(t, strings.HasPrefix(big, "₹"), big)
	assert.True(t, strings.HasSuffix(big, "456.50"), big)
	assert.Contains(t, big, ",")
	assert.Equal(t, "₹600.00", FormatINR(decimal.NewFromInt(600)))
}

func TestSumDecimalsKeepsPrecision(t *testing.T) {
	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	sum := SumDecimals(third, third, third)
	assert.True(t, Round2(sum).Equal(decimal.NewFromInt(1)))
}

func TestWindow(t *testing.T) {
	from, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	to, err := ParseDate("2024-03-31")
	require.NoError(t, err)

	w, err := NewWindow(from, to)
	require.NoError(t, err)
	assert.True(t, w.Contains(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01..2024-03-31", w.Key())

	_, err = NewWindow(to, from)
	require.ErrorIs(t, err, ErrValidation)

	_, err = ParseDate("03/01/2024")
	require.ErrorIs(t, err, ErrValidation)

	open, err := NewWindow(time.Time{}, to)
	require.NoError(t, err)
	assert.True(t, open.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPaginationOffset(t *testing.T) {
	p := NewPagination(3, 25, 80)
	assert.Equal(t, 50, p.Offset())
	assert.Equal(t, 4, p.TotalPages)
}
