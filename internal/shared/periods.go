package shared

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in requests and reports.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value. Empty input yields the zero time.
func ParseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, raw)
	}
	return t, nil
}

// Window is an inclusive calendar-date range. A zero From is unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow normalises both ends to calendar dates. A zero To means today.
func NewWindow(from, to time.Time) (Window, error) {
	if to.IsZero() {
		to = time.Now()
	}
	w := Window{To: Day(to)}
	if !from.IsZero() {
		w.From = Day(from)
	}
	if !w.From.IsZero() && w.From.After(w.To) {
		return Window{}, fmt.Errorf("%w: window start after end", ErrValidation)
	}
	return w, nil
}

// Contains reports whether the calendar date of t falls in the window.
func (w Window) Contains(t time.Time) bool {
	d := Day(t)
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	return !d.After(w.To)
}

// Key returns a stable identifier for the window.
func (w Window) Key() string {
	from := "-"
	if !w.From.IsZero() {
		from = w.From.Format(DateLayout)
	}
	return from + ".." + w.To.Format(DateLayout)
}

// ParseDateOrToday parses raw, defaulting to today's date when empty.
func ParseDateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		return Day(time.Now()), nil
	}
	return ParseDate(raw)
}
