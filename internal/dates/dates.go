// Package dates provides calendar-day arithmetic and the cross-year window
// alignment used to compare the same month/day span across years.
package dates

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the canonical calendar-day format.
const Layout = "2006-01-02"

// ErrInvalidWindow is returned when a window's start falls after its end.
var ErrInvalidWindow = errors.New("invalid window: start after end")

// Date returns the calendar day at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its calendar day, keeping the day t has in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Parse reads a YYYY-MM-DD day.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Format renders a day as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// IsLeap reports whether year has a February 29.
func IsLeap(year int) bool {
	return year%4 == 0 && year%100 != 0 || year%400 == 0
}

// AddDays shifts a day by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	return int(Day(end).Sub(Day(start)).Hours() / 24)
}

// Range returns every day from start to end inclusive. It is empty when end is before start.
func Range(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	out := make([]time.Time, 0, DaysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// UnixMilli converts a day to whole epoch seconds times 1000.
func UnixMilli(t time.Time) int64 {
	return t.Unix() * 1000
}

// MonthSpan returns the first and last day of a calendar month.
func MonthSpan(year int, month time.Month) Span {
	first := Date(year, month, 1)
	return Span{Start: first, End: first.AddDate(0, 1, -1)}
}

// Span is an inclusive range of calendar days.
type Span struct {
	Start time.Time
	End   time.Time
}

// NewSpan validates and normalizes a span.
func NewSpan(start, end time.Time) (Span, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return Span{}, fmt.Errorf("%w: %s > %s", ErrInvalidWindow, Format(start), Format(end))
	}
	return Span{Start: start, End: end}, nil
}

// Contains reports whether d falls within the span.
func (s Span) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(s.Start) && !d.After(s.End)
}

// Days lists every day of the span.
func (s Span) Days() []time.Time {
	return Range(s.Start, s.End)
}

// Len is the number of days in the span.
func (s Span) Len() int {
	return DaysBetween(s.Start, s.End) + 1
}

// Label names the span by its year, or by both years when it crosses New Year.
func (s Span) Label() string {
	if s.Start.Year() == s.End.Year() {
		return fmt.Sprintf("%d", s.Start.Year())
	}
	return fmt.Sprintf("%d~%d", s.Start.Year(), s.End.Year())
}

// Previous returns the span of equal length ending the day before s starts.
func (s Span) Previous() Span {
	n := s.Len()
	return Span{Start: AddDays(s.Start, -n), End: AddDays(s.End, -n)}
}

func (s Span) String() string {
	return Format(s.Start) + "~" + Format(s.End)
}
