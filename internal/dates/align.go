package dates

import (
	"time"
)

// DefaultEarliestYear is the first year with reliable upstream data.
const DefaultEarliestYear = 2011

// AlignSameDayAcrossYears repeats the month/day span [start, end] in earlier
// years. Offsets run from 0 up to start.Year()-fromYear; each offset i yields
// the span starting in start.Year()-i and ending in end.Year()-i. Spans whose
// start year is after toYear are skipped; toYear <= 0 means no upper bound.
//
// A Feb 29 start becomes Mar 1 in a non-leap year and a Feb 29 end becomes
// Feb 28, so an aligned window never grows.
func AlignSameDayAcrossYears(start, end time.Time, fromYear, toYear int) ([]Span, error) {
	window, err := NewSpan(start, end)
	if err != nil {
		return nil, err
	}

	startYear := window.Start.Year()
	yearGap := window.End.Year() - startYear
	var spans []Span
	for i := 0; i <= startYear-fromYear; i++ {
		year := startYear - i
		if toYear > 0 && year > toYear {
			continue
		}
		spans = append(spans, Span{
			Start: alignStart(window.Start, year),
			End:   alignEnd(window.End, year+yearGap),
		})
	}
	return spans, nil
}

// AlignedDays concatenates the days of every span.
func AlignedDays(spans []Span) []time.Time {
	var out []time.Time
	for _, s := range spans {
		out = append(out, s.Days()...)
	}
	return out
}

// DaySet indexes days for membership tests.
type DaySet map[time.Time]struct{}

// NewDaySet builds a set from days.
func NewDaySet(days []time.Time) DaySet {
	set := make(DaySet, len(days))
	for _, d := range days {
		set[Day(d)] = struct{}{}
	}
	return set
}

// Has reports whether d is in the set.
func (s DaySet) Has(d time.Time) bool {
	_, ok := s[Day(d)]
	return ok
}

func alignStart(d time.Time, year int) time.Time {
	if isFeb29(d) && !IsLeap(year) {
		return Date(year, time.March, 1)
	}
	return Date(year, d.Month(), d.Day())
}

func alignEnd(d time.Time, year int) time.Time {
	if isFeb29(d) && !IsLeap(year) {
		return Date(year, time.February, 28)
	}
	return Date(year, d.Month(), d.Day())
}

func isFeb29(d time.Time) bool {
	return d.Month() == time.February && d.Day() == 29
}
