package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
)

// ReferenceYear is the leap year every year-aligned series is plotted on.
const ReferenceYear = 2016

// referenceDays has 366 entries.
var referenceDays = dates.Range(dates.Date(ReferenceYear, time.January, 1), dates.Date(ReferenceYear, time.December, 31))

// YearAligned maps each calendar year from the earliest to the latest in daily
// onto the reference year. Every series has 366 points; non-leap years carry a
// gap at Feb 29.
func YearAligned(daily []aggregate.GroupedDaily, field aggregate.Field) map[int][]Point {
	if len(daily) == 0 {
		return map[int][]Point{}
	}

	index := make(map[time.Time]float64, len(daily))
	first, last := daily[0].Date.Year(), daily[0].Date.Year()
	for _, d := range daily {
		index[dates.Day(d.Date)] = d.Value(field)
		first = min(first, d.Date.Year())
		last = max(last, d.Date.Year())
	}

	out := make(map[int][]Point, last-first+1)
	for year := first; year <= last; year++ {
		points := make([]Point, 0, len(referenceDays))
		for _, ref := range referenceDays {
			p := Point{Date: ref}
			if ref.Month() == time.February && ref.Day() == 29 && !dates.IsLeap(year) {
				points = append(points, p)
				continue
			}
			if v, ok := index[dates.Date(year, ref.Month(), ref.Day())]; ok {
				p.Value = &v
			}
			points = append(points, p)
		}
		out[year] = points
	}
	return out
}

// YearInfo describes one year offered for year-over-year charts.
type YearInfo struct {
	Year     int  `json:"year"`
	Selected bool `json:"selected"`
}

// Years lists the years of an aligned set, ascending. The five full years
// before thisYear are preselected.
func Years(aligned map[int][]Point, thisYear int) []YearInfo {
	years := make([]int, 0, len(aligned))
	for y := range aligned {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]YearInfo, len(years))
	for i, y := range years {
		out[i] = YearInfo{Year: y, Selected: thisYear > y && y >= thisYear-5}
	}
	return out
}

// YearTable lays aligned series out with one row per reference day and one
// column per year. Rows without a value in any year are dropped.
func YearTable(aligned map[int][]Point) Table {
	years := make([]int, 0, len(aligned))
	for y := range aligned {
		years = append(years, y)
	}
	sort.Ints(years)

	table := Table{Columns: []Column{columnLabels[DateColumn]}}
	for _, y := range years {
		table.Columns = append(table.Columns, Column{
			Key:    aggregate.Field(fmt.Sprintf("%d", y)),
			Label:  fmt.Sprintf("%d", y),
			Format: "float",
		})
	}

	for i, ref := range referenceDays {
		row := []any{ref.Format("01-02")}
		filled := false
		for _, y := range years {
			v := aligned[y][i].Value
			if v != nil {
				filled = true
				row = append(row, *v)
			} else {
				row = append(row, nil)
			}
		}
		if filled {
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}
