// Package series shapes aggregated daily statistics for charts and tables.
package series

import (
	"encoding/json"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
)

// Point is one day of a dense series. A nil Value is a gap, distinct from zero.
type Point struct {
	Date  time.Time
	Value *float64
}

// UnixMilli returns the chart timestamp of the point.
func (p Point) UnixMilli() int64 {
	return dates.UnixMilli(p.Date)
}

// MarshalJSON renders the point as a [timestamp-ms, value|null] pair.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.UnixMilli(), p.Value})
}

// Dense returns one point per day in span, filling days without data with gaps.
func Dense(daily []aggregate.GroupedDaily, span dates.Span, field aggregate.Field) []Point {
	index := make(map[time.Time]float64, len(daily))
	for _, d := range daily {
		index[dates.Day(d.Date)] = d.Value(field)
	}

	days := span.Days()
	points := make([]Point, len(days))
	for i, day := range days {
		points[i] = Point{Date: day}
		if v, ok := index[day]; ok {
			points[i].Value = &v
		}
	}
	return points
}

// Sparse returns one point per day present in daily, in order.
func Sparse(daily []aggregate.GroupedDaily, field aggregate.Field) []Point {
	points := make([]Point, len(daily))
	for i, d := range daily {
		v := d.Value(field)
		points[i] = Point{Date: d.Date, Value: &v}
	}
	return points
}

// Column describes one table column.
type Column struct {
	Key    aggregate.Field `json:"key"`
	Label  string          `json:"label"`
	Format string          `json:"format"`
}

// Table is a header plus rows of cells.
type Table struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// DateColumn heads the first column of every table.
const DateColumn aggregate.Field = "date"

var columnLabels = map[aggregate.Field]Column{
	DateColumn:            {Key: DateColumn, Label: "日期", Format: "date"},
	aggregate.FieldPrice:  {Key: aggregate.FieldPrice, Label: "平均價格", Format: "float"},
	aggregate.FieldVolume: {Key: aggregate.FieldVolume, Label: "交易量", Format: "float"},
	aggregate.FieldWeight: {Key: aggregate.FieldWeight, Label: "平均重量", Format: "float"},
}

// TableRows lays a result out row per day: always date and price, then volume
// and weight when the result carries them.
func TableRows(res aggregate.Result) Table {
	fields := res.Flags.Fields()
	table := Table{Columns: []Column{columnLabels[DateColumn]}}
	for _, f := range fields {
		table.Columns = append(table.Columns, columnLabels[f])
	}

	for _, d := range res.Daily {
		row := make([]any, 0, len(fields)+1)
		row = append(row, dates.Format(d.Date))
		for _, f := range fields {
			row = append(row, d.Value(f))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}
