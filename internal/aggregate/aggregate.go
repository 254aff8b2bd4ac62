package aggregate

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// syntheticSource is the group key given to rows when no row in the set has a source.
const syntheticSource int64 = 1

// Window restricts aggregation to a span of days. A specific-year window keeps
// exactly the span; otherwise the month/day span is repeated across years.
type Window struct {
	Span         dates.Span
	FromYear     int // Earliest year for cross-year windows; 0 means dates.DefaultEarliestYear
	ToYear       int // Latest start year for cross-year windows; 0 means the span's own year
	SpecificYear bool
}

// ExactWindow builds a specific-year window.
func ExactWindow(start, end time.Time) (Window, error) {
	span, err := dates.NewSpan(start, end)
	if err != nil {
		return Window{}, err
	}
	return Window{Span: span, SpecificYear: true}, nil
}

// CrossYearWindow builds a window aligned by month/day back to fromYear.
func CrossYearWindow(start, end time.Time, fromYear int) (Window, error) {
	span, err := dates.NewSpan(start, end)
	if err != nil {
		return Window{}, err
	}
	return Window{Span: span, FromYear: fromYear}, nil
}

// Spans returns the spans of days the window admits.
func (w Window) Spans() ([]dates.Span, error) {
	if w.SpecificYear {
		if _, err := dates.NewSpan(w.Span.Start, w.Span.End); err != nil {
			return nil, err
		}
		return []dates.Span{w.Span}, nil
	}
	from := w.FromYear
	if from == 0 {
		from = dates.DefaultEarliestYear
	}
	return dates.AlignSameDayAcrossYears(w.Span.Start, w.Span.End, from, w.ToYear)
}

// Filter keeps the rows whose day the window admits.
func (w Window) Filter(rows []model.DailyTran) ([]model.DailyTran, error) {
	spans, err := w.Spans()
	if err != nil {
		return nil, err
	}
	if w.SpecificYear {
		out := make([]model.DailyTran, 0, len(rows))
		for _, r := range rows {
			if w.Span.Contains(r.Date) {
				out = append(out, r)
			}
		}
		return out, nil
	}

	days := dates.NewDaySet(dates.AlignedDays(spans))
	out := make([]model.DailyTran, 0, len(rows))
	for _, r := range rows {
		if days.Has(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GroupedDaily is the per-day reduction across all reporting markets.
type GroupedDaily struct {
	Date         time.Time `json:"date"`
	AvgPrice     float64   `json:"avg_price"`
	SumVolume    float64   `json:"sum_volume"`
	AvgAvgWeight float64   `json:"avg_avg_weight"`
	NumOfSource  int       `json:"num_of_source"`
}

// Field selects one statistic of a GroupedDaily.
type Field string

const (
	FieldPrice  Field = "avg_price"
	FieldVolume Field = "sum_volume"
	FieldWeight Field = "avg_avg_weight"
)

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldPrice, FieldVolume, FieldWeight:
		return f, nil
	case "price":
		return FieldPrice, nil
	case "volume":
		return FieldVolume, nil
	case "weight":
		return FieldWeight, nil
	default:
		return "", fmt.Errorf("unknown field %q", s)
	}
}

// Value returns the selected statistic.
func (g GroupedDaily) Value(f Field) float64 {
	switch f {
	case FieldVolume:
		return g.SumVolume
	case FieldWeight:
		return g.AvgAvgWeight
	default:
		return g.AvgPrice
	}
}

// Fields lists the statistics a result actually carries, price first.
func (f Flags) Fields() []Field {
	fields := []Field{FieldPrice}
	if f.HasVolume {
		fields = append(fields, FieldVolume)
	}
	if f.HasWeight {
		fields = append(fields, FieldWeight)
	}
	return fields
}

// Result is the output of Aggregate. An empty result has no days and both flags unset.
type Result struct {
	Daily []GroupedDaily
	Flags Flags
}

// Empty reports whether no day survived filtering.
func (r Result) Empty() bool {
	return len(r.Daily) == 0
}

// Between returns the days within span, keeping the flags of the full result.
func (r Result) Between(span dates.Span) Result {
	out := Result{Flags: r.Flags}
	for _, d := range r.Daily {
		if span.Contains(d.Date) {
			out.Daily = append(out.Daily, d)
		}
	}
	return out
}

// Years lists the distinct calendar years present, ascending.
func (r Result) Years() []int {
	seen := make(map[int]struct{})
	var years []int
	for _, d := range r.Daily {
		y := d.Date.Year()
		if _, ok := seen[y]; !ok {
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

type sourceDay struct {
	date   time.Time
	source int64
}

type partial struct {
	weightedPrice float64
	weightedVolWt float64
	volumeForCalc float64
	volume        float64
	sources       int
}

func (p *partial) add(o partial) {
	p.weightedPrice += o.weightedPrice
	p.weightedVolWt += o.weightedVolWt
	p.volumeForCalc += o.volumeForCalc
	p.volume += o.volume
	p.sources += o.sources
}

// Aggregate reduces rows to one record per day. Completeness flags are taken
// from rows before window filtering. window may be nil.
func Aggregate(rows []model.DailyTran, window *Window) (Result, error) {
	flags := Detect(rows)

	if window != nil {
		var err error
		if rows, err = window.Filter(rows); err != nil {
			return Result{}, err
		}
	}

	if flags.HasVolume && flags.HasWeight {
		rows = withPositiveVolumeAndWeight(rows)
	}
	if len(rows) == 0 {
		return Result{}, nil
	}

	allUnsourced := true
	for i := range rows {
		if rows[i].SourceID != nil {
			allUnsourced = false
			break
		}
	}

	bySource := make(map[sourceDay]*partial)
	dropped := 0
	for i := range rows {
		r := &rows[i]
		source := syntheticSource
		switch {
		case r.SourceID != nil:
			source = *r.SourceID
		case !allUnsourced:
			dropped++
			continue
		}

		volume, weight := 1.0, 1.0
		if r.Volume != nil {
			volume = *r.Volume
		}
		if r.AvgWeight != nil {
			weight = *r.AvgWeight
		}

		key := sourceDay{date: dates.Day(r.Date), source: source}
		p, ok := bySource[key]
		if !ok {
			p = &partial{sources: 1}
			bySource[key] = p
		}
		p.weightedPrice += r.AvgPrice * volume * weight
		p.weightedVolWt += volume * weight
		p.volumeForCalc += volume
		if r.Volume != nil {
			p.volume += *r.Volume
		}
	}
	if dropped > 0 {
		slog.Debug("Dropped rows without source from a sourced set", "rows", dropped)
	}

	// Sum partials in (date, source) order so float results do not depend
	// on map iteration.
	keys := make([]sourceDay, 0, len(bySource))
	for key := range bySource {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].date.Equal(keys[j].date) {
			return keys[i].date.Before(keys[j].date)
		}
		return keys[i].source < keys[j].source
	})

	byDate := make(map[time.Time]*partial)
	for _, key := range keys {
		d, ok := byDate[key.date]
		if !ok {
			d = &partial{}
			byDate[key.date] = d
		}
		d.add(*bySource[key])
	}

	daily := make([]GroupedDaily, 0, len(byDate))
	for date, p := range byDate {
		g := GroupedDaily{
			Date:         date,
			AvgPrice:     divide(p.weightedPrice, p.weightedVolWt),
			SumVolume:    p.volume,
			AvgAvgWeight: divide(p.weightedVolWt, p.volumeForCalc),
			NumOfSource:  p.sources,
		}
		if !flags.HasVolume {
			g.SumVolume = float64(p.sources)
		}
		if !flags.HasWeight {
			g.AvgAvgWeight = 1
		}
		daily = append(daily, g)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date.Before(daily[j].Date) })

	if len(daily) == 0 {
		return Result{}, nil
	}
	return Result{Daily: daily, Flags: flags}, nil
}

func withPositiveVolumeAndWeight(rows []model.DailyTran) []model.DailyTran {
	out := make([]model.DailyTran, 0, len(rows))
	for _, r := range rows {
		if r.Volume != nil && *r.Volume > 0 && r.AvgWeight != nil && *r.AvgWeight > 0 {
			out = append(out, r)
		}
	}
	return out
}

// divide returns 0 when the denominator is 0.
func divide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
