package report

import (
	"context"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/series"
)

// Entry labels.
const (
	ThisTerm  = "This Term"
	LastTerm  = "Last Term"
	FiveYears = "5 Years"
)

// fiveYearMinimum is the number of distinct years the five-year entry needs.
const fiveYearMinimum = 5

// IntegrationEntry summarizes one compared period.
type IntegrationEntry struct {
	Name        string         `json:"name"`
	Points      []series.Point `json:"points"`
	AvgPrice    float64        `json:"avg_price"`
	SumVolume   float64        `json:"sum_volume"`
	AvgWeight   float64        `json:"avg_avg_weight"`
	NumOfSource float64        `json:"num_of_source"`
	Order       int            `json:"order"`
	Base        bool           `json:"base"`

	flags aggregate.Flags
}

// Integration compares a window with other periods.
type Integration struct {
	Entries   []IntegrationEntry `json:"integration"`
	HasVolume bool               `json:"has_volume"`
	HasWeight bool               `json:"has_weight"`
	NoData    bool               `json:"no_data"`
}

// BuildIntegration compares [start, end] with other periods of rows.
//
// In term mode the entries are the window itself, the window of equal length
// just before it, and the same month/day window pooled over the five
// preceding years when at least five years have data. In per-year mode there
// is one entry per earlier year with data, most recent first.
func BuildIntegration(rows []model.DailyTran, start, end time.Time, perYear bool) (Integration, error) {
	span, err := dates.NewSpan(start, end)
	if err != nil {
		return Integration{}, err
	}

	var out Integration
	if perYear {
		out.Entries, err = yearEntries(rows, span)
	} else {
		out.Entries, err = termEntries(rows, span)
	}
	if err != nil {
		return Integration{}, err
	}

	out.NoData = len(out.Entries) == 0
	if !out.NoData {
		first := out.Entries[0]
		out.HasVolume = first.flags.HasVolume
		out.HasWeight = first.flags.HasWeight
	}
	return out, nil
}

func termEntries(rows []model.DailyTran, span dates.Span) ([]IntegrationEntry, error) {
	var entries []IntegrationEntry

	this, err := aggregate.Aggregate(rows, &aggregate.Window{Span: span, SpecificYear: true})
	if err != nil {
		return nil, err
	}
	if !this.Empty() {
		entries = append(entries, entry(ThisTerm, this, 1, true))
	}

	last, err := aggregate.Aggregate(rows, &aggregate.Window{Span: span.Previous(), SpecificYear: true})
	if err != nil {
		return nil, err
	}
	if !last.Empty() {
		entries = append(entries, entry(LastTerm, last, 2, false))
	}

	year := span.Start.Year()
	five, err := aggregate.Aggregate(rows, &aggregate.Window{Span: span, FromYear: year - 5, ToYear: year - 1})
	if err != nil {
		return nil, err
	}
	if len(five.Years()) >= fiveYearMinimum {
		entries = append(entries, entry(FiveYears, five, 3, false))
	}
	return entries, nil
}

func yearEntries(rows []model.DailyTran, span dates.Span) ([]IntegrationEntry, error) {
	thisYear := span.End.Year()
	earlier := make([]model.DailyTran, 0, len(rows))
	for _, r := range rows {
		if r.Date.Year() < thisYear {
			earlier = append(earlier, r)
		}
	}
	if len(earlier) == 0 {
		return nil, nil
	}

	from := earlier[0].Date.Year()
	for _, r := range earlier {
		from = min(from, r.Date.Year())
	}
	// The window starting in this term's own year is the term itself.
	window := aggregate.Window{Span: span, FromYear: from, ToYear: span.Start.Year() - 1}
	res, err := aggregate.Aggregate(earlier, &window)
	if err != nil {
		return nil, err
	}
	spans, err := window.Spans()
	if err != nil {
		return nil, err
	}

	var entries []IntegrationEntry
	for _, s := range spans {
		part := res.Between(s)
		if part.Empty() {
			continue
		}
		entries = append(entries, entry(s.Label(), part, 4+thisYear-s.Start.Year(), false))
	}
	return entries, nil
}

// entry reduces a period. Volume, weight and source count are plain means of
// the daily figures; the price follows the result's policy.
func entry(name string, res aggregate.Result, order int, base bool) IntegrationEntry {
	e := IntegrationEntry{
		Name:        name,
		Order:       order,
		Base:        base,
		Points:      series.Sparse(res.Daily, aggregate.FieldPrice),
		NumOfSource: res.AvgSources(),
		flags:       res.Flags,
	}
	e.AvgPrice, _ = res.AvgPrice()

	var volume, weight float64
	for _, d := range res.Daily {
		volume += d.SumVolume
		weight += d.AvgAvgWeight
	}
	if n := float64(len(res.Daily)); n > 0 {
		e.SumVolume = volume / n
		e.AvgWeight = weight / n
	}
	return e
}

// Integration fetches every row of a selection since the earliest year and
// compares [start, end] with other periods.
func (r *Reporter) Integration(ctx context.Context, sel catalog.Selection, start, end time.Time, perYear bool) (Integration, error) {
	ctx, run := startRun(ctx, "integration")
	rows, err := r.query(ctx, sel.Filter(), dates.Date(r.EarliestYear, time.January, 1), end)
	if err != nil {
		return Integration{}, err
	}
	out, err := BuildIntegration(rows, start, end, perYear)
	if err != nil {
		return Integration{}, err
	}
	r.logEntries(ctx, run, out)
	return out, nil
}

func (r *Reporter) logEntries(ctx context.Context, run Run, out Integration) {
	names := make([]string, len(out.Entries))
	for i, e := range out.Entries {
		names[i] = e.Name
	}
	common.LogDebug(ctx, "Built integration", common.Fields{
		"entries": names,
		"elapsed": time.Since(run.Started).String(),
	})
}
