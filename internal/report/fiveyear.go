package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// Metric names a five-year table.
type Metric string

const (
	MetricPrice        Metric = "price"
	MetricVolume       Metric = "volume"
	MetricWeight       Metric = "weight"
	MetricVolumeWeight Metric = "volume_weight"
)

// Label is the sheet title of the metric.
func (m Metric) Label() string {
	switch m {
	case MetricVolume:
		return "平均交易量"
	case MetricWeight:
		return "平均重量"
	case MetricVolumeWeight:
		return "平均交易重量"
	default:
		return "平均價格"
	}
}

// AverageLabel heads the row pooling the five years before the report year.
const AverageLabel = "近五年平均"

// FiveYearColumns head every five-year table: the annual figure, then months.
var FiveYearColumns = []string{"年平均", "1月", "2月", "3月", "4月", "5月", "6月", "7月", "8月", "9月", "10月", "11月", "12月"}

// UnitPolicy scales volumes for display.
type UnitPolicy struct {
	// WeightedVolumeDivisor applies to volumes when rows carry unit weights.
	WeightedVolumeDivisor float64
	// VolumeDivisor applies to volumes of products priced by volume alone.
	VolumeDivisor float64
	// VolumeWeight adds the volume×weight table, divided by WeightedVolumeDivisor.
	VolumeWeight bool
}

// UnitPolicyFor picks the policy of a product. Volume-only products report
// metric tons, hogs report thousands of head and other livestock head counts.
func UnitPolicyFor(p *model.Product) UnitPolicy {
	policy := UnitPolicy{WeightedVolumeDivisor: 1, VolumeDivisor: 1000}
	if p != nil && p.Species() == model.SpeciesHog {
		policy.WeightedVolumeDivisor = 1000
		policy.VolumeWeight = true
	}
	return policy
}

// FiveYearRow is one labelled row of 13 cells. Nil cells have no data.
type FiveYearRow struct {
	Label  string     `json:"label"`
	Values []*float64 `json:"values"`
}

// FiveYearTable is the five-year history of one metric.
type FiveYearTable struct {
	Metric Metric        `json:"metric"`
	Rows   []FiveYearRow `json:"rows"`
}

// FiveYearReport is the result of FiveYear.
type FiveYearReport struct {
	Product *model.Product  `json:"product"`
	Run     Run             `json:"run"`
	Tables  []FiveYearTable `json:"tables"`
	Year    int             `json:"year"`
	Month   time.Month      `json:"month"`
}

// FiveYearOptions configures a five-year report. Sources restricts the rows to
// the listed markets; otherwise ExcludeSources drops the listed ones.
type FiveYearOptions struct {
	Date           time.Time
	Products       []int64
	Sources        []int64
	ExcludeSources []int64
	Stage          model.Stage
}

// figures accumulates one cell and pools into annual cells.
type figures struct {
	priceNum, priceDen   float64
	volumeSum            float64
	volumeDays           int
	weightNum, weightDen float64
	volumeWeightSum      float64
	hasPrice             bool
	hasVolume            bool
	hasWeight            bool
}

func measure(res aggregate.Result) figures {
	var f figures
	if res.Empty() {
		return f
	}
	f.hasPrice = true
	f.priceNum, f.priceDen = res.PriceTerms()
	if res.Flags.HasVolume {
		f.hasVolume = true
		for _, d := range res.Daily {
			f.volumeSum += d.SumVolume
		}
		f.volumeDays = len(res.Daily)
	}
	if res.Flags.HasWeight {
		f.hasWeight = true
		for _, d := range res.Daily {
			f.weightNum += d.SumVolume * d.AvgAvgWeight
			f.weightDen += d.SumVolume
			f.volumeWeightSum += d.SumVolume * d.AvgAvgWeight
		}
	}
	return f
}

func (f *figures) add(o figures) {
	f.priceNum += o.priceNum
	f.priceDen += o.priceDen
	f.volumeSum += o.volumeSum
	f.volumeDays += o.volumeDays
	f.weightNum += o.weightNum
	f.weightDen += o.weightDen
	f.volumeWeightSum += o.volumeWeightSum
	f.hasPrice = f.hasPrice || o.hasPrice
	f.hasVolume = f.hasVolume || o.hasVolume
	f.hasWeight = f.hasWeight || o.hasWeight
}

// value renders one metric, or nil when the cell has no such data.
func (f figures) value(m Metric, policy UnitPolicy) *float64 {
	switch m {
	case MetricPrice:
		if !f.hasPrice || f.priceDen == 0 {
			return nil
		}
		return floatPtr(Round(f.priceNum/f.priceDen, 2))
	case MetricVolume:
		if !f.hasVolume || f.volumeDays == 0 {
			return nil
		}
		divisor := policy.VolumeDivisor
		if f.hasWeight {
			divisor = policy.WeightedVolumeDivisor
		}
		return floatPtr(Round(f.volumeSum/float64(f.volumeDays)/divisor, 3))
	case MetricWeight:
		if !f.hasWeight || f.weightDen == 0 {
			return nil
		}
		return floatPtr(Round(f.weightNum/f.weightDen, 3))
	case MetricVolumeWeight:
		if !f.hasWeight || f.volumeDays == 0 {
			return nil
		}
		return floatPtr(Round(f.volumeWeightSum/float64(f.volumeDays)/policy.WeightedVolumeDivisor, 3))
	}
	return nil
}

// BuildFiveYear lays out years year-5 through year, the report year only up to
// lastMonth, followed by the pooled average of year-5 through year-1. Each
// month is aggregated on its own so its weighting follows its own data.
func BuildFiveYear(rows []model.DailyTran, year int, lastMonth time.Month, policy UnitPolicy) ([]FiveYearTable, error) {
	type cell struct {
		year  int
		month time.Month
	}
	byCell := make(map[cell][]model.DailyTran)
	for _, r := range rows {
		c := cell{year: r.Date.Year(), month: r.Date.Month()}
		byCell[c] = append(byCell[c], r)
	}

	var grid [][]figures // rows: years, then the average; cells: annual, then months
	for y := year - 5; y <= year; y++ {
		yearRow := make([]figures, 13)
		for m := time.January; m <= time.December; m++ {
			if y == year && m > lastMonth {
				break
			}
			res, err := aggregate.Aggregate(byCell[cell{year: y, month: m}], nil)
			if err != nil {
				return nil, err
			}
			yearRow[m] = measure(res)
			yearRow[0].add(yearRow[m])
		}
		grid = append(grid, yearRow)
	}

	average := make([]figures, 13)
	for m := time.January; m <= time.December; m++ {
		var pooled []model.DailyTran
		for y := year - 5; y < year; y++ {
			pooled = append(pooled, byCell[cell{year: y, month: m}]...)
		}
		res, err := aggregate.Aggregate(pooled, nil)
		if err != nil {
			return nil, err
		}
		average[m] = measure(res)
	}

	labels := make([]string, 0, 7)
	for y := year - 5; y <= year; y++ {
		labels = append(labels, RocYear(y))
	}

	metrics := []Metric{MetricPrice, MetricVolume, MetricWeight}
	if policy.VolumeWeight {
		metrics = append(metrics, MetricVolumeWeight)
	}

	var tables []FiveYearTable
	for _, metric := range metrics {
		table := FiveYearTable{Metric: metric}
		filled := false
		for i, yearRow := range grid {
			row := FiveYearRow{Label: labels[i], Values: make([]*float64, 13)}
			for c := range yearRow {
				row.Values[c] = yearRow[c].value(metric, policy)
				filled = filled || row.Values[c] != nil
			}
			table.Rows = append(table.Rows, row)
		}
		avgRow := FiveYearRow{Label: AverageLabel, Values: make([]*float64, 13)}
		for c := 1; c < 13; c++ {
			avgRow.Values[c] = average[c].value(metric, policy)
		}
		table.Rows = append(table.Rows, avgRow)

		// Price is always reported; other metrics only when some year has them.
		if metric == MetricPrice || filled {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

// FiveYear builds the five-year monthly report for the first requested product
// and its descendants.
func (r *Reporter) FiveYear(ctx context.Context, opts FiveYearOptions) (*FiveYearReport, error) {
	ctx, run := startRun(ctx, "five-year")
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	day := dates.Day(opts.Date)

	sel, err := r.catalog.Resolve(ctx, opts.Products, opts.Sources, opts.Stage)
	if err != nil {
		return nil, err
	}
	product := sel.Primary()

	rows, err := r.query(ctx, sel.Filter(), dates.Date(day.Year()-5, time.January, 1), day)
	if err != nil {
		return nil, err
	}
	if len(opts.Sources) == 0 && len(opts.ExcludeSources) > 0 {
		rows = excludeSources(rows, opts.ExcludeSources)
	}

	tables, err := BuildFiveYear(rows, day.Year(), day.Month(), UnitPolicyFor(product))
	if err != nil {
		return nil, fmt.Errorf("build five-year report for %s: %w", product.Name, err)
	}

	common.LogInfo(ctx, "Built five-year report", common.Fields{
		"product": product.Name,
		"rows":    len(rows),
		"tables":  len(tables),
	})
	return &FiveYearReport{Run: run, Product: product, Tables: tables, Year: day.Year(), Month: day.Month()}, nil
}

func excludeSources(rows []model.DailyTran, excluded []int64) []model.DailyTran {
	out := make([]model.DailyTran, 0, len(rows))
	for _, r := range rows {
		if r.SourceID != nil && slices.Contains(excluded, *r.SourceID) {
			continue
		}
		out = append(out, r)
	}
	return out
}
