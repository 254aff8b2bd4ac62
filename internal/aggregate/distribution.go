package aggregate

import (
	"math"
	"sort"
)

// Quantiles reported per month.
var Quantiles = []float64{0, .25, .5, .75, 1}

// MonthStats summarizes one calendar month pooled over all years in a result.
type MonthStats struct {
	Quantiles []float64 `json:"quantiles"` // Values at the Quantiles levels
	Month     int       `json:"month"`
	Mean      float64   `json:"mean"`
	Count     int       `json:"count"`
}

// MonthlyDistribution groups days by calendar month and reports quantiles of
// the field plus a month mean. The mean is volume-weighted for price and
// weight and arithmetic for volume. Months without data are omitted.
func MonthlyDistribution(daily []GroupedDaily, field Field) []MonthStats {
	byMonth := make(map[int][]GroupedDaily)
	for _, d := range daily {
		m := int(d.Date.Month())
		byMonth[m] = append(byMonth[m], d)
	}

	out := make([]MonthStats, 0, len(byMonth))
	for month, days := range byMonth {
		values := make([]float64, len(days))
		for i, d := range days {
			values[i] = d.Value(field)
		}
		sort.Float64s(values)

		stats := MonthStats{Month: month, Count: len(days)}
		for _, q := range Quantiles {
			stats.Quantiles = append(stats.Quantiles, quantile(values, q))
		}

		switch field {
		case FieldPrice:
			stats.Mean = WeightedPrice(days)
		case FieldWeight:
			stats.Mean = WeightedWeight(days)
		default:
			var sum float64
			for _, v := range values {
				sum += v
			}
			stats.Mean = sum / float64(len(values))
		}
		out = append(out, stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// quantile interpolates linearly between the closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}
