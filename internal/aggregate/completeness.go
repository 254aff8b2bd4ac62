// Package aggregate reduces raw per-market daily transactions into weighted
// per-day statistics and whole-window averages.
package aggregate

import "github.com/Veraticus/the-harvest-must-flow/internal/model"

// densityThreshold is the share of priced rows that must carry a field for
// the field to take part in weighting.
const densityThreshold = 0.8

// Flags records which optional fields are dense enough to weight by.
type Flags struct {
	HasVolume bool `json:"has_volume"`
	HasWeight bool `json:"has_weight"`
}

// Detect computes completeness flags over rows. Every DailyTran carries a
// price, so the priced-row count is len(rows).
func Detect(rows []model.DailyTran) Flags {
	priced := len(rows)
	if priced == 0 {
		return Flags{}
	}

	var volumes, weights int
	for i := range rows {
		if rows[i].Volume != nil {
			volumes++
		}
		if rows[i].AvgWeight != nil {
			weights++
		}
	}

	return Flags{
		HasVolume: float64(volumes)/float64(priced) > densityThreshold,
		HasWeight: float64(weights)/float64(priced) > densityThreshold,
	}
}
