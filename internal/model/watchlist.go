package model

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Comparator decides which side of a monitor price triggers an alert.
type Comparator string

const (
	LessThan       Comparator = "lt"
	LessOrEqual    Comparator = "lte"
	GreaterThan    Comparator = "gt"
	GreaterOrEqual Comparator = "gte"
)

// ParseComparator accepts both the short names and the legacy dunder form ("__lt__").
func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "lt", "__lt__":
		return LessThan, nil
	case "lte", "__lte__":
		return LessOrEqual, nil
	case "gt", "__gt__":
		return GreaterThan, nil
	case "gte", "__gte__":
		return GreaterOrEqual, nil
	default:
		return "", fmt.Errorf("unknown comparator %q", s)
	}
}

// Compare reports whether value stands in this relation to threshold.
func (c Comparator) Compare(value, threshold float64) bool {
	switch c {
	case LessThan:
		return value < threshold
	case LessOrEqual:
		return value <= threshold
	case GreaterThan:
		return value > threshold
	case GreaterOrEqual:
		return value >= threshold
	default:
		return false
	}
}

// IsLess reports whether the comparator triggers below the threshold.
func (c Comparator) IsLess() bool {
	return c == LessThan || c == LessOrEqual
}

// Symbol renders the comparator for report headers.
func (c Comparator) Symbol() string {
	switch c {
	case LessThan:
		return "<"
	case LessOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterOrEqual:
		return ">="
	default:
		return "?"
	}
}

// OpenUpperBound is the upper price bound of the highest "greater" band.
const OpenUpperBound = float64(1 << 50)

// Watchlist groups monitor profiles valid for a period.
type Watchlist struct {
	Start     time.Time
	End       time.Time
	Name      string
	ID        int64
	IsDefault bool
}

// Covers reports whether day falls within the watchlist period.
func (w *Watchlist) Covers(day time.Time) bool {
	return !day.Before(w.Start) && !day.After(w.End)
}

// MonitorProfile is one monitored price line of a watchlist.
type MonitorProfile struct {
	Comparator    Comparator
	Stage         Stage
	Name          string          // Display name; defaults to the product's
	Products      []int64         // Products aggregated for this line; defaults to ProductID
	Sources       []int64         // Empty means all sources
	Seasonal      map[int][]int64 // Month -> product ids replacing Products in that month
	Months        []int
	ID            int64
	WatchlistID   int64
	ProductID     int64
	Price         float64
	Row           int
	AlwaysDisplay bool
}

// Active reports whether an observed price triggers the profile.
func (m *MonitorProfile) Active(price float64) bool {
	return m.Comparator.Compare(price, m.Price)
}

// ShownIn reports whether the profile is displayed in a report for the given month.
func (m *MonitorProfile) ShownIn(month time.Month) bool {
	return m.AlwaysDisplay || slices.Contains(m.Months, int(month))
}

// ProductsFor returns the product ids to aggregate for a report in the given month.
func (m *MonitorProfile) ProductsFor(month time.Month) []int64 {
	if ids, ok := m.Seasonal[int(month)]; ok && len(ids) > 0 {
		return ids
	}
	if len(m.Products) > 0 {
		return m.Products
	}
	return []int64{m.ProductID}
}

// PriceRange returns the [low, up) band covered by this profile among its
// siblings, the other profiles for the same product, stage and watchlist.
func (m *MonitorProfile) PriceRange(siblings []MonitorProfile) (low, up float64) {
	prices := make([]float64, 0, len(siblings))
	for _, s := range siblings {
		if s.ID == m.ID || s.ProductID != m.ProductID || s.Stage != m.Stage || s.WatchlistID != m.WatchlistID {
			continue
		}
		if s.Comparator.IsLess() == m.Comparator.IsLess() {
			prices = append(prices, s.Price)
		}
	}
	sort.Float64s(prices)

	if m.Comparator.IsLess() {
		low = 0
		for _, p := range prices {
			if p < m.Price {
				low = p
			}
		}
		return low, m.Price
	}

	up = OpenUpperBound
	for _, p := range prices {
		if p > m.Price {
			up = p
			break
		}
	}
	return m.Price, up
}
