package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComparator(t *testing.T) {
	tests := []struct {
		input   string
		want    Comparator
		wantErr bool
	}{
		{input: "lt", want: LessThan},
		{input: "__lte__", want: LessOrEqual},
		{input: "gt", want: GreaterThan},
		{input: "__gte__", want: GreaterOrEqual},
		{input: "eq", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseComparator(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComparator_Compare(t *testing.T) {
	tests := []struct {
		comparator Comparator
		value      float64
		want       bool
	}{
		{LessThan, 9, true},
		{LessThan, 10, false},
		{LessOrEqual, 10, true},
		{GreaterThan, 10, false},
		{GreaterThan, 11, true},
		{GreaterOrEqual, 10, true},
		{Comparator("bogus"), 10, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.comparator.Compare(tt.value, 10), "%s %v", tt.comparator, tt.value)
	}
}

func TestMonitorProfile_PriceRange(t *testing.T) {
	profiles := []MonitorProfile{
		{ID: 1, ProductID: 7, WatchlistID: 1, Stage: StageOrigin, Comparator: LessThan, Price: 20},
		{ID: 2, ProductID: 7, WatchlistID: 1, Stage: StageOrigin, Comparator: LessThan, Price: 15},
		{ID: 3, ProductID: 7, WatchlistID: 1, Stage: StageOrigin, Comparator: GreaterThan, Price: 40},
		{ID: 4, ProductID: 7, WatchlistID: 1, Stage: StageOrigin, Comparator: GreaterOrEqual, Price: 50},
		// Different stage, never a sibling
		{ID: 5, ProductID: 7, WatchlistID: 1, Stage: StageWholesale, Comparator: LessThan, Price: 18},
	}

	tests := []struct {
		name    string
		profile MonitorProfile
		low, up float64
	}{
		{"lower band above another lower band", profiles[0], 15, 20},
		{"lowest band starts at zero", profiles[1], 0, 15},
		{"upper band below another upper band", profiles[2], 40, 50},
		{"highest band is open", profiles[3], 50, OpenUpperBound},
		{"stage without siblings", profiles[4], 0, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			low, up := tt.profile.PriceRange(profiles)
			assert.Equal(t, tt.low, low)
			assert.Equal(t, tt.up, up)
		})
	}
}

func TestMonitorProfile_ProductsFor(t *testing.T) {
	m := MonitorProfile{
		ProductID: 50182,
		Products:  []int64{50183, 50184},
		Seasonal: map[int][]int64{
			5: {50186},
			6: {50186},
			7: {50185},
		},
	}

	assert.Equal(t, []int64{50186}, m.ProductsFor(time.May))
	assert.Equal(t, []int64{50185}, m.ProductsFor(time.July))
	assert.Equal(t, []int64{50183, 50184}, m.ProductsFor(time.January))

	bare := MonitorProfile{ProductID: 3}
	assert.Equal(t, []int64{3}, bare.ProductsFor(time.March))
}

func TestMonitorProfile_Active(t *testing.T) {
	m := MonitorProfile{Comparator: LessThan, Price: 25}
	assert.True(t, m.Active(24.9))
	assert.False(t, m.Active(25))
}

func TestMonitorProfile_ShownIn(t *testing.T) {
	m := MonitorProfile{Months: []int{11, 12}}
	assert.True(t, m.ShownIn(time.November))
	assert.False(t, m.ShownIn(time.June))

	m.AlwaysDisplay = true
	assert.True(t, m.ShownIn(time.June))
}

func TestWatchlist_Covers(t *testing.T) {
	w := Watchlist{
		Start: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, w.Covers(w.Start))
	assert.True(t, w.Covers(w.End))
	assert.False(t, w.Covers(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)))
}
