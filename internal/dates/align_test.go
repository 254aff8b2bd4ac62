package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLeap(t *testing.T) {
	tests := map[int]bool{
		2016: true,
		2020: true,
		2023: false,
		1900: false,
		2000: true,
		2100: false,
	}
	for year, want := range tests {
		assert.Equal(t, want, IsLeap(year), "year %d", year)
	}
}

func TestAlignSameDayAcrossYears(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		fromYear int
		toYear   int
		want     []Span
	}{
		{
			name:     "same week across three years",
			start:    Date(2024, time.November, 6),
			end:      Date(2024, time.November, 12),
			fromYear: 2022,
			want: []Span{
				{Date(2024, time.November, 6), Date(2024, time.November, 12)},
				{Date(2023, time.November, 6), Date(2023, time.November, 12)},
				{Date(2022, time.November, 6), Date(2022, time.November, 12)},
			},
		},
		{
			name:     "leap day start shifts forward",
			start:    Date(2024, time.February, 29),
			end:      Date(2024, time.March, 5),
			fromYear: 2023,
			want: []Span{
				{Date(2024, time.February, 29), Date(2024, time.March, 5)},
				{Date(2023, time.March, 1), Date(2023, time.March, 5)},
			},
		},
		{
			name:     "leap day end shifts backward",
			start:    Date(2024, time.February, 20),
			end:      Date(2024, time.February, 29),
			fromYear: 2023,
			want: []Span{
				{Date(2024, time.February, 20), Date(2024, time.February, 29)},
				{Date(2023, time.February, 20), Date(2023, time.February, 28)},
			},
		},
		{
			name:     "window crossing new year",
			start:    Date(2023, time.December, 28),
			end:      Date(2024, time.January, 3),
			fromYear: 2022,
			want: []Span{
				{Date(2023, time.December, 28), Date(2024, time.January, 3)},
				{Date(2022, time.December, 28), Date(2023, time.January, 3)},
			},
		},
		{
			name:     "upper bound skips recent years",
			start:    Date(2024, time.May, 1),
			end:      Date(2024, time.May, 2),
			fromYear: 2021,
			toYear:   2022,
			want: []Span{
				{Date(2022, time.May, 1), Date(2022, time.May, 2)},
				{Date(2021, time.May, 1), Date(2021, time.May, 2)},
			},
		},
		{
			name:     "earliest year after window",
			start:    Date(2010, time.May, 1),
			end:      Date(2010, time.May, 2),
			fromYear: DefaultEarliestYear,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AlignSameDayAcrossYears(tt.start, tt.end, tt.fromYear, tt.toYear)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlignSameDayAcrossYears_InvalidWindow(t *testing.T) {
	_, err := AlignSameDayAcrossYears(Date(2024, time.May, 3), Date(2024, time.May, 1), 2020, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestAlignedDays(t *testing.T) {
	spans, err := AlignSameDayAcrossYears(Date(2024, time.February, 28), Date(2024, time.February, 29), 2023, 0)
	require.NoError(t, err)

	days := AlignedDays(spans)
	assert.Equal(t, []time.Time{
		Date(2024, time.February, 28),
		Date(2024, time.February, 29),
		Date(2023, time.February, 28),
	}, days)

	set := NewDaySet(days)
	assert.True(t, set.Has(Date(2023, time.February, 28)))
	assert.False(t, set.Has(Date(2023, time.March, 1)))
}

func TestRange(t *testing.T) {
	days := Range(Date(2024, time.May, 1), Date(2024, time.May, 3))
	assert.Len(t, days, 3)
	assert.Equal(t, Date(2024, time.May, 3), days[2])

	assert.Empty(t, Range(Date(2024, time.May, 3), Date(2024, time.May, 1)))
}

func TestSpan(t *testing.T) {
	s, err := NewSpan(Date(2024, time.November, 6), Date(2024, time.November, 12))
	require.NoError(t, err)

	assert.Equal(t, 7, s.Len())
	assert.Equal(t, "2024", s.Label())
	assert.True(t, s.Contains(time.Date(2024, time.November, 12, 18, 30, 0, 0, time.UTC)))
	assert.Equal(t, Span{Date(2024, time.October, 30), Date(2024, time.November, 5)}, s.Previous())

	crossing := Span{Date(2023, time.December, 28), Date(2024, time.January, 3)}
	assert.Equal(t, "2023~2024", crossing.Label())
}

func TestUnixMilli(t *testing.T) {
	assert.Equal(t, int64(1730851200000), UnixMilli(Date(2024, time.November, 6)))
}

func TestMonthSpan(t *testing.T) {
	s := MonthSpan(2024, time.February)
	assert.Equal(t, Date(2024, time.February, 29), s.End)
	assert.Equal(t, Date(2023, time.February, 28), MonthSpan(2023, time.February).End)
}
