package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWatchlistFor(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetWatchlistFor(ctx, mustDay(t, "2024-05-01"))
	assert.True(t, errors.Is(err, common.ErrNotFound))

	def := &model.Watchlist{Name: "預設", Start: mustDay(t, "2000-01-01"), End: mustDay(t, "2000-01-01"), IsDefault: true}
	h1 := &model.Watchlist{Name: "113上半年", Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-06-30")}
	h2 := &model.Watchlist{Name: "113下半年", Start: mustDay(t, "2024-07-01"), End: mustDay(t, "2024-12-31")}
	for _, w := range []*model.Watchlist{def, h1, h2} {
		require.NoError(t, store.SaveWatchlist(ctx, w))
	}

	tests := []struct {
		day  string
		want string
	}{
		{day: "2024-05-01", want: "113上半年"},
		{day: "2024-06-30", want: "113上半年"},
		{day: "2024-07-01", want: "113下半年"},
		{day: "2025-01-01", want: "預設"},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			w, err := store.GetWatchlistFor(ctx, mustDay(t, tt.day))
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.Name)
		})
	}

	h1.Name = "113年上半年"
	require.NoError(t, store.SaveWatchlist(ctx, h1))
	w, err := store.GetWatchlistFor(ctx, mustDay(t, "2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, *h1, *w)

	assert.Error(t, store.SaveWatchlist(ctx, &model.Watchlist{Name: "bad", Start: mustDay(t, "2024-02-01"), End: mustDay(t, "2024-01-01")}))
}

func TestMonitorProfiles(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	w := &model.Watchlist{Name: "113年", Start: mustDay(t, "2024-01-01"), End: mustDay(t, "2024-12-31")}
	require.NoError(t, store.SaveWatchlist(ctx, w))

	mango := &model.MonitorProfile{
		WatchlistID: w.ID,
		ProductID:   50182,
		Stage:       model.StageOrigin,
		Comparator:  model.LessThan,
		Price:       25,
		Row:         12,
		Months:      []int{5, 6, 7, 8},
		Sources:     []int64{3, 4},
		Seasonal:    map[int][]int64{5: {50186}, 6: {50186}, 7: {50185}, 8: {50185}},
	}
	hog := &model.MonitorProfile{
		WatchlistID:   w.ID,
		ProductID:     70001,
		Comparator:    model.GreaterOrEqual,
		Price:         80,
		Row:           3,
		AlwaysDisplay: true,
	}
	require.NoError(t, store.SaveMonitorProfile(ctx, mango))
	require.NoError(t, store.SaveMonitorProfile(ctx, hog))

	profiles, err := store.GetMonitorProfiles(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, *hog, profiles[0], "ordered by row")
	assert.Equal(t, *mango, profiles[1])

	hog.Price = 85
	require.NoError(t, store.SaveMonitorProfile(ctx, hog))
	profiles, err = store.GetMonitorProfiles(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, profiles[0].Price)

	tests := []struct {
		profile *model.MonitorProfile
		name    string
	}{
		{name: "nil"},
		{name: "missing watchlist", profile: &model.MonitorProfile{ProductID: 1, Comparator: model.LessThan}},
		{name: "bad comparator", profile: &model.MonitorProfile{WatchlistID: w.ID, ProductID: 1, Comparator: "ne"}},
		{name: "bad month", profile: &model.MonitorProfile{WatchlistID: w.ID, ProductID: 1, Comparator: model.LessThan, Months: []int{13}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.SaveMonitorProfile(ctx, tt.profile))
		})
	}
}
