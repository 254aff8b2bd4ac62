package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshots(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.SaveProduct(ctx, &model.Product{ID: 1, Name: "甘藍", Data: model.CropData{}, Stage: model.StageWholesale, TrackItem: true}))
	_, err := store.SaveDailyTrans(ctx, []model.DailyTran{tran(t, 1, 0, "2024-11-06", 10)})
	require.NoError(t, err)

	snaps, err := store.Snapshots()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(store.Path()), "snapshots"), snaps.dir)

	info, err := snaps.Create(ctx, "before-price-fix", "manual")
	require.NoError(t, err)
	assert.Equal(t, 1, info.RowCounts["daily_trans"])
	assert.Equal(t, 1, info.RowCounts["products"])
	assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
	assert.Positive(t, info.FileSize)

	_, err = snaps.Create(ctx, "before-price-fix", "again")
	assert.ErrorIs(t, err, ErrSnapshotExists)

	_, err = snaps.Create(ctx, "../escape", "")
	assert.Error(t, err)

	list, err := snaps.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "before-price-fix", list[0].ID)
	assert.False(t, list[0].IsAuto)

	require.NoError(t, snaps.Delete(ctx, "before-price-fix"))
	assert.ErrorIs(t, snaps.Delete(ctx, "before-price-fix"), ErrSnapshotNotFound)
}

func TestSnapshots_AutoPrune(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	snaps, err := store.Snapshots()
	require.NoError(t, err)

	for i := 0; i < maxAutoSnapshots+2; i++ {
		info, err := snaps.AutoSnapshot(ctx, "import")
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
	}
	_, err = snaps.Create(ctx, "manual", "")
	require.NoError(t, err)

	list, err := snaps.List(ctx)
	require.NoError(t, err)
	auto := 0
	for _, s := range list {
		if s.IsAuto {
			auto++
		}
	}
	assert.Equal(t, maxAutoSnapshots, auto)
	assert.Len(t, list, maxAutoSnapshots+1)
}

func TestSnapshots_Restore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "harvest.db")
	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.SaveProduct(ctx, &model.Product{ID: 1, Name: "甘藍", Data: model.CropData{}, Stage: model.StageWholesale, TrackItem: true}))

	_, err = store.SaveDailyTrans(ctx, []model.DailyTran{tran(t, 1, 0, "2024-11-06", 10)})
	require.NoError(t, err)

	snaps, err := store.Snapshots()
	require.NoError(t, err)
	_, err = snaps.Create(ctx, "good", "")
	require.NoError(t, err)

	_, err = store.SaveDailyTrans(ctx, []model.DailyTran{tran(t, 1, 0, "2024-11-06", 99)})
	require.NoError(t, err)

	require.NoError(t, snaps.Restore(ctx, "good"))
	assert.ErrorIs(t, snaps.Restore(ctx, "missing"), ErrSnapshotNotFound)

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	rows, err := reopened.QueryDailyTrans(ctx, service.DailyTranFilter{ProductIDs: []int64{1}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 10.0, rows[0].AvgPrice, 1e-9)
}

func TestSnapshots_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Snapshots()
	assert.ErrorIs(t, err, ErrInMemoryDatabase)
}
