package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/config"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int64
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "blank", in: "  ", want: nil},
		{name: "single", in: "7", want: []int64{7}},
		{name: "spaced list", in: "1, 2 ,3", want: []int64{1, 2, 3}},
		{name: "not a number", in: "1,x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDateOrToday(t *testing.T) {
	got, err := parseDateOrToday("2024-11-12")
	require.NoError(t, err)
	assert.Equal(t, dates.Date(2024, time.November, 12), got)

	got, err = parseDateOrToday("")
	require.NoError(t, err)
	assert.Equal(t, dates.Day(time.Now()), got)

	_, err = parseDateOrToday("12/11/2024")
	assert.Error(t, err)
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "17.50", cellText(17.5))
	assert.Equal(t, "2024-11-12", cellText("2024-11-12"))
	assert.Equal(t, "3", cellText(3))
}

func TestInitStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "harvest.db")
	store, err := initStorage(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	sqlite, ok := store.(*storage.SQLiteStorage)
	require.True(t, ok)
	version, err := sqlite.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)
}

func TestInitCache_Memory(t *testing.T) {
	c, err := initCache(context.Background(), config.CacheConfig{Driver: config.CacheMemory, TTL: time.Minute})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set(context.Background(), "product:1", []byte("x")))
	v, ok, err := c.Get(context.Background(), "product:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), v)
}

func TestSheetsConfig(t *testing.T) {
	cfg := sheetsConfig(config.SheetsConfig{ServiceAccountPath: "/keys/sa.json", SpreadsheetID: "abc"})
	assert.Equal(t, "/keys/sa.json", cfg.ServiceAccountPath)
	assert.Equal(t, "abc", cfg.SpreadsheetID)
	assert.Equal(t, "Harvest Reports", cfg.SpreadsheetName)
	assert.True(t, cfg.EnableFormatting)
	assert.NoError(t, cfg.Validate())

	empty := sheetsConfig(config.SheetsConfig{})
	assert.Error(t, empty.Validate())
}

func TestSnapshotFormatting(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "2.0 KB", formatSize(2048))
	assert.Equal(t, "1.5 MB", formatSize(3<<19))

	assert.Equal(t, "daily_trans=120 products=4", formatCounts(map[string]int{
		"products":    4,
		"daily_trans": 120,
		"watchlists":  0,
	}))
}

func TestAutoSnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := initStorage(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "harvest.db")})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	sqlite, ok := store.(*storage.SQLiteStorage)
	require.True(t, ok)

	var out bytes.Buffer
	require.NoError(t, autoSnapshot(ctx, &out, sqlite))
	assert.Contains(t, out.String(), "auto-import-")

	m, err := sqlite.Snapshots()
	require.NoError(t, err)
	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsAuto)
}
