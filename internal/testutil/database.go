// Package testutil provides database fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/storage"
)

// TestDB is a migrated in-memory database.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// Day parses a YYYY-MM-DD day or fails the test.
func Day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := dates.Parse(s)
	if err != nil {
		t.Fatalf("bad day %q: %v", s, err)
	}
	return d
}

// Tran builds a row for product on day reported by source (0 for none).
func Tran(t *testing.T, product, source int64, day string, price float64) model.DailyTran {
	t.Helper()
	row := model.DailyTran{ProductID: product, Date: Day(t, day), AvgPrice: price}
	if source != 0 {
		row.SourceID = model.ID(source)
	}
	return row
}

// WithVolume returns row with its volume set.
func WithVolume(row model.DailyTran, volume float64) model.DailyTran {
	row.Volume = model.Float(volume)
	return row
}

// WithWeight returns row with its average weight set.
func WithWeight(row model.DailyTran, weight float64) model.DailyTran {
	row.AvgWeight = model.Float(weight)
	return row
}

// SeedProducts saves products or fails the test.
func (db *TestDB) SeedProducts(products ...*model.Product) {
	db.t.Helper()
	for _, p := range products {
		if err := db.Storage.SaveProduct(context.Background(), p); err != nil {
			db.t.Fatalf("failed to seed product %q: %v", p.Name, err)
		}
	}
}

// SeedSources saves sources and links them to product.
func (db *TestDB) SeedSources(productID int64, sources ...*model.Source) {
	db.t.Helper()
	ctx := context.Background()
	for _, s := range sources {
		if err := db.Storage.SaveSource(ctx, s); err != nil {
			db.t.Fatalf("failed to seed source %q: %v", s.Name, err)
		}
		if productID != 0 {
			if err := db.Storage.LinkProductSource(ctx, productID, s.ID); err != nil {
				db.t.Fatalf("failed to link source %q: %v", s.Name, err)
			}
		}
	}
}

// SeedTrans saves daily transactions or fails the test.
func (db *TestDB) SeedTrans(rows ...model.DailyTran) {
	db.t.Helper()
	if _, err := db.Storage.SaveDailyTrans(context.Background(), rows); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
}

// SeedWatchlist saves a watchlist with its profiles, setting their WatchlistID.
func (db *TestDB) SeedWatchlist(w *model.Watchlist, profiles ...*model.MonitorProfile) {
	db.t.Helper()
	ctx := context.Background()
	if err := db.Storage.SaveWatchlist(ctx, w); err != nil {
		db.t.Fatalf("failed to seed watchlist %q: %v", w.Name, err)
	}
	for _, m := range profiles {
		m.WatchlistID = w.ID
		if err := db.Storage.SaveMonitorProfile(ctx, m); err != nil {
			db.t.Fatalf("failed to seed monitor profile for %d: %v", m.ProductID, err)
		}
	}
}
