package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

// DefaultBatchSize bounds the rows saved per database transaction.
const DefaultBatchSize = 500

// Progress is told how many rows were just written.
type Progress func(n int)

// Importer writes parsed files into a store and keeps the catalog cache coherent.
type Importer struct {
	store     service.Storage
	catalog   *catalog.Service
	BatchSize int
}

// NewImporter creates an importer. cat may be nil when no cache is in use.
func NewImporter(store service.Storage, cat *catalog.Service) *Importer {
	return &Importer{store: store, catalog: cat, BatchSize: DefaultBatchSize}
}

// ImportDailyTrans saves rows in batches.
func (im *Importer) ImportDailyTrans(ctx context.Context, rows []model.DailyTran, progress Progress) (service.UpsertStats, error) {
	var total service.UpsertStats
	size := im.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		stats, err := im.store.SaveDailyTrans(ctx, rows[start:end])
		if err != nil {
			return total, fmt.Errorf("save rows %d-%d: %w", start, end-1, err)
		}
		total.Inserted += stats.Inserted
		total.Updated += stats.Updated
		total.Unchanged += stats.Unchanged
		if progress != nil {
			progress(end - start)
		}
	}

	slog.Info("Imported daily transactions",
		"rows", len(rows),
		"inserted", total.Inserted,
		"updated", total.Updated,
		"unchanged", total.Unchanged)
	return total, nil
}

// ImportProducts saves products and invalidates their cached lookups.
func (im *Importer) ImportProducts(ctx context.Context, products []model.Product) error {
	for i := range products {
		if err := im.store.SaveProduct(ctx, &products[i]); err != nil {
			return err
		}
		if err := im.notify(ctx, catalog.ProductChanged{ID: products[i].ID}); err != nil {
			return err
		}
	}
	slog.Info("Imported products", "count", len(products))
	return nil
}

// ImportSources saves sources with their product links.
func (im *Importer) ImportSources(ctx context.Context, sources []SourceRow) error {
	for i := range sources {
		src := &sources[i].Source
		if err := im.store.SaveSource(ctx, src); err != nil {
			return err
		}
		for _, productID := range sources[i].Products {
			if err := im.store.LinkProductSource(ctx, productID, src.ID); err != nil {
				return err
			}
		}
		if err := im.notify(ctx, catalog.SourceChanged{ID: src.ID}); err != nil {
			return err
		}
	}
	slog.Info("Imported sources", "count", len(sources))
	return nil
}

// ImportWatchlists saves watchlists and their monitor profiles.
func (im *Importer) ImportWatchlists(ctx context.Context, watchlists []model.Watchlist, profiles []model.MonitorProfile) error {
	for i := range watchlists {
		if err := im.store.SaveWatchlist(ctx, &watchlists[i]); err != nil {
			return err
		}
	}
	for i := range profiles {
		if err := im.store.SaveMonitorProfile(ctx, &profiles[i]); err != nil {
			return err
		}
	}
	slog.Info("Imported watchlists", "watchlists", len(watchlists), "profiles", len(profiles))
	return nil
}

func (im *Importer) notify(ctx context.Context, event catalog.Event) error {
	if im.catalog == nil {
		return nil
	}
	return im.catalog.Handle(ctx, event)
}
