// Package service defines the interfaces between the application's layers.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// DailyTranFilter selects transactions. ProductIDs is required; an empty
// SourceIDs matches every source.
type DailyTranFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	ProductIDs []int64
	SourceIDs  []int64
}

// UpsertStats counts the outcome of a SaveDailyTrans call.
type UpsertStats struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// TransactionStore is the read/write contract over daily transactions.
type TransactionStore interface {
	SaveDailyTrans(ctx context.Context, rows []model.DailyTran) (UpsertStats, error)
	QueryDailyTrans(ctx context.Context, filter DailyTranFilter) ([]model.DailyTran, error)
	// QueryBetweenMonthDay returns rows on the month/day span [start, end]
	// repeated in every year from fromYear through start's year.
	QueryBetweenMonthDay(ctx context.Context, filter DailyTranFilter, start, end time.Time, fromYear int) ([]model.DailyTran, error)
	// LatestOnOrBefore returns the most recent row dated on or before day, or
	// common.ErrNotFound.
	LatestOnOrBefore(ctx context.Context, filter DailyTranFilter, day time.Time) (*model.DailyTran, error)
}

// CatalogStore persists products and sources.
type CatalogStore interface {
	SaveProduct(ctx context.Context, product *model.Product) error
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProducts(ctx context.Context, ids []int64) ([]model.Product, error)
	GetChildProducts(ctx context.Context, parentID int64) ([]model.Product, error)
	SaveSource(ctx context.Context, source *model.Source) error
	GetSources(ctx context.Context, ids []int64) ([]model.Source, error)
	GetProductSources(ctx context.Context, productID int64) ([]model.Source, error)
	LinkProductSource(ctx context.Context, productID, sourceID int64) error
}

// WatchlistStore persists watchlists and their monitor profiles.
type WatchlistStore interface {
	SaveWatchlist(ctx context.Context, w *model.Watchlist) error
	GetWatchlistFor(ctx context.Context, day time.Time) (*model.Watchlist, error)
	SaveMonitorProfile(ctx context.Context, m *model.MonitorProfile) error
	GetMonitorProfiles(ctx context.Context, watchlistID int64) ([]model.MonitorProfile, error)
}

// Storage is everything the CLI needs from a backing database.
type Storage interface {
	TransactionStore
	CatalogStore
	WatchlistStore
	Migrate(ctx context.Context) error
	Close() error
}

// Cache stores derived lookups. Keys are colon-separated; patterns use glob syntax.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Close() error
}

// RetryOptions configures retry behavior for connecting to external services.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}
