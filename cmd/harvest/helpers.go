package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/cache"
	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/config"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/report"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/Veraticus/the-harvest-must-flow/internal/storage"
	"github.com/spf13/viper"
)

var connectRetry = service.RetryOptions{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

// app bundles the services a command needs.
type app struct {
	cfg      *config.Config
	store    service.Storage
	cache    service.Cache
	catalog  *catalog.Service
	reporter *report.Reporter
}

// openApp loads configuration and connects storage and cache.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}

	store, err := initStorage(ctx, cfg.Database)
	if err != nil {
		return nil, common.NewUserError("could not open database", err)
	}

	c, err := initCache(ctx, cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, common.NewUserError("could not connect to cache", err)
	}

	cat := catalog.NewService(store, c)
	reporter := report.NewReporter(store, cat)
	reporter.EarliestYear = cfg.Report.EarliestYear

	return &app{cfg: cfg, store: store, cache: c, catalog: cat, reporter: reporter}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		slog.Warn("Failed to close cache", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, cfg config.DatabaseConfig) (service.Storage, error) {
	var (
		store service.Storage
		err   error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err = storage.NewPostgresStorage(ctx, cfg.DSN, connectRetry)
	default:
		store, err = storage.NewSQLiteStorage(cfg.Path)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func initCache(ctx context.Context, cfg config.CacheConfig) (service.Cache, error) {
	if cfg.Driver == config.CacheRedis {
		return cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "harvest",
			TTL:      cfg.TTL,
			Retry:    connectRetry,
		})
	}
	return cache.NewMemoryCache(cfg.TTL), nil
}

// parseIDs reads "1,2,3".
func parseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// parseDateOrToday reads YYYY-MM-DD, defaulting to today.
func parseDateOrToday(s string) (time.Time, error) {
	if s == "" {
		return dates.Day(time.Now()), nil
	}
	return dates.Parse(s)
}
