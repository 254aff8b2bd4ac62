package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStorage implements service.Storage on a PostgreSQL database whose
// schema is managed outside this program.
type PostgresStorage struct {
	*sqlStore
}

var _ service.Storage = (*PostgresStorage)(nil)

// requiredTables must exist before the store is usable.
var requiredTables = []string{"products", "sources", "product_sources", "daily_trans", "watchlists", "monitor_profiles"}

// NewPostgresStorage opens a connection pool and waits for the server.
func NewPostgresStorage(ctx context.Context, dsn string, retry service.RetryOptions) (*PostgresStorage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = common.WithRetry(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
		return nil
	}, retry)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{sqlStore: &sqlStore{db: db, dialect: dialectPostgres}}, nil
}

// Migrate verifies that the externally managed schema is present.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	for _, table := range requiredTables {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
			table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to inspect schema: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: table %s is missing", common.ErrInvalidConfig, table)
		}
	}
	return nil
}

// Health pings the server.
func (s *PostgresStorage) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
