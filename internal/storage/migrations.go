package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS products (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					parent_id INTEGER REFERENCES products(id),
					name TEXT NOT NULL,
					code TEXT NOT NULL DEFAULT '',
					stage TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					unit_price TEXT NOT NULL DEFAULT '',
					unit_volume TEXT NOT NULL DEFAULT '',
					unit_weight TEXT NOT NULL DEFAULT '',
					track_item INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_products_parent ON products(parent_id)`,

				`CREATE TABLE IF NOT EXISTS sources (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					code TEXT NOT NULL DEFAULT '',
					stage TEXT NOT NULL DEFAULT '',
					enabled INTEGER NOT NULL DEFAULT 1
				)`,

				`CREATE TABLE IF NOT EXISTS product_sources (
					product_id INTEGER NOT NULL REFERENCES products(id),
					source_id INTEGER NOT NULL REFERENCES sources(id),
					PRIMARY KEY (product_id, source_id)
				)`,

				`CREATE TABLE IF NOT EXISTS daily_trans (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product_id INTEGER NOT NULL,
					source_id INTEGER NOT NULL DEFAULT 0,
					date TEXT NOT NULL,
					up_price REAL,
					mid_price REAL,
					low_price REAL,
					avg_price REAL NOT NULL,
					avg_weight REAL,
					volume REAL,
					not_updated INTEGER NOT NULL DEFAULT 0,
					update_time DATETIME,
					UNIQUE (product_id, source_id, date)
				)`,
				`CREATE INDEX idx_daily_trans_product_date ON daily_trans(product_id, date)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add watchlists and monitor profiles",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS watchlists (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					start_date TEXT NOT NULL,
					end_date TEXT NOT NULL,
					is_default INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS monitor_profiles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					watchlist_id INTEGER NOT NULL REFERENCES watchlists(id),
					product_id INTEGER NOT NULL REFERENCES products(id),
					stage TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL DEFAULT '',
					comparator TEXT NOT NULL,
					price REAL NOT NULL,
					row_num INTEGER NOT NULL DEFAULT 0,
					always_display INTEGER NOT NULL DEFAULT 0,
					months TEXT NOT NULL DEFAULT '[]',
					products TEXT NOT NULL DEFAULT '[]',
					sources TEXT NOT NULL DEFAULT '[]',
					seasonal TEXT NOT NULL DEFAULT '{}'
				)`,
				`CREATE INDEX idx_monitor_profiles_watchlist ON monitor_profiles(watchlist_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Index sources by product for catalog lookups",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_product_sources_source ON product_sources(source_id)`,
				`CREATE INDEX IF NOT EXISTS idx_daily_trans_date ON daily_trans(date)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
