package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

SQLite databases are migrated in place. PostgreSQL schemas are managed
externally; for them this command only verifies the required tables exist.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current schema version without applying changes")
	return cmd
}

type versioned interface {
	SchemaVersion(ctx context.Context) (int, error)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	ctx := cmd.Context()

	slog.Info("🗄️  Running database migrations...")
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if v, ok := a.store.(versioned); ok {
		version, err := v.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		slog.Info("Database schema", "driver", a.cfg.Database.Driver, "version", version)
	}
	if status {
		return nil
	}

	slog.Info("✅ Database migrations completed successfully!")
	return nil
}
