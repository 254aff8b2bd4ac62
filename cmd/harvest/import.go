package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/the-harvest-must-flow/internal/cli"
	"github.com/Veraticus/the-harvest-must-flow/internal/ingest"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import daily market transactions",
		Long: `Import daily transactions from CSV or .xlsx files.

Each file needs product_id, date and avg_price columns; source_id, up_price,
mid_price, low_price, avg_weight and volume are optional. Rows are upserted
by (product, source, date), so re-importing a file is safe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Int("batch-size", ingest.DefaultBatchSize, "Rows written per database transaction")
	cmd.Flags().Bool("dry-run", false, "Parse files without saving")
	cmd.Flags().Bool("snapshot", true, "Snapshot a SQLite database before writing")

	_ = viper.BindPFlag("import.batch_size", cmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("import.snapshot", cmd.Flags().Lookup("snapshot"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	var rows []model.DailyTran
	for _, path := range args {
		parsed, err := readDailyTrans(path)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s: %d rows", path, len(parsed))))
		rows = append(rows, parsed...)
	}

	if viper.GetBool("import.dry_run") {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Parsed %d rows (dry run, nothing saved)", len(rows))))
		return nil
	}

	interrupts := cli.NewInterruptHandler(out)
	ctx := interrupts.HandleInterrupts(cmd.Context(), "Import", "Batches already written are kept; re-run the import to finish.")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if viper.GetBool("import.snapshot") {
		if sqlite, ok := a.store.(*storage.SQLiteStorage); ok {
			if err := autoSnapshot(ctx, out, sqlite); err != nil {
				return err
			}
		}
	}

	im := ingest.NewImporter(a.store, a.catalog)
	im.BatchSize = viper.GetInt("import.batch_size")

	bar := cli.NewProgressBar(out, len(rows), "Importing transactions...")
	stats, err := im.ImportDailyTrans(ctx, rows, cli.Advance(bar))
	if err != nil {
		if interrupts.WasInterrupted() {
			return nil
		}
		return err
	}

	summary := fmt.Sprintf("  • Inserted: %d\n  • Updated: %d\n  • Unchanged: %d", stats.Inserted, stats.Updated, stats.Unchanged)
	fmt.Fprintln(out, cli.RenderBox("Import Complete", summary))
	return nil
}

func readDailyTrans(path string) ([]model.DailyTran, error) {
	table, err := readTable(path)
	if err != nil {
		return nil, err
	}
	rows, err := ingest.ParseDailyTrans(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func readTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return ingest.ReadRows(path, f)
}

func autoSnapshot(ctx context.Context, out io.Writer, store *storage.SQLiteStorage) error {
	manager, err := store.Snapshots()
	if errors.Is(err, storage.ErrInMemoryDatabase) {
		return nil
	}
	if err != nil {
		return err
	}
	info, err := manager.AutoSnapshot(ctx, "import")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatInfo("Snapshot "+info.ID+" saved; restore it with 'harvest snapshot restore'"))
	return nil
}
