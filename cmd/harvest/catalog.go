package main

import (
	"fmt"

	"github.com/Veraticus/the-harvest-must-flow/internal/cli"
	"github.com/Veraticus/the-harvest-must-flow/internal/ingest"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/spf13/cobra"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage products, sources and watchlists",
	}
	cmd.AddCommand(catalogImportCmd())
	return cmd
}

func catalogImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import catalog seed files",
		Long: `Import products, sources, watchlists and monitor profiles from CSV or
.xlsx files. Files are applied in that order so sources can reference
products and profiles can reference watchlists. Cached lookups for every
changed product and source are invalidated.`,
		RunE: runCatalogImport,
	}

	cmd.Flags().String("products", "", "Products file")
	cmd.Flags().String("sources", "", "Sources file")
	cmd.Flags().String("watchlists", "", "Watchlists file")
	cmd.Flags().String("profiles", "", "Monitor profiles file (requires --watchlists)")
	return cmd
}

func runCatalogImport(cmd *cobra.Command, _ []string) error {
	productsFile, _ := cmd.Flags().GetString("products")
	sourcesFile, _ := cmd.Flags().GetString("sources")
	watchlistsFile, _ := cmd.Flags().GetString("watchlists")
	profilesFile, _ := cmd.Flags().GetString("profiles")

	if productsFile == "" && sourcesFile == "" && watchlistsFile == "" {
		return fmt.Errorf("nothing to import: pass --products, --sources or --watchlists")
	}
	if profilesFile != "" && watchlistsFile == "" {
		return fmt.Errorf("--profiles requires --watchlists")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	im := ingest.NewImporter(a.store, a.catalog)

	if productsFile != "" {
		table, err := readTable(productsFile)
		if err != nil {
			return err
		}
		products, err := ingest.ParseProducts(table)
		if err != nil {
			return fmt.Errorf("%s: %w", productsFile, err)
		}
		if err := im.ImportProducts(ctx, products); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d products", len(products))))
	}

	if sourcesFile != "" {
		table, err := readTable(sourcesFile)
		if err != nil {
			return err
		}
		sources, err := ingest.ParseSources(table)
		if err != nil {
			return fmt.Errorf("%s: %w", sourcesFile, err)
		}
		if err := im.ImportSources(ctx, sources); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d sources", len(sources))))
	}

	if watchlistsFile != "" {
		table, err := readTable(watchlistsFile)
		if err != nil {
			return err
		}
		watchlists, err := ingest.ParseWatchlists(table)
		if err != nil {
			return fmt.Errorf("%s: %w", watchlistsFile, err)
		}

		var profiles []model.MonitorProfile
		if profilesFile != "" {
			table, err := readTable(profilesFile)
			if err != nil {
				return err
			}
			if profiles, err = ingest.ParseMonitorProfiles(table); err != nil {
				return fmt.Errorf("%s: %w", profilesFile, err)
			}
		}
		if err := im.ImportWatchlists(ctx, watchlists, profiles); err != nil {
			return err
		}
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d watchlists with %d monitor profiles", len(watchlists), len(profiles))))
	}
	return nil
}
