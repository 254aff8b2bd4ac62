package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/Veraticus/the-harvest-must-flow/internal/cli"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/config"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/report"
	"github.com/Veraticus/the-harvest-must-flow/internal/sheets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build and export reports",
		Long: `Build weekly, five-year and integration reports. Each report is printed
as a summary and written as an .xlsx workbook under report.output_dir
(or --output).`,
	}
	cmd.PersistentFlags().String("output", "", "Directory for workbooks (default: report.output_dir)")
	cmd.PersistentFlags().Bool("publish", false, "Also publish the report tabs to Google Sheets (see sheets.*)")
	_ = viper.BindPFlag("report.output_dir", cmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("report.publish", cmd.PersistentFlags().Lookup("publish"))

	cmd.AddCommand(weeklyCmd())
	cmd.AddCommand(fiveYearCmd())
	cmd.AddCommand(integrationCmd())
	return cmd
}

// exportReport writes tabs to <output>/<name>.xlsx and, with --publish,
// to Google Sheets.
func exportReport(ctx context.Context, out io.Writer, a *app, name string, tabs []report.Sheet) error {
	path := filepath.Join(a.cfg.Report.OutputDir, name+".xlsx")
	if err := report.WriteWorkbook(ctx, path, tabs); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess("Wrote "+path))

	if !viper.GetBool("report.publish") {
		return nil
	}
	publisher, err := sheets.NewPublisher(ctx, sheetsConfig(a.cfg.Sheets), common.Logger(ctx))
	if err != nil {
		return common.NewUserError("could not connect to Google Sheets", err)
	}
	id, err := publisher.Publish(ctx, name, tabs)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", name, err)
	}
	fmt.Fprintln(out, cli.FormatSuccess("Published to spreadsheet "+id))
	return nil
}

func sheetsConfig(c config.SheetsConfig) sheets.Config {
	cfg := sheets.DefaultConfig()
	cfg.ClientID = c.ClientID
	cfg.ClientSecret = c.ClientSecret
	cfg.RefreshToken = c.RefreshToken
	cfg.ServiceAccountPath = c.ServiceAccountPath
	cfg.SpreadsheetID = c.SpreadsheetID
	if c.SpreadsheetName != "" {
		cfg.SpreadsheetName = c.SpreadsheetName
	}
	return cfg
}

func weeklyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Weekly monitor report for the active watchlist",
		Long: `Compare this week (the seven days ending on --date) with the week
before it for every monitor profile of the watchlist covering --date,
plus the items listed under report.extra_items.`,
		RunE: runWeekly,
	}
	cmd.Flags().String("date", "", "Report date (YYYY-MM-DD, default today)")
	return cmd
}

func runWeekly(cmd *cobra.Command, _ []string) error {
	ds, _ := cmd.Flags().GetString("date")
	day, err := parseDateOrToday(ds)
	if err != nil {
		return err
	}

	var extra []report.ExtraItem
	if err := viper.UnmarshalKey("report.extra_items", &extra); err != nil {
		return fmt.Errorf("invalid report.extra_items: %w", err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.reporter.Weekly(ctx, report.WeeklyOptions{Date: day, Extra: extra})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Weekly report %s (vs %s)", rep.ThisWeek, rep.LastWeek)))
	rows := make([][]string, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		if r.Hidden {
			continue
		}
		if r.NoData {
			rows = append(rows, []string{r.Name, "無資料", "", "", ""})
			continue
		}
		trigger := ""
		if r.Monitor != nil && r.Monitor.Triggered {
			trigger = cli.WarningStyle.Render("V")
		}
		rows = append(rows, []string{
			r.Name,
			cli.FormatValue(r.ThisWeekPrice),
			cli.FormatValue(r.LastWeekPrice),
			cli.FormatPercent(r.PriceChange),
			trigger,
		})
	}
	fmt.Fprint(out, cli.RenderTable([]string{"品項", "本週平均價格", "前一週平均價格", "與前一週比較", "觸發"}, rows))

	return exportReport(ctx, out, a, fmt.Sprintf("weekly-%s", dates.Format(rep.Date)), rep.Sheets())
}

func fiveYearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "five-year",
		Short: "Monthly figures for the last five years",
		Long: `Build monthly and annual price, volume and weight tables for the five
years before --date and the current year up to its month, with a row
averaging the five earlier years.`,
		RunE: runFiveYear,
	}
	addSelectionFlags(cmd)
	cmd.Flags().String("date", "", "Report date (YYYY-MM-DD, default today)")
	cmd.Flags().String("exclude-sources", "", "Source ids to leave out when --sources is not given")
	_ = viper.BindPFlag("report.five_year.exclude_sources", cmd.Flags().Lookup("exclude-sources"))
	return cmd
}

func runFiveYear(cmd *cobra.Command, _ []string) error {
	products, sources, stage, err := selectionFlags(cmd)
	if err != nil {
		return err
	}
	ds, _ := cmd.Flags().GetString("date")
	day, err := parseDateOrToday(ds)
	if err != nil {
		return err
	}
	excluded, err := parseIDs(viper.GetString("report.five_year.exclude_sources"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.reporter.FiveYear(ctx, report.FiveYearOptions{
		Date:           day,
		Products:       products,
		Sources:        sources,
		ExcludeSources: excluded,
		Stage:          stage,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s %s", rep.Product.DisplayName(), report.RocYear(rep.Year))))
	for _, table := range rep.Tables {
		fmt.Fprintln(out, cli.TitleStyle.Render(table.Metric.Label()))
		rows := make([][]string, len(table.Rows))
		for i, r := range table.Rows {
			rows[i] = []string{r.Label, cli.FormatValue(r.Values[0])}
		}
		fmt.Fprint(out, cli.RenderTable([]string{"", report.FiveYearColumns[0]}, rows))
	}

	return exportReport(ctx, out, a, fmt.Sprintf("five-year-%d-%s", rep.Product.ID, dates.Format(day)), rep.Sheets())
}

func integrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Compare a window with earlier periods",
		Long: `Compare the window [--start, --end] with the window just before it and
the same dates over the five previous years, or with every earlier year
when --per-year is set.`,
		RunE: runIntegration,
	}
	addSelectionFlags(cmd)
	cmd.Flags().String("start", "", "First day (YYYY-MM-DD, required)")
	cmd.Flags().String("end", "", "Last day (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("per-year", false, "Compare with each earlier year instead of terms")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func runIntegration(cmd *cobra.Command, _ []string) error {
	products, sources, stage, err := selectionFlags(cmd)
	if err != nil {
		return err
	}
	span, err := spanFlags(cmd)
	if err != nil {
		return err
	}
	perYear, _ := cmd.Flags().GetBool("per-year")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sel, err := a.reporter.Resolve(ctx, products, sources, stage)
	if err != nil {
		return err
	}
	result, err := a.reporter.Integration(ctx, sel, span.Start, span.End, perYear)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s %s", selectionName(sel), span)))
	if result.NoData {
		fmt.Fprintln(out, cli.FormatWarning("No data in this window"))
		return nil
	}

	rows := make([][]string, len(result.Entries))
	for i, e := range result.Entries {
		price := e.AvgPrice
		rows[i] = []string{e.Name, cli.FormatValue(&price)}
		if result.HasVolume {
			volume := e.SumVolume
			rows[i] = append(rows[i], cli.FormatValue(&volume))
		}
		if result.HasWeight {
			weight := e.AvgWeight
			rows[i] = append(rows[i], cli.FormatValue(&weight))
		}
	}
	header := []string{"期間", "平均價格"}
	if result.HasVolume {
		header = append(header, "交易量")
	}
	if result.HasWeight {
		header = append(header, "平均重量")
	}
	fmt.Fprint(out, cli.RenderTable(header, rows))

	return exportReport(ctx, out, a, fmt.Sprintf("integration-%s-%s", dates.Format(span.Start), dates.Format(span.End)), result.Sheets())
}
