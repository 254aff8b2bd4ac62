package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/cli"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/series"
	"github.com/spf13/cobra"
)

// addSelectionFlags registers the product/source/stage filter flags.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("products", "", "Product ids, comma separated (required)")
	cmd.Flags().String("sources", "", "Source ids, comma separated")
	cmd.Flags().String("stage", "", "Supply-chain stage (wholesale, origin, retail)")
	_ = cmd.MarkFlagRequired("products")
}

func selectionFlags(cmd *cobra.Command) (products, sources []int64, stage model.Stage, err error) {
	p, _ := cmd.Flags().GetString("products")
	s, _ := cmd.Flags().GetString("sources")
	st, _ := cmd.Flags().GetString("stage")

	if products, err = parseIDs(p); err != nil {
		return nil, nil, "", err
	}
	if sources, err = parseIDs(s); err != nil {
		return nil, nil, "", err
	}
	if stage, err = model.ParseStage(st); err != nil {
		return nil, nil, "", err
	}
	return products, sources, stage, nil
}

func spanFlags(cmd *cobra.Command) (dates.Span, error) {
	s, _ := cmd.Flags().GetString("start")
	e, _ := cmd.Flags().GetString("end")
	start, err := dates.Parse(s)
	if err != nil {
		return dates.Span{}, err
	}
	end, err := parseDateOrToday(e)
	if err != nil {
		return dates.Span{}, err
	}
	return dates.NewSpan(start, end)
}

func seriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the aggregated daily series of a window",
		Long: `Aggregate the selected products' transactions per day and print one row
per day with the average price, plus volume and weight when the data
carries them.`,
		RunE: runSeries,
	}

	addSelectionFlags(cmd)
	cmd.Flags().String("start", "", "First day (YYYY-MM-DD, required)")
	cmd.Flags().String("end", "", "Last day (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func runSeries(cmd *cobra.Command, _ []string) error {
	products, sources, stage, err := selectionFlags(cmd)
	if err != nil {
		return err
	}
	span, err := spanFlags(cmd)
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

	sel, err := a.reporter.Resolve(ctx, products, sources, stage)
	if err != nil {
		return err
	}
	res, err := a.reporter.Daily(ctx, sel, span)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s %s", selectionName(sel), span)))
	if res.Empty() {
		fmt.Fprintln(out, cli.FormatWarning("No data in this window"))
		return nil
	}

	table := series.TableRows(res)
	header := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c.Label
	}
	rows := make([][]string, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = make([]string, len(r))
		for j, cell := range r {
			rows[i][j] = cellText(cell)
		}
	}
	fmt.Fprint(out, cli.RenderTable(header, rows))

	price, _ := res.AvgPrice()
	fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Average price: %.2f over %d days", price, len(res.Daily))))
	if v, ok := res.AvgVolume(); ok {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Average daily volume: %.2f", v)))
	}
	if w, ok := res.AvgWeight(); ok {
		fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Average weight: %.2f", w)))
	}
	return nil
}

func selectionName(sel catalog.Selection) string {
	if p := sel.Primary(); p != nil {
		return p.DisplayName()
	}
	return ""
}

func cellText(v any) string {
	switch v := v.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
