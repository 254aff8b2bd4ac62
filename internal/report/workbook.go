package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned when a workbook would be empty.
var ErrNoSheets = errors.New("no sheets to write")

// Sheet is one worksheet: a header row, data rows and data rows to hide
// (0-based indexes into Rows).
type Sheet struct {
	Name   string
	Header []any
	Rows   [][]any
	Hidden []int
}

// Workbook lays sheets out in a new workbook. The caller closes it.
func Workbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), sheet.Name)
		} else {
			_, err = f.NewSheet(sheet.Name)
		}
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet, header); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write sheet %q: %w", sheet.Name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	if err := f.SetSheetRow(sheet.Name, "A1", &sheet.Header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
		return err
	}
	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return err
		}
	}
	for _, i := range sheet.Hidden {
		if err := f.SetRowVisible(sheet.Name, i+2, false); err != nil {
			return err
		}
	}
	return nil
}

// WriteWorkbook saves sheets to path, creating its directory.
func WriteWorkbook(ctx context.Context, path string, sheets []Sheet) error {
	f, err := Workbook(sheets)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	common.LogInfo(ctx, "Wrote workbook", common.Fields{"path": path, "sheets": len(sheets)})
	return nil
}

// optional renders a missing figure as an empty cell.
func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Sheets lays the weekly report out on one sheet. Hidden lines are kept but
// their rows are hidden.
func (r *WeeklyReport) Sheets() []Sheet {
	sheet := Sheet{Name: "週報"}
	sheet.Header = []any{"品項"}
	for _, day := range r.ThisWeek.Days() {
		sheet.Header = append(sheet.Header, day.Format("01/02"))
	}
	sheet.Header = append(sheet.Header,
		"本週平均價格", "前一週平均價格", "與前一週比較(%)",
		"監控價格", "觸發", "去年同月平均價格",
		"本週平均交易量", "前一週平均交易量", "交易量與前一週比較(%)",
	)

	for i, row := range r.Rows {
		cells := []any{row.Name}
		for d := range 7 {
			if d < len(row.Prices) {
				cells = append(cells, row.Prices[d].Text())
			} else {
				cells = append(cells, nil)
			}
		}
		if row.NoData {
			cells[1] = "無資料"
		}

		var monitor, triggered any
		if row.Monitor != nil {
			monitor = row.Monitor.Comparator.Symbol() + fmt.Sprintf("%g", row.Monitor.Price)
			if row.Monitor.Triggered {
				triggered = "V"
			}
		}
		cells = append(cells,
			optional(row.ThisWeekPrice), optional(row.LastWeekPrice), optional(row.PriceChange),
			monitor, triggered, optional(row.LastYearMonth),
			optional(row.ThisWeekVolume), optional(row.LastWeekVolume), optional(row.VolumeChange),
		)
		sheet.Rows = append(sheet.Rows, cells)
		if row.Hidden {
			sheet.Hidden = append(sheet.Hidden, i)
		}
	}
	return []Sheet{sheet}
}

// Sheets lays out one sheet per metric.
func (r *FiveYearReport) Sheets() []Sheet {
	sheets := make([]Sheet, 0, len(r.Tables))
	for _, table := range r.Tables {
		sheet := Sheet{Name: table.Metric.Label(), Header: []any{""}}
		for _, c := range FiveYearColumns {
			sheet.Header = append(sheet.Header, c)
		}
		for _, row := range table.Rows {
			cells := []any{row.Label}
			for _, v := range row.Values {
				cells = append(cells, optional(v))
			}
			sheet.Rows = append(sheet.Rows, cells)
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

// Sheets lays out the entry summary and each entry's daily prices.
func (r Integration) Sheets() []Sheet {
	summary := Sheet{
		Name:   "整合",
		Header: []any{"期間", "平均價格", "平均交易量", "平均重量", "平均來源數"},
	}
	points := Sheet{Name: "每日價格", Header: []any{"期間", "日期", "平均價格"}}
	for _, e := range r.Entries {
		summary.Rows = append(summary.Rows, []any{e.Name, Round(e.AvgPrice, 2), Round(e.SumVolume, 3), Round(e.AvgWeight, 3), Round(e.NumOfSource, 2)})
		for _, p := range e.Points {
			points.Rows = append(points.Rows, []any{e.Name, dates.Format(p.Date), optional(p.Value)})
		}
	}
	return []Sheet{summary, points}
}
