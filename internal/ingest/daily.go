package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// rocOffset converts Republic of China years to Gregorian years.
const rocOffset = 1911

// ParseDay reads YYYY-MM-DD, YYYY/MM/DD or a ROC date such as 113/01/02 or 113.01.02.
func ParseDay(s string) (time.Time, error) {
	normalized := strings.NewReplacer("/", "-", ".", "-").Replace(strings.TrimSpace(s))
	parts := strings.Split(normalized, "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", s)
		}
		nums[i] = n
	}

	year := nums[0]
	if len(parts[0]) <= 3 {
		year += rocOffset
	}
	d := dates.Date(year, time.Month(nums[1]), nums[2])
	if d.Month() != time.Month(nums[1]) || d.Day() != nums[2] {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

// ParseDailyTrans converts a table with the columns product_id, date and
// avg_price (plus optional source_id, up_price, mid_price, low_price,
// avg_weight and volume) into rows.
func ParseDailyTrans(rows [][]string) ([]model.DailyTran, error) {
	t, err := newTable(rows, "product_id", "date", "avg_price")
	if err != nil {
		return nil, err
	}

	out := make([]model.DailyTran, 0, len(t.rows))
	for i, row := range t.rows {
		if blank(row) {
			continue
		}

		var tran model.DailyTran
		if tran.ProductID, err = parseInt(t.cell(row, "product_id")); err != nil {
			return nil, rowErr(i, "product_id", err)
		}
		if tran.SourceID, err = optionalInt(t.cell(row, "source_id")); err != nil {
			return nil, rowErr(i, "source_id", err)
		}
		if tran.Date, err = ParseDay(t.cell(row, "date")); err != nil {
			return nil, rowErr(i, "date", err)
		}

		price, err := optionalFloat(t.cell(row, "avg_price"))
		if err != nil {
			return nil, rowErr(i, "avg_price", err)
		}
		if price == nil {
			return nil, rowErr(i, "avg_price", fmt.Errorf("price is required"))
		}
		tran.AvgPrice = *price

		for _, f := range []struct {
			dst **float64
			col string
		}{
			{&tran.UpPrice, "up_price"},
			{&tran.MidPrice, "mid_price"},
			{&tran.LowPrice, "low_price"},
			{&tran.AvgWeight, "avg_weight"},
			{&tran.Volume, "volume"},
		} {
			if *f.dst, err = optionalFloat(t.cell(row, f.col)); err != nil {
				return nil, rowErr(i, f.col, err)
			}
		}
		out = append(out, tran)
	}
	return out, nil
}
