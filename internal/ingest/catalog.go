package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// SourceRow is a source plus the products it reports.
type SourceRow struct {
	Products []int64
	Source   model.Source
}

// ParseProducts reads id, name, category and the optional parent_id, code,
// stage, detail, unit_price, unit_volume, unit_weight and track_item columns.
func ParseProducts(rows [][]string) ([]model.Product, error) {
	t, err := newTable(rows, "id", "name", "category")
	if err != nil {
		return nil, err
	}

	var out []model.Product
	for i, row := range t.rows {
		if blank(row) {
			continue
		}

		var p model.Product
		if p.ID, err = parseInt(t.cell(row, "id")); err != nil {
			return nil, rowErr(i, "id", err)
		}
		if p.ParentID, err = optionalInt(t.cell(row, "parent_id")); err != nil {
			return nil, rowErr(i, "parent_id", err)
		}
		p.Name = t.cell(row, "name")
		p.Code = t.cell(row, "code")
		if p.Stage, err = model.ParseStage(t.cell(row, "stage")); err != nil {
			return nil, rowErr(i, "stage", err)
		}

		category, err := model.ParseCategory(strings.ToLower(t.cell(row, "category")))
		if err != nil {
			return nil, rowErr(i, "category", err)
		}
		if p.Data, err = model.NewCategoryData(category, t.cell(row, "detail")); err != nil {
			return nil, rowErr(i, "detail", err)
		}

		p.Unit = model.Unit{
			Price:  t.cell(row, "unit_price"),
			Volume: t.cell(row, "unit_volume"),
			Weight: t.cell(row, "unit_weight"),
		}
		if p.TrackItem, err = parseBool(t.cell(row, "track_item"), true); err != nil {
			return nil, rowErr(i, "track_item", err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseSources reads id and name plus the optional code, stage, enabled and
// products (semicolon separated product ids) columns.
func ParseSources(rows [][]string) ([]SourceRow, error) {
	t, err := newTable(rows, "id", "name")
	if err != nil {
		return nil, err
	}

	var out []SourceRow
	for i, row := range t.rows {
		if blank(row) {
			continue
		}

		var s SourceRow
		if s.Source.ID, err = parseInt(t.cell(row, "id")); err != nil {
			return nil, rowErr(i, "id", err)
		}
		s.Source.Name = t.cell(row, "name")
		s.Source.Code = t.cell(row, "code")
		if s.Source.Stage, err = model.ParseStage(t.cell(row, "stage")); err != nil {
			return nil, rowErr(i, "stage", err)
		}
		if s.Source.Enabled, err = parseBool(t.cell(row, "enabled"), true); err != nil {
			return nil, rowErr(i, "enabled", err)
		}
		if s.Products, err = idList(t.cell(row, "products")); err != nil {
			return nil, rowErr(i, "products", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseWatchlists reads id, name, start and end plus an optional is_default column.
func ParseWatchlists(rows [][]string) ([]model.Watchlist, error) {
	t, err := newTable(rows, "id", "name", "start", "end")
	if err != nil {
		return nil, err
	}

	var out []model.Watchlist
	for i, row := range t.rows {
		if blank(row) {
			continue
		}

		var w model.Watchlist
		if w.ID, err = parseInt(t.cell(row, "id")); err != nil {
			return nil, rowErr(i, "id", err)
		}
		w.Name = t.cell(row, "name")
		if w.Start, err = ParseDay(t.cell(row, "start")); err != nil {
			return nil, rowErr(i, "start", err)
		}
		if w.End, err = ParseDay(t.cell(row, "end")); err != nil {
			return nil, rowErr(i, "end", err)
		}
		if w.IsDefault, err = parseBool(t.cell(row, "is_default"), false); err != nil {
			return nil, rowErr(i, "is_default", err)
		}
		out = append(out, w)
	}
	return out, nil
}

// ParseMonitorProfiles reads watchlist_id, product_id, comparator and price plus
// the optional stage, name, row, always_display, months, products, sources and
// seasonal columns. Lists are semicolon separated; seasonal entries look like
// "5:50186;7:50185".
func ParseMonitorProfiles(rows [][]string) ([]model.MonitorProfile, error) {
	t, err := newTable(rows, "watchlist_id", "product_id", "comparator", "price")
	if err != nil {
		return nil, err
	}

	var out []model.MonitorProfile
	for i, row := range t.rows {
		if blank(row) {
			continue
		}

		var m model.MonitorProfile
		if id := t.cell(row, "id"); id != "" {
			if m.ID, err = parseInt(id); err != nil {
				return nil, rowErr(i, "id", err)
			}
		}
		if m.WatchlistID, err = parseInt(t.cell(row, "watchlist_id")); err != nil {
			return nil, rowErr(i, "watchlist_id", err)
		}
		if m.ProductID, err = parseInt(t.cell(row, "product_id")); err != nil {
			return nil, rowErr(i, "product_id", err)
		}
		if m.Comparator, err = model.ParseComparator(t.cell(row, "comparator")); err != nil {
			return nil, rowErr(i, "comparator", err)
		}
		if m.Price, err = strconv.ParseFloat(t.cell(row, "price"), 64); err != nil {
			return nil, rowErr(i, "price", err)
		}
		if m.Stage, err = model.ParseStage(t.cell(row, "stage")); err != nil {
			return nil, rowErr(i, "stage", err)
		}
		m.Name = t.cell(row, "name")
		if r := t.cell(row, "row"); r != "" {
			if m.Row, err = strconv.Atoi(r); err != nil {
				return nil, rowErr(i, "row", err)
			}
		}
		if m.AlwaysDisplay, err = parseBool(t.cell(row, "always_display"), false); err != nil {
			return nil, rowErr(i, "always_display", err)
		}

		months, err := idList(t.cell(row, "months"))
		if err != nil {
			return nil, rowErr(i, "months", err)
		}
		for _, month := range months {
			m.Months = append(m.Months, int(month))
		}
		if m.Products, err = idList(t.cell(row, "products")); err != nil {
			return nil, rowErr(i, "products", err)
		}
		if m.Sources, err = idList(t.cell(row, "sources")); err != nil {
			return nil, rowErr(i, "sources", err)
		}
		if m.Seasonal, err = parseSeasonal(t.cell(row, "seasonal")); err != nil {
			return nil, rowErr(i, "seasonal", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func parseSeasonal(s string) (map[int][]int64, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[int][]int64)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		month, ids, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("seasonal entry %q needs month:ids", entry)
		}
		m, err := strconv.Atoi(strings.TrimSpace(month))
		if err != nil || m < 1 || m > 12 {
			return nil, fmt.Errorf("seasonal month %q", month)
		}
		for _, id := range strings.Split(ids, ",") {
			v, err := parseInt(strings.TrimSpace(id))
			if err != nil {
				return nil, err
			}
			out[m] = append(out[m], v)
		}
	}
	return out, nil
}
