// Package ingest reads transaction and catalog files into the store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// ReadRows reads a .xlsx workbook's first sheet or a CSV file.
func ReadRows(name string, r io.Reader) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", name, err)
		}
		defer func() { _ = f.Close() }()

		rows, err := f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("read sheet of %s: %w", name, err)
		}
		return rows, nil
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	return rows, nil
}

// table indexes rows by their header.
type table struct {
	index map[string]int
	rows  [][]string
}

func newTable(rows [][]string, required ...string) (*table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	t := &table{index: make(map[string]int, len(rows[0])), rows: rows[1:]}
	for i, h := range rows[0] {
		t.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return t, nil
}

// cell returns the trimmed value of col in row, or "" when absent.
func (t *table) cell(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// optionalFloat parses a number, treating "", "-" and "NaN" as missing.
func optionalFloat(s string) (*float64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalInt(s string) (*int64, error) {
	if s == "" || s == "0" {
		return nil, nil
	}
	v, err := parseInt(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBool(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// idList parses "1;2;3".
func idList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parseInt(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// RowError locates a parse failure in an input file.
type RowError struct {
	Err    error
	Column string
	Line   int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// rowErr numbers data rows from line 2, after the header.
func rowErr(i int, col string, err error) error {
	return &RowError{Line: i + 2, Column: col, Err: err}
}
