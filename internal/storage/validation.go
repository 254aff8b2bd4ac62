// Package storage persists transactions, the product catalog and watchlists.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid daily transaction")
	ErrInvalidProduct     = errors.New("invalid product")
	ErrInvalidSource      = errors.New("invalid source")
	ErrInvalidWatchlist   = errors.New("invalid watchlist")
	ErrInvalidProfile     = errors.New("invalid monitor profile")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDailyTrans(rows []model.DailyTran) error {
	if rows == nil {
		return fmt.Errorf("%w: rows", ErrNilParameter)
	}
	for i := range rows {
		if err := validateDailyTran(&rows[i]); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func validateDailyTran(row *model.DailyTran) error {
	switch {
	case row.ProductID <= 0:
		return fmt.Errorf("%w: missing product", ErrInvalidTransaction)
	case row.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	case row.AvgPrice < 0:
		return fmt.Errorf("%w: negative price %v", ErrInvalidTransaction, row.AvgPrice)
	case row.SourceID != nil && *row.SourceID < 0:
		return fmt.Errorf("%w: negative source", ErrInvalidTransaction)
	}
	return nil
}

func validateFilter(filter service.DailyTranFilter) error {
	if len(filter.ProductIDs) == 0 {
		return fmt.Errorf("%w: product ids", ErrEmptySlice)
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return fmt.Errorf("%w: %v > %v", ErrInvalidDateRange, *filter.StartDate, *filter.EndDate)
	}
	return nil
}

func validateProduct(p *model.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product", ErrNilParameter)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProduct)
	}
	if p.Data == nil {
		return fmt.Errorf("%w: missing category", ErrInvalidProduct)
	}
	if _, err := model.ParseStage(string(p.Stage)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if p.ParentID != nil && *p.ParentID == p.ID && p.ID != 0 {
		return fmt.Errorf("%w: product %d is its own parent", ErrInvalidProduct, p.ID)
	}
	return nil
}

func validateSource(s *model.Source) error {
	if s == nil {
		return fmt.Errorf("%w: source", ErrNilParameter)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSource)
	}
	if _, err := model.ParseStage(string(s.Stage)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	return nil
}

func validateWatchlist(w *model.Watchlist) error {
	if w == nil {
		return fmt.Errorf("%w: watchlist", ErrNilParameter)
	}
	if err := validateString(w.Name, "name"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWatchlist, err)
	}
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return fmt.Errorf("%w: %w", ErrInvalidWatchlist, ErrInvalidDateRange)
	}
	return nil
}

func validateMonitorProfile(m *model.MonitorProfile) error {
	if m == nil {
		return fmt.Errorf("%w: profile", ErrNilParameter)
	}
	if m.WatchlistID <= 0 || m.ProductID <= 0 {
		return fmt.Errorf("%w: watchlist and product are required", ErrInvalidProfile)
	}
	if _, err := model.ParseComparator(string(m.Comparator)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	for _, month := range m.Months {
		if month < 1 || month > 12 {
			return fmt.Errorf("%w: month %d", ErrInvalidProfile, month)
		}
	}
	return nil
}
