package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

const dailyTranColumns = `id, product_id, source_id, date, up_price, mid_price, low_price,
	avg_price, avg_weight, volume, not_updated, update_time`

// SaveDailyTrans upserts rows by (product, source, date). Re-saving an unchanged
// average price bumps not_updated; a new price resets it.
func (s *sqlStore) SaveDailyTrans(ctx context.Context, rows []model.DailyTran) (service.UpsertStats, error) {
	var stats service.UpsertStats
	if err := validateContext(ctx); err != nil {
		return stats, err
	}
	if err := validateDailyTrans(rows); err != nil {
		return stats, err
	}
	if len(rows) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lookup, err := tx.PrepareContext(ctx, s.rebind(`
		SELECT id, avg_price FROM daily_trans
		WHERE product_id = ? AND COALESCE(source_id, 0) = ? AND date = ?`))
	if err != nil {
		return stats, fmt.Errorf("failed to prepare lookup: %w", err)
	}
	defer func() { _ = lookup.Close() }()

	insert, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO daily_trans (
			product_id, source_id, date, up_price, mid_price, low_price,
			avg_price, avg_weight, volume, not_updated, update_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`))
	if err != nil {
		return stats, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	update, err := tx.PrepareContext(ctx, s.rebind(`
		UPDATE daily_trans SET
			up_price = ?, mid_price = ?, low_price = ?, avg_price = ?,
			avg_weight = ?, volume = ?, not_updated = 0, update_time = ?
		WHERE id = ?`))
	if err != nil {
		return stats, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer func() { _ = update.Close() }()

	bump, err := tx.PrepareContext(ctx, s.rebind(`
		UPDATE daily_trans SET not_updated = not_updated + 1 WHERE id = ?`))
	if err != nil {
		return stats, fmt.Errorf("failed to prepare bump: %w", err)
	}
	defer func() { _ = bump.Close() }()

	now := time.Now().UTC()
	for i := range rows {
		row := &rows[i]
		day := dates.Format(row.Date)
		sourceID := row.SourceIDOrZero()

		var id int64
		var price float64
		err := lookup.QueryRowContext(ctx, row.ProductID, sourceID, day).Scan(&id, &price)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := insert.ExecContext(ctx,
				row.ProductID, sourceID, day,
				nullFloat(row.UpPrice), nullFloat(row.MidPrice), nullFloat(row.LowPrice),
				row.AvgPrice, nullFloat(row.AvgWeight), nullFloat(row.Volume), now,
			); err != nil {
				return stats, fmt.Errorf("failed to insert %s: %w", row.Key(), err)
			}
			stats.Inserted++
		case err != nil:
			return stats, fmt.Errorf("failed to look up %s: %w", row.Key(), err)
		case price == row.AvgPrice:
			if _, err := bump.ExecContext(ctx, id); err != nil {
				return stats, fmt.Errorf("failed to touch %s: %w", row.Key(), err)
			}
			stats.Unchanged++
		default:
			if _, err := update.ExecContext(ctx,
				nullFloat(row.UpPrice), nullFloat(row.MidPrice), nullFloat(row.LowPrice),
				row.AvgPrice, nullFloat(row.AvgWeight), nullFloat(row.Volume), now, id,
			); err != nil {
				return stats, fmt.Errorf("failed to update %s: %w", row.Key(), err)
			}
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("saved daily transactions",
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged)
	return stats, nil
}

// whereFilter builds the WHERE clause for a transaction filter.
func whereFilter(filter service.DailyTranFilter) (string, []any) {
	clauses := []string{"product_id IN (" + placeholders(len(filter.ProductIDs)) + ")"}
	args := int64Args(filter.ProductIDs)

	if len(filter.SourceIDs) > 0 {
		clauses = append(clauses, "source_id IN ("+placeholders(len(filter.SourceIDs))+")")
		args = append(args, int64Args(filter.SourceIDs)...)
	}
	if filter.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, dates.Format(*filter.StartDate))
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, dates.Format(*filter.EndDate))
	}
	return strings.Join(clauses, " AND "), args
}

// QueryDailyTrans returns the rows matching filter ordered by date and source.
func (s *sqlStore) QueryDailyTrans(ctx context.Context, filter service.DailyTranFilter) ([]model.DailyTran, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	where, args := whereFilter(filter)
	query := `SELECT ` + dailyTranColumns + ` FROM daily_trans WHERE ` + where +
		` ORDER BY date, source_id, product_id`
	return s.queryDailyTrans(ctx, query, args...)
}

// QueryBetweenMonthDay returns rows on the month/day span [start, end] in
// every year from fromYear through start's year.
func (s *sqlStore) QueryBetweenMonthDay(ctx context.Context, filter service.DailyTranFilter, start, end time.Time, fromYear int) ([]model.DailyTran, error) {
	spans, err := dates.AlignSameDayAcrossYears(start, end, fromYear, 0)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, nil
	}

	// Spans run newest first.
	first, last := spans[len(spans)-1].Start, spans[0].End
	filter.StartDate, filter.EndDate = &first, &last

	rows, err := s.QueryDailyTrans(ctx, filter)
	if err != nil {
		return nil, err
	}

	days := dates.NewDaySet(dates.AlignedDays(spans))
	kept := rows[:0]
	for _, r := range rows {
		if days.Has(r.Date) {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// LatestOnOrBefore returns the most recent row dated on or before day.
func (s *sqlStore) LatestOnOrBefore(ctx context.Context, filter service.DailyTranFilter, day time.Time) (*model.DailyTran, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	filter.StartDate = nil
	filter.EndDate = &day
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	where, args := whereFilter(filter)
	query := `SELECT ` + dailyTranColumns + ` FROM daily_trans WHERE ` + where +
		` ORDER BY date DESC, source_id LIMIT 1`
	rows, err := s.queryDailyTrans(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no transaction on or before %s: %w", dates.Format(day), common.ErrNotFound)
	}
	return &rows[0], nil
}

func (s *sqlStore) queryDailyTrans(ctx context.Context, query string, args ...any) ([]model.DailyTran, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.DailyTran
	for rows.Next() {
		var t model.DailyTran
		var sourceID sql.NullInt64
		var day dayValue
		var up, mid, low, wgt, vol sql.NullFloat64
		var updateTime sql.NullTime
		if err := rows.Scan(&t.ID, &t.ProductID, &sourceID, &day,
			&up, &mid, &low, &t.AvgPrice, &wgt, &vol, &t.NotUpdated, &updateTime); err != nil {
			return nil, fmt.Errorf("failed to scan daily transaction: %w", err)
		}
		t.Date = day.Time
		// Unsourced rows are stored as 0 locally and may be NULL in an
		// externally managed schema.
		if sourceID.Valid && sourceID.Int64 != 0 {
			id := sourceID.Int64
			t.SourceID = &id
		}
		t.UpPrice, t.MidPrice, t.LowPrice = floatPtr(up), floatPtr(mid), floatPtr(low)
		t.AvgWeight, t.Volume = floatPtr(wgt), floatPtr(vol)
		if updateTime.Valid {
			t.UpdateTime = updateTime.Time
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily transactions: %w", err)
	}
	return out, nil
}
