package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

// SaveWatchlist inserts or replaces a watchlist.
func (s *sqlStore) SaveWatchlist(ctx context.Context, w *model.Watchlist) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateWatchlist(w); err != nil {
		return err
	}

	start, end := dates.Format(w.Start), dates.Format(w.End)
	if w.ID == 0 {
		err := s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO watchlists (name, start_date, end_date, is_default) VALUES (?, ?, ?, ?)
			RETURNING id`), w.Name, start, end, w.IsDefault).Scan(&w.ID)
		if err != nil {
			return fmt.Errorf("failed to insert watchlist %q: %w", w.Name, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO watchlists (id, name, start_date, end_date, is_default) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_default = excluded.is_default`),
		w.ID, w.Name, start, end, w.IsDefault)
	if err != nil {
		return fmt.Errorf("failed to save watchlist %d: %w", w.ID, err)
	}
	return nil
}

// GetWatchlistFor returns the watchlist whose period covers day, falling back
// to the default watchlist.
func (s *sqlStore) GetWatchlistFor(ctx context.Context, day time.Time) (*model.Watchlist, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	d := dates.Format(day)
	w, err := s.scanWatchlist(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, start_date, end_date, is_default FROM watchlists
		WHERE start_date <= ? AND end_date >= ?
		ORDER BY is_default, start_date DESC, id DESC
		LIMIT 1`), d, d))
	if err == nil {
		return w, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	w, err = s.scanWatchlist(s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, start_date, end_date, is_default FROM watchlists
		WHERE is_default = ?
		ORDER BY id DESC
		LIMIT 1`), true))
	if isNotFound(err) {
		return nil, fmt.Errorf("watchlist for %s: %w", d, common.ErrNotFound)
	}
	return w, err
}

func (s *sqlStore) scanWatchlist(row *sql.Row) (*model.Watchlist, error) {
	var w model.Watchlist
	var start, end dayValue
	if err := row.Scan(&w.ID, &w.Name, &start, &end, &w.IsDefault); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan watchlist: %w", err)
	}
	w.Start, w.End = start.Time, end.Time
	return &w, nil
}

// SaveMonitorProfile inserts or replaces a monitor profile.
func (s *sqlStore) SaveMonitorProfile(ctx context.Context, m *model.MonitorProfile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMonitorProfile(m); err != nil {
		return err
	}

	months, products, sources, seasonal, err := encodeProfileLists(m)
	if err != nil {
		return err
	}

	args := []any{
		m.WatchlistID, m.ProductID, string(m.Stage), m.Name, string(m.Comparator), m.Price,
		m.Row, m.AlwaysDisplay, months, products, sources, seasonal,
	}

	if m.ID == 0 {
		err := s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO monitor_profiles (
				watchlist_id, product_id, stage, name, comparator, price,
				row_num, always_display, months, products, sources, seasonal
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`), args...).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to insert monitor profile: %w", err)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO monitor_profiles (
			id, watchlist_id, product_id, stage, name, comparator, price,
			row_num, always_display, months, products, sources, seasonal
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			watchlist_id = excluded.watchlist_id,
			product_id = excluded.product_id,
			stage = excluded.stage,
			name = excluded.name,
			comparator = excluded.comparator,
			price = excluded.price,
			row_num = excluded.row_num,
			always_display = excluded.always_display,
			months = excluded.months,
			products = excluded.products,
			sources = excluded.sources,
			seasonal = excluded.seasonal`), append([]any{m.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to save monitor profile %d: %w", m.ID, err)
	}
	return nil
}

// GetMonitorProfiles returns a watchlist's profiles ordered by report row.
func (s *sqlStore) GetMonitorProfiles(ctx context.Context, watchlistID int64) ([]model.MonitorProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, watchlist_id, product_id, stage, name, comparator, price,
			row_num, always_display, months, products, sources, seasonal
		FROM monitor_profiles
		WHERE watchlist_id = ?
		ORDER BY row_num, id`), watchlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitor profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []model.MonitorProfile
	for rows.Next() {
		var m model.MonitorProfile
		var stage, comparator, months, products, sources, seasonal string
		if err := rows.Scan(&m.ID, &m.WatchlistID, &m.ProductID, &stage, &m.Name, &comparator, &m.Price,
			&m.Row, &m.AlwaysDisplay, &months, &products, &sources, &seasonal); err != nil {
			return nil, fmt.Errorf("failed to scan monitor profile: %w", err)
		}
		m.Stage = model.Stage(stage)
		if m.Comparator, err = model.ParseComparator(comparator); err != nil {
			return nil, fmt.Errorf("monitor profile %d: %w", m.ID, err)
		}
		if err := decodeProfileLists(&m, months, products, sources, seasonal); err != nil {
			return nil, fmt.Errorf("monitor profile %d: %w", m.ID, err)
		}
		profiles = append(profiles, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitor profiles: %w", err)
	}
	return profiles, nil
}

func encodeProfileLists(m *model.MonitorProfile) (months, products, sources, seasonal string, err error) {
	seasonalByKey := make(map[string][]int64, len(m.Seasonal))
	for month, ids := range m.Seasonal {
		seasonalByKey[strconv.Itoa(month)] = ids
	}

	encoded := make([]string, 4)
	for i, v := range []any{nonNil(m.Months), nonNil(m.Products), nonNil(m.Sources), seasonalByKey} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", "", "", "", fmt.Errorf("failed to encode monitor profile: %w", err)
		}
		encoded[i] = string(b)
	}
	return encoded[0], encoded[1], encoded[2], encoded[3], nil
}

func decodeProfileLists(m *model.MonitorProfile, months, products, sources, seasonal string) error {
	if err := json.Unmarshal([]byte(months), &m.Months); err != nil {
		return fmt.Errorf("decode months: %w", err)
	}
	if err := json.Unmarshal([]byte(products), &m.Products); err != nil {
		return fmt.Errorf("decode products: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
		return fmt.Errorf("decode sources: %w", err)
	}
	m.Months, m.Products, m.Sources = nilIfEmpty(m.Months), nilIfEmpty(m.Products), nilIfEmpty(m.Sources)

	var byKey map[string][]int64
	if err := json.Unmarshal([]byte(seasonal), &byKey); err != nil {
		return fmt.Errorf("decode seasonal: %w", err)
	}
	if len(byKey) > 0 {
		m.Seasonal = make(map[int][]int64, len(byKey))
		for k, ids := range byKey {
			month, err := strconv.Atoi(k)
			if err != nil {
				return fmt.Errorf("decode seasonal month %q: %w", k, err)
			}
			m.Seasonal[month] = ids
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
