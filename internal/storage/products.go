package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
)

const productColumns = `id, parent_id, name, code, stage, category, detail,
	unit_price, unit_volume, unit_weight, track_item, updated_at`

// SaveProduct inserts a product, or replaces it when its ID is already set.
func (s *sqlStore) SaveProduct(ctx context.Context, p *model.Product) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()
	args := []any{
		nullInt(p.ParentID), p.Name, p.Code, string(p.Stage), string(p.Category()), model.CategoryDetail(p.Data),
		p.Unit.Price, p.Unit.Volume, p.Unit.Weight, p.TrackItem, p.UpdatedAt,
	}

	if p.ID == 0 {
		err := s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO products (
				parent_id, name, code, stage, category, detail,
				unit_price, unit_volume, unit_weight, track_item, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`), args...).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO products (
			id, parent_id, name, code, stage, category, detail,
			unit_price, unit_volume, unit_weight, track_item, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			code = excluded.code,
			stage = excluded.stage,
			category = excluded.category,
			detail = excluded.detail,
			unit_price = excluded.unit_price,
			unit_volume = excluded.unit_volume,
			unit_weight = excluded.unit_weight,
			track_item = excluded.track_item,
			updated_at = excluded.updated_at`), append([]any{p.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to save product %d: %w", p.ID, err)
	}
	return nil
}

// GetProduct returns a product by id or common.ErrNotFound.
func (s *sqlStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	products, err := s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %d: %w", id, common.ErrNotFound)
	}
	return &products[0], nil
}

// GetProducts returns the products with the given ids, ordered by id.
// An empty id list returns every product.
func (s *sqlStore) GetProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	}
	return s.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		int64Args(ids)...)
}

// GetChildProducts returns the direct children of a product.
func (s *sqlStore) GetChildProducts(ctx context.Context, parentID int64) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products WHERE parent_id = ? ORDER BY id`, parentID)
}

func (s *sqlStore) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var parentID sql.NullInt64
		var stage, category, detail string
		var updatedAt sql.NullTime
		if err := rows.Scan(&p.ID, &parentID, &p.Name, &p.Code, &stage, &category, &detail,
			&p.Unit.Price, &p.Unit.Volume, &p.Unit.Weight, &p.TrackItem, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.ParentID = intPtr(parentID)
		p.Stage = model.Stage(stage)
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time
		}
		data, err := model.NewCategoryData(model.Category(category), detail)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", p.ID, err)
		}
		p.Data = data
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	slog.Debug("retrieved products", "count", len(products))
	return products, nil
}

// SaveSource inserts a source, or replaces it when its ID is already set.
func (s *sqlStore) SaveSource(ctx context.Context, src *model.Source) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSource(src); err != nil {
		return err
	}

	if src.ID == 0 {
		err := s.db.QueryRowContext(ctx, s.rebind(`
			INSERT INTO sources (name, code, stage, enabled) VALUES (?, ?, ?, ?)
			RETURNING id`), src.Name, src.Code, string(src.Stage), src.Enabled).Scan(&src.ID)
		if err != nil {
			return fmt.Errorf("failed to insert source %q: %w", src.Name, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sources (id, name, code, stage, enabled) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			stage = excluded.stage,
			enabled = excluded.enabled`),
		src.ID, src.Name, src.Code, string(src.Stage), src.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save source %d: %w", src.ID, err)
	}
	return nil
}

// GetSources returns the sources with the given ids. An empty list returns every source.
func (s *sqlStore) GetSources(ctx context.Context, ids []int64) ([]model.Source, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return s.querySources(ctx, `SELECT id, name, code, stage, enabled FROM sources ORDER BY id`)
	}
	return s.querySources(ctx,
		`SELECT id, name, code, stage, enabled FROM sources WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`,
		int64Args(ids)...)
}

// GetProductSources returns the sources linked to a product.
func (s *sqlStore) GetProductSources(ctx context.Context, productID int64) ([]model.Source, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.querySources(ctx, `
		SELECT s.id, s.name, s.code, s.stage, s.enabled
		FROM sources s
		JOIN product_sources ps ON ps.source_id = s.id
		WHERE ps.product_id = ?
		ORDER BY s.id`, productID)
}

// LinkProductSource records that source reports prices for product.
func (s *sqlStore) LinkProductSource(ctx context.Context, productID, sourceID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if productID <= 0 || sourceID <= 0 {
		return fmt.Errorf("%w: product and source ids must be positive", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO product_sources (product_id, source_id) VALUES (?, ?)
		ON CONFLICT (product_id, source_id) DO NOTHING`), productID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to link product %d to source %d: %w", productID, sourceID, err)
	}
	return nil
}

func (s *sqlStore) querySources(ctx context.Context, query string, args ...any) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		var stage string
		if err := rows.Scan(&src.ID, &src.Name, &src.Code, &stage, &src.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.Stage = model.Stage(stage)
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}
	return sources, nil
}

// isNotFound reports whether err is a storage miss.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, common.ErrNotFound)
}
