// Package catalog resolves products and sources through an injected cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/cache"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

// Service answers catalog lookups, caching derived results.
type Service struct {
	store service.CatalogStore
	cache service.Cache
}

// NewService creates a catalog service over store and c.
func NewService(store service.CatalogStore, c service.Cache) *Service {
	return &Service{store: store, cache: c}
}

// productRecord is the cached form of a product.
type productRecord struct {
	UpdatedAt time.Time  `json:"updated_at"`
	ParentID  *int64     `json:"parent_id,omitempty"`
	Unit      model.Unit `json:"unit"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	Stage     string     `json:"stage"`
	Category  string     `json:"category"`
	Detail    string     `json:"detail"`
	ID        int64      `json:"id"`
	TrackItem bool       `json:"track_item"`
}

func toRecord(p *model.Product) productRecord {
	return productRecord{
		ID:        p.ID,
		ParentID:  p.ParentID,
		Name:      p.Name,
		Code:      p.Code,
		Stage:     string(p.Stage),
		Unit:      p.Unit,
		Category:  string(p.Category()),
		Detail:    model.CategoryDetail(p.Data),
		TrackItem: p.TrackItem,
		UpdatedAt: p.UpdatedAt,
	}
}

func (r productRecord) product() (*model.Product, error) {
	p := &model.Product{
		ID:        r.ID,
		ParentID:  r.ParentID,
		Name:      r.Name,
		Code:      r.Code,
		Stage:     model.Stage(r.Stage),
		Unit:      r.Unit,
		TrackItem: r.TrackItem,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Category != "" {
		data, err := model.NewCategoryData(model.Category(r.Category), r.Detail)
		if err != nil {
			return nil, err
		}
		p.Data = data
	}
	return p, nil
}

func productKey(id int64, suffix string) string {
	return "product:" + strconv.FormatInt(id, 10) + ":" + suffix
}

func sourceKey(id int64) string {
	return "source:" + strconv.FormatInt(id, 10)
}

// Product returns a single product.
func (s *Service) Product(ctx context.Context, id int64) (*model.Product, error) {
	rec, err := cache.GetOrCompute(ctx, s.cache, productKey(id, "record"), func(ctx context.Context) (productRecord, error) {
		p, err := s.store.GetProduct(ctx, id)
		if err != nil {
			return productRecord{}, err
		}
		return toRecord(p), nil
	})
	if err != nil {
		return nil, err
	}
	return rec.product()
}

// Children returns the ids of the direct children of a product.
func (s *Service) Children(ctx context.Context, id int64) ([]int64, error) {
	return cache.GetOrCompute(ctx, s.cache, productKey(id, "children"), func(ctx context.Context) ([]int64, error) {
		children, err := s.store.GetChildProducts(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("children of product %d: %w", id, err)
		}
		ids := make([]int64, 0, len(children))
		for _, c := range children {
			ids = append(ids, c.ID)
		}
		return ids, nil
	})
}

// Descendants returns the ids of every product below id, breadth first.
func (s *Service) Descendants(ctx context.Context, id int64) ([]int64, error) {
	return cache.GetOrCompute(ctx, s.cache, productKey(id, "descendants"), func(ctx context.Context) ([]int64, error) {
		var out []int64
		seen := map[int64]bool{id: true}
		queue := []int64{id}
		for len(queue) > 0 {
			children, err := s.Children(ctx, queue[0])
			if err != nil {
				return nil, err
			}
			queue = queue[1:]
			for _, c := range children {
				if seen[c] {
					continue
				}
				seen[c] = true
				out = append(out, c)
				queue = append(queue, c)
			}
		}
		return out, nil
	})
}

// Sources returns the sources that report prices for a product.
func (s *Service) Sources(ctx context.Context, id int64) ([]model.Source, error) {
	return cache.GetOrCompute(ctx, s.cache, productKey(id, "sources"), func(ctx context.Context) ([]model.Source, error) {
		return s.store.GetProductSources(ctx, id)
	})
}

// Source returns a single source.
func (s *Service) Source(ctx context.Context, id int64) (model.Source, error) {
	return cache.GetOrCompute(ctx, s.cache, sourceKey(id), func(ctx context.Context) (model.Source, error) {
		sources, err := s.store.GetSources(ctx, []int64{id})
		if err != nil {
			return model.Source{}, err
		}
		if len(sources) == 0 {
			return model.Source{}, common.ErrNotFound
		}
		return sources[0], nil
	})
}

// Selection is a validated product and source filter.
type Selection struct {
	Stage      model.Stage
	Products   []model.Product
	ProductIDs []int64 // requested products plus their descendants
	SourceIDs  []int64
}

// Filter turns the selection into a transaction filter.
func (sel Selection) Filter() service.DailyTranFilter {
	return service.DailyTranFilter{ProductIDs: sel.ProductIDs, SourceIDs: sel.SourceIDs}
}

// Primary returns the first requested product.
func (sel Selection) Primary() *model.Product {
	if len(sel.Products) == 0 {
		return nil
	}
	return &sel.Products[0]
}

// Resolve validates product and source ids against the catalog. Unknown ids
// and products outside the requested stage fail with common.ErrAmbiguousFilter.
func (s *Service) Resolve(ctx context.Context, productIDs, sourceIDs []int64, stage model.Stage) (Selection, error) {
	if len(productIDs) == 0 {
		return Selection{}, common.NewValidationError("products", "")
	}

	sel := Selection{Stage: stage}
	for _, id := range productIDs {
		p, err := s.Product(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return Selection{}, common.NewValidationError("product", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return Selection{}, err
		}
		if stage != "" && p.Stage != stage {
			return Selection{}, common.NewValidationError("stage", fmt.Sprintf("%s for product %d", stage, id))
		}
		if sel.Stage == "" {
			sel.Stage = p.Stage
		}
		sel.Products = append(sel.Products, *p)

		descendants, err := s.Descendants(ctx, id)
		if err != nil {
			return Selection{}, err
		}
		for _, pid := range append([]int64{id}, descendants...) {
			if !slices.Contains(sel.ProductIDs, pid) {
				sel.ProductIDs = append(sel.ProductIDs, pid)
			}
		}
	}

	for _, id := range sourceIDs {
		src, err := s.Source(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			return Selection{}, common.NewValidationError("source", strconv.FormatInt(id, 10))
		}
		if err != nil {
			return Selection{}, err
		}
		if stage != "" && src.Stage != "" && src.Stage != stage {
			return Selection{}, common.NewValidationError("stage", fmt.Sprintf("%s for source %d", stage, id))
		}
		sel.SourceIDs = append(sel.SourceIDs, id)
	}

	return sel, nil
}
