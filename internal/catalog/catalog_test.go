package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/cache"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CatalogStore that counts lookups.
type fakeStore struct {
	products map[int64]model.Product
	sources  map[int64]model.Source
	links    map[int64][]int64
	calls    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[int64]model.Product{},
		sources:  map[int64]model.Source{},
		links:    map[int64][]int64{},
		calls:    map[string]int{},
	}
}

func (f *fakeStore) SaveProduct(_ context.Context, p *model.Product) error {
	f.products[p.ID] = *p
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	f.calls["GetProduct"]++
	p, ok := f.products[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (f *fakeStore) GetProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetChildProducts(_ context.Context, parentID int64) ([]model.Product, error) {
	f.calls["GetChildProducts"]++
	var out []model.Product
	for id := int64(1); id <= 100; id++ {
		if p, ok := f.products[id]; ok && p.ParentID != nil && *p.ParentID == parentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveSource(_ context.Context, s *model.Source) error {
	f.sources[s.ID] = *s
	return nil
}

func (f *fakeStore) GetSources(_ context.Context, ids []int64) ([]model.Source, error) {
	f.calls["GetSources"]++
	var out []model.Source
	for _, id := range ids {
		if s, ok := f.sources[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProductSources(_ context.Context, productID int64) ([]model.Source, error) {
	f.calls["GetProductSources"]++
	var out []model.Source
	for _, id := range f.links[productID] {
		out = append(out, f.sources[id])
	}
	return out, nil
}

func (f *fakeStore) LinkProductSource(_ context.Context, productID, sourceID int64) error {
	f.links[productID] = append(f.links[productID], sourceID)
	return nil
}

func seededService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	hog := model.LivestockData{Species: model.SpeciesHog}
	store.products[1] = model.Product{ID: 1, Name: "毛豬", Stage: model.StageOrigin, Data: hog}
	store.products[2] = model.Product{ID: 2, Name: "規格豬", Stage: model.StageOrigin, Data: hog, ParentID: model.ID(1), TrackItem: true}
	store.products[3] = model.Product{ID: 3, Name: "肉豬", Stage: model.StageOrigin, Data: hog, ParentID: model.ID(2), TrackItem: true}
	store.products[4] = model.Product{ID: 4, Name: "甘藍", Stage: model.StageWholesale, Data: model.CropData{Season: "11-4"}, TrackItem: true}
	store.sources[10] = model.Source{ID: 10, Name: "台北一", Stage: model.StageWholesale, Enabled: true}
	store.sources[11] = model.Source{ID: 11, Name: "雲林縣", Stage: model.StageOrigin, Enabled: true}
	store.links[1] = []int64{11}

	c := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return NewService(store, c), store
}

func TestProductRoundTripsThroughCache(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	first, err := svc.Product(ctx, 1)
	require.NoError(t, err)
	second, err := svc.Product(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, store.calls["GetProduct"])
	assert.Equal(t, first, second)
	assert.Equal(t, model.SpeciesHog, second.Species())
	assert.Equal(t, model.CategoryLivestock, second.Category())

	crop, err := svc.Product(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, model.CropData{Season: "11-4"}, crop.Data)
}

func TestChildrenAndDescendants(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	children, err := svc.Children(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, children)

	descendants, err := svc.Descendants(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, descendants)

	calls := store.calls["GetChildProducts"]
	_, err = svc.Descendants(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, calls, store.calls["GetChildProducts"])
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		products    []int64
		sources     []int64
		stage       model.Stage
		wantIDs     []int64
		wantSources []int64
		wantStage   model.Stage
		wantErr     bool
	}{
		{
			name:      "expands descendants and infers stage",
			products:  []int64{1},
			wantIDs:   []int64{1, 2, 3},
			wantStage: model.StageOrigin,
		},
		{
			name:        "sources kept",
			products:    []int64{4},
			sources:     []int64{10},
			stage:       model.StageWholesale,
			wantIDs:     []int64{4},
			wantSources: []int64{10},
			wantStage:   model.StageWholesale,
		},
		{
			name:      "overlapping ids deduplicated",
			products:  []int64{2, 3},
			wantIDs:   []int64{2, 3},
			wantStage: model.StageOrigin,
		},
		{name: "unknown product", products: []int64{99}, wantErr: true},
		{name: "stage mismatch", products: []int64{4}, stage: model.StageOrigin, wantErr: true},
		{name: "unknown source", products: []int64{4}, sources: []int64{77}, wantErr: true},
		{name: "source in another stage", products: []int64{4}, sources: []int64{11}, stage: model.StageWholesale, wantErr: true},
		{name: "no products", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := seededService(t)
			sel, err := svc.Resolve(ctx, tt.products, tt.sources, tt.stage)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, common.IsValidation(err))
				assert.True(t, errors.Is(err, common.ErrAmbiguousFilter))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, sel.ProductIDs)
			assert.Equal(t, tt.wantSources, sel.SourceIDs)
			assert.Equal(t, tt.wantStage, sel.Stage)
			assert.Equal(t, tt.wantIDs, sel.Filter().ProductIDs)
			assert.Equal(t, tt.products[0], sel.Primary().ID)
		})
	}
}

func TestHandleInvalidates(t *testing.T) {
	svc, store := seededService(t)
	ctx := context.Background()

	_, err := svc.Sources(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Children(ctx, 2)
	require.NoError(t, err)
	_, err = svc.Product(ctx, 2)
	require.NoError(t, err)

	store.products[5] = model.Product{ID: 5, Name: "新品種", Stage: model.StageOrigin, ParentID: model.ID(2), TrackItem: true}
	require.NoError(t, svc.Handle(ctx, ProductChanged{ID: 5}))

	children, err := svc.Children(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, children)

	// unrelated product records survive
	_, err = svc.Product(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls["GetProduct"])

	store.links[1] = append(store.links[1], 10)
	sources, err := svc.Sources(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	require.NoError(t, svc.Handle(ctx, SourceChanged{ID: 10}))
	sources, err = svc.Sources(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
	assert.Equal(t, 2, store.calls["GetProductSources"])
}
