package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCategoryData(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		detail   string
		want     CategoryData
		wantErr  bool
	}{
		{name: "crop", category: CategoryCrop, detail: "5-8", want: CropData{Season: "5-8"}},
		{name: "fruit", category: CategoryFruit, want: CropData{Fruit: true}},
		{name: "flower", category: CategoryFlower, want: FlowerData{}},
		{name: "farmed seafood", category: CategorySeafood, detail: "farmed", want: SeafoodData{Farmed: true}},
		{name: "hog", category: CategoryLivestock, detail: "hog", want: LivestockData{Species: SpeciesHog}},
		{name: "unknown species", category: CategoryLivestock, detail: "yak", wantErr: true},
		{name: "unknown category", category: Category("mineral"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCategoryData(tt.category, tt.detail)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.category, got.Category())
			assert.Equal(t, tt.detail, CategoryDetail(got))
		})
	}
}

func TestProduct_Species(t *testing.T) {
	hog := Product{Name: "毛豬", Data: LivestockData{Species: SpeciesHog}}
	assert.Equal(t, SpeciesHog, hog.Species())
	assert.Equal(t, CategoryLivestock, hog.Category())

	cabbage := Product{Name: "甘藍", Data: CropData{}}
	assert.Equal(t, Species(""), cabbage.Species())

	var bare Product
	assert.Equal(t, Category(""), bare.Category())
}

func TestDailyTran_Key(t *testing.T) {
	d := DailyTran{ProductID: 3, AvgPrice: 10}
	d.Date = mustDay(t, "2024-11-06")
	assert.Equal(t, TranKey{ProductID: 3, SourceID: 0, Date: "2024-11-06"}, d.Key())

	d.SourceID = ID(40001)
	assert.Equal(t, "3:40001:2024-11-06", d.Key().String())
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
