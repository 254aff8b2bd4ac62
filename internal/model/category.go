package model

import "fmt"

// Category is the commodity family a product belongs to.
type Category string

const (
	// CategoryCrop covers vegetables, grains and other field crops.
	CategoryCrop Category = "crop"
	// CategoryFruit covers fruit.
	CategoryFruit Category = "fruit"
	// CategoryFlower covers cut flowers.
	CategoryFlower Category = "flower"
	// CategorySeafood covers fish and shellfish.
	CategorySeafood Category = "seafood"
	// CategoryLivestock covers animals priced per head or per kilogram of live weight.
	CategoryLivestock Category = "livestock"
)

// ParseCategory validates a stored category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryCrop, CategoryFruit, CategoryFlower, CategorySeafood, CategoryLivestock:
		return c, nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Species distinguishes livestock whose reports need special handling.
type Species string

const (
	SpeciesHog     Species = "hog"
	SpeciesCattle  Species = "cattle"
	SpeciesRam     Species = "ram"
	SpeciesChicken Species = "chicken"
	SpeciesDuck    Species = "duck"
	SpeciesGoose   Species = "goose"
)

// CategoryData holds commodity-specific attributes. The set of variants is closed.
type CategoryData interface {
	Category() Category
	isCategoryData()
}

// CropData applies to crops and fruit.
type CropData struct {
	Season string // Free-form harvest season, e.g. "5-8"
	Fruit  bool
}

// FlowerData applies to cut flowers.
type FlowerData struct{}

// SeafoodData applies to fish and shellfish.
type SeafoodData struct {
	Farmed bool
}

// LivestockData applies to animals.
type LivestockData struct {
	Species Species
}

func (c CropData) Category() Category {
	if c.Fruit {
		return CategoryFruit
	}
	return CategoryCrop
}

func (FlowerData) Category() Category    { return CategoryFlower }
func (SeafoodData) Category() Category   { return CategorySeafood }
func (LivestockData) Category() Category { return CategoryLivestock }

func (CropData) isCategoryData()      {}
func (FlowerData) isCategoryData()    {}
func (SeafoodData) isCategoryData()   {}
func (LivestockData) isCategoryData() {}

// NewCategoryData builds the variant for a category. The detail string carries the
// species for livestock and the season for crops; other categories ignore it.
func NewCategoryData(category Category, detail string) (CategoryData, error) {
	switch category {
	case CategoryCrop:
		return CropData{Season: detail}, nil
	case CategoryFruit:
		return CropData{Season: detail, Fruit: true}, nil
	case CategoryFlower:
		return FlowerData{}, nil
	case CategorySeafood:
		return SeafoodData{Farmed: detail == "farmed"}, nil
	case CategoryLivestock:
		switch s := Species(detail); s {
		case SpeciesHog, SpeciesCattle, SpeciesRam, SpeciesChicken, SpeciesDuck, SpeciesGoose:
			return LivestockData{Species: s}, nil
		default:
			return nil, fmt.Errorf("unknown livestock species %q", detail)
		}
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
}

// CategoryDetail is the inverse of NewCategoryData's detail argument.
func CategoryDetail(data CategoryData) string {
	switch d := data.(type) {
	case CropData:
		return d.Season
	case SeafoodData:
		if d.Farmed {
			return "farmed"
		}
		return ""
	case LivestockData:
		return string(d.Species)
	default:
		return ""
	}
}
