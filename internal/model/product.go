package model

import (
	"fmt"
	"time"
)

// Stage is the supply-chain stage a price is reported at.
type Stage string

const (
	StageWholesale Stage = "wholesale"
	StageOrigin    Stage = "origin"
	StageRetail    Stage = "retail"
)

// ParseStage validates a stage name. The empty string means "any stage".
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case "", StageWholesale, StageOrigin, StageRetail:
		return st, nil
	default:
		return "", fmt.Errorf("unknown stage %q", s)
	}
}

// Unit describes how a product's prices and volumes are expressed.
type Unit struct {
	Price  string // e.g. "元/公斤"
	Volume string // e.g. "公斤", "頭"
	Weight string // e.g. "公斤"
}

// Product is a tracked commodity. Products form a tree through ParentID; only
// nodes with TrackItem set carry transactions of their own.
type Product struct {
	Data      CategoryData
	ParentID  *int64
	UpdatedAt time.Time
	Unit      Unit
	Name      string
	Code      string
	Stage     Stage
	ID        int64
	TrackItem bool
}

// Category returns the commodity family of the product.
func (p *Product) Category() Category {
	if p.Data == nil {
		return ""
	}
	return p.Data.Category()
}

// Species returns the livestock species, or "" for other categories.
func (p *Product) Species() Species {
	if d, ok := p.Data.(LivestockData); ok {
		return d.Species
	}
	return ""
}

// DisplayName is the name used in reports, qualified by stage.
func (p *Product) DisplayName() string {
	switch p.Stage {
	case StageOrigin:
		return p.Name + "(產地)"
	case StageRetail:
		return p.Name + "(零售)"
	case StageWholesale:
		return p.Name + "(批發)"
	default:
		return p.Name
	}
}

// Source is a reporting market or station.
type Source struct {
	Name    string
	Code    string
	Stage   Stage
	ID      int64
	Enabled bool
}
