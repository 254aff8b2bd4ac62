package model

import (
	"fmt"
	"time"
)

// DailyTran is one reported price observation for a product at a market on a day.
type DailyTran struct {
	Date       time.Time // Calendar day at UTC midnight
	UpdateTime time.Time
	SourceID   *int64   // Reporting market; nil when the upstream feed has none
	UpPrice    *float64 // Display only
	MidPrice   *float64 // Display only
	LowPrice   *float64 // Display only
	AvgWeight  *float64 // Mean unit weight, reported for livestock
	Volume     *float64 // Traded quantity
	ID         int64
	ProductID  int64
	AvgPrice   float64
	NotUpdated int
}

// TranKey identifies a DailyTran; ingestion never stores two rows with the same key.
type TranKey struct {
	Date      string
	ProductID int64
	SourceID  int64
}

// Key returns the identity of the row. A missing source maps to 0.
func (d *DailyTran) Key() TranKey {
	return TranKey{
		ProductID: d.ProductID,
		SourceID:  d.SourceIDOrZero(),
		Date:      d.Date.Format("2006-01-02"),
	}
}

// SourceIDOrZero returns the source id, or 0 when the row has none.
func (d *DailyTran) SourceIDOrZero() int64 {
	if d.SourceID == nil {
		return 0
	}
	return *d.SourceID
}

func (k TranKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.ProductID, k.SourceID, k.Date)
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// ID returns a pointer to v, for optional identity fields.
func ID(v int64) *int64 {
	return &v
}
