// Package report assembles the weekly monitor report, the integration
// comparison and the five-year monthly report from aggregated transactions.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/series"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reporter builds reports from a store. The catalog resolves product and
// source selections.
type Reporter struct {
	store        service.Storage
	catalog      *catalog.Service
	EarliestYear int
}

// NewReporter creates a reporter.
func NewReporter(store service.Storage, cat *catalog.Service) *Reporter {
	return &Reporter{store: store, catalog: cat, EarliestYear: dates.DefaultEarliestYear}
}

// Run identifies one report invocation in logs and output.
type Run struct {
	Started time.Time `json:"started"`
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
}

// startRun attaches a run id to every record logged through ctx.
func startRun(ctx context.Context, kind string) (context.Context, Run) {
	run := Run{ID: uuid.NewString(), Kind: kind, Started: time.Now()}
	logger := common.Logger(ctx).With("run_id", run.ID, "report", kind)
	return common.WithLogger(ctx, logger), run
}

// Round rounds half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RocYear labels a Gregorian year in the Republic of China calendar.
func RocYear(year int) string {
	return fmt.Sprintf("%d年", year-1911)
}

// Resolve validates a selection through the catalog.
func (r *Reporter) Resolve(ctx context.Context, productIDs, sourceIDs []int64, stage model.Stage) (catalog.Selection, error) {
	return r.catalog.Resolve(ctx, productIDs, sourceIDs, stage)
}

func (r *Reporter) query(ctx context.Context, filter service.DailyTranFilter, start, end time.Time) ([]model.DailyTran, error) {
	filter.StartDate = &start
	filter.EndDate = &end
	rows, err := r.store.QueryDailyTrans(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query transactions %s~%s: %w", dates.Format(start), dates.Format(end), err)
	}
	return rows, nil
}

// Daily aggregates a selection over span.
func (r *Reporter) Daily(ctx context.Context, sel catalog.Selection, span dates.Span) (aggregate.Result, error) {
	rows, err := r.query(ctx, sel.Filter(), span.Start, span.End)
	if err != nil {
		return aggregate.Result{}, err
	}
	return aggregate.Aggregate(rows, nil)
}

// Yearly aggregates every row of a selection since the earliest year and
// aligns the field onto the reference year.
func (r *Reporter) Yearly(ctx context.Context, sel catalog.Selection, field aggregate.Field, until time.Time) (map[int][]series.Point, error) {
	rows, err := r.query(ctx, sel.Filter(), dates.Date(r.EarliestYear, time.January, 1), until)
	if err != nil {
		return nil, err
	}
	res, err := aggregate.Aggregate(rows, nil)
	if err != nil {
		return nil, err
	}
	return series.YearAligned(res.Daily, field), nil
}

// Distribution reports monthly quantiles of field pooled over years. No years
// means every year since the earliest.
func (r *Reporter) Distribution(ctx context.Context, sel catalog.Selection, field aggregate.Field, years []int, until time.Time) ([]aggregate.MonthStats, error) {
	var rows []model.DailyTran
	if len(years) == 0 {
		var err error
		if rows, err = r.query(ctx, sel.Filter(), dates.Date(r.EarliestYear, time.January, 1), until); err != nil {
			return nil, err
		}
	}
	for _, y := range years {
		yearRows, err := r.query(ctx, sel.Filter(), dates.Date(y, time.January, 1), dates.Date(y, time.December, 31))
		if err != nil {
			return nil, err
		}
		rows = append(rows, yearRows...)
	}

	res, err := aggregate.Aggregate(rows, nil)
	if err != nil {
		return nil, err
	}
	return aggregate.MonthlyDistribution(res.Daily, field), nil
}

func floatPtr(v float64) *float64 {
	return &v
}
