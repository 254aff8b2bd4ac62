package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
)

// ExtraItem is a weekly report line outside any watchlist.
type ExtraItem struct {
	Name     string  `mapstructure:"name"`
	Products []int64 `mapstructure:"products"`
	Sources  []int64 `mapstructure:"sources"`
	Row      int     `mapstructure:"row"`
}

// WeeklyOptions configures a weekly report.
type WeeklyOptions struct {
	Date  time.Time
	Extra []ExtraItem
}

// DayCell is one day of a weekly line. Mark is set instead of Value when the
// latest known price is from an earlier day.
type DayCell struct {
	Date  time.Time `json:"date"`
	Value *float64  `json:"value"`
	Mark  string    `json:"mark,omitempty"`
}

// Text renders the cell for a sheet.
func (c DayCell) Text() any {
	switch {
	case c.Value != nil:
		return *c.Value
	case c.Mark != "":
		return c.Mark
	default:
		return nil
	}
}

// Monitor is the watch price of a line. Low and Up bound the price band the
// profile covers among the watchlist's other profiles for the same product.
type Monitor struct {
	Comparator model.Comparator `json:"comparator"`
	Price      float64          `json:"price"`
	Low        float64          `json:"low"`
	Up         float64          `json:"up"`
	Triggered  bool             `json:"triggered"`
}

// WeeklyRow is one line of the weekly report.
type WeeklyRow struct {
	ThisWeekPrice  *float64   `json:"this_week_price"`
	LastWeekPrice  *float64   `json:"last_week_price"`
	PriceChange    *float64   `json:"price_change"`
	ThisWeekVolume *float64   `json:"this_week_volume"`
	LastWeekVolume *float64   `json:"last_week_volume"`
	VolumeChange   *float64   `json:"volume_change"`
	LastYearMonth  *float64   `json:"last_year_month"`
	Monitor        *Monitor   `json:"monitor"`
	Name           string     `json:"name"`
	Prices         []DayCell  `json:"prices"`
	Volumes        []DayCell  `json:"volumes,omitempty"`
	Months         []int      `json:"months,omitempty"`
	Unit           model.Unit `json:"unit"`
	Row            int        `json:"row"`
	Hidden         bool       `json:"hidden"`
	NoData         bool       `json:"no_data"`
}

// WeeklyReport is the result of Weekly.
type WeeklyReport struct {
	Watchlist *model.Watchlist `json:"watchlist"`
	Run       Run              `json:"run"`
	Date      time.Time        `json:"date"`
	ThisWeek  dates.Span       `json:"this_week"`
	LastWeek  dates.Span       `json:"last_week"`
	Rows      []WeeklyRow      `json:"rows"`
}

// line is a report row before its figures are computed.
type line struct {
	profile  *model.MonitorProfile
	siblings []model.MonitorProfile
	name     string
	stage    model.Stage
	products []int64
	sources  []int64
	row      int
	hidden   bool
}

// Weeks returns the report week ending on day and the week before it.
func Weeks(day time.Time) (thisWeek, lastWeek dates.Span) {
	day = dates.Day(day)
	thisWeek = dates.Span{Start: dates.AddDays(day, -6), End: day}
	return thisWeek, thisWeek.Previous()
}

// Weekly builds the monitor report for the week ending on opts.Date. Lines
// without data are kept as no-data rows.
func (r *Reporter) Weekly(ctx context.Context, opts WeeklyOptions) (*WeeklyReport, error) {
	ctx, run := startRun(ctx, "weekly")
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}
	day := dates.Day(opts.Date)
	thisWeek, lastWeek := Weeks(day)

	report := &WeeklyReport{Run: run, Date: day, ThisWeek: thisWeek, LastWeek: lastWeek}

	var lines []line
	watchlist, err := r.store.GetWatchlistFor(ctx, day)
	switch {
	case errors.Is(err, common.ErrNotFound):
		common.LogInfo(ctx, "No watchlist covers the report date", common.Fields{"date": dates.Format(day)})
	case err != nil:
		return nil, fmt.Errorf("find watchlist: %w", err)
	default:
		report.Watchlist = watchlist
		profiles, err := r.store.GetMonitorProfiles(ctx, watchlist.ID)
		if err != nil {
			return nil, fmt.Errorf("load monitor profiles: %w", err)
		}
		for i := range profiles {
			m := &profiles[i]
			lines = append(lines, line{
				profile:  m,
				siblings: profiles,
				name:     m.Name,
				stage:    m.Stage,
				products: m.ProductsFor(day.Month()),
				sources:  m.Sources,
				row:      m.Row,
				hidden:   !m.ShownIn(day.Month()),
			})
		}
	}
	for _, item := range opts.Extra {
		lines = append(lines, line{name: item.Name, products: item.Products, sources: item.Sources, row: item.Row})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].row < lines[j].row })

	common.LogInfo(ctx, "Building weekly report", common.Fields{
		"date":  dates.Format(day),
		"lines": len(lines),
	})

	for _, l := range lines {
		row, err := r.weeklyRow(ctx, l, thisWeek, lastWeek)
		if common.IsValidation(err) {
			common.LogError(ctx, err, "Skipping unresolvable report line", common.Fields{"row": l.row})
			report.Rows = append(report.Rows, WeeklyRow{Name: l.name, Row: l.row, Hidden: l.hidden, NoData: true})
			continue
		}
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

func (r *Reporter) weeklyRow(ctx context.Context, l line, thisWeek, lastWeek dates.Span) (WeeklyRow, error) {
	sel, err := r.catalog.Resolve(ctx, l.products, l.sources, l.stage)
	if err != nil {
		return WeeklyRow{}, err
	}
	product := sel.Primary()

	row := WeeklyRow{Name: l.name, Row: l.row, Hidden: l.hidden, Unit: product.Unit}
	if row.Name == "" {
		row.Name = product.DisplayName()
	}
	if l.profile != nil {
		row.Months = l.profile.Months
	}

	rows, err := r.query(ctx, sel.Filter(), lastWeek.Start, thisWeek.End)
	if err != nil {
		return WeeklyRow{}, err
	}
	res, err := aggregate.Aggregate(rows, nil)
	if err != nil {
		return WeeklyRow{}, err
	}
	fillWeeks(&row, res, thisWeek, lastWeek)

	lastYear := dates.MonthSpan(thisWeek.End.Year()-1, thisWeek.End.Month())
	lastYearRows, err := r.store.QueryBetweenMonthDay(ctx, sel.Filter(), lastYear.Start, lastYear.End, lastYear.Start.Year())
	if err != nil {
		return WeeklyRow{}, fmt.Errorf("query %s of last year: %w", lastYear, err)
	}
	lastYearRes, err := aggregate.Aggregate(lastYearRows, nil)
	if err != nil {
		return WeeklyRow{}, err
	}
	if p, ok := lastYearRes.AvgPrice(); ok && p > 0 {
		row.LastYearMonth = floatPtr(p)
	}

	switch product.Species() {
	case model.SpeciesRam:
		if err := r.carryRams(ctx, &row, sel.Filter(), thisWeek); err != nil {
			return WeeklyRow{}, err
		}
	case model.SpeciesCattle:
		// Cattle are priced nationally, whatever the line's sources.
		filter := sel.Filter()
		filter.SourceIDs = nil
		if err := r.carryCattle(ctx, &row, filter, thisWeek); err != nil {
			return WeeklyRow{}, err
		}
	}

	if l.profile != nil {
		row.Monitor = &Monitor{Comparator: l.profile.Comparator, Price: l.profile.Price}
		row.Monitor.Low, row.Monitor.Up = l.profile.PriceRange(l.siblings)
		if row.ThisWeekPrice != nil {
			row.Monitor.Triggered = l.profile.Active(*row.ThisWeekPrice)
		}
	}

	row.NoData = row.ThisWeekPrice == nil && row.LastWeekPrice == nil && !hasCells(row.Prices)
	return row, nil
}

// fillWeeks sets the daily cells and weekly figures from an aggregate of both weeks.
func fillWeeks(row *WeeklyRow, res aggregate.Result, thisWeek, lastWeek dates.Span) {
	this, last := res.Between(thisWeek), res.Between(lastWeek)

	byDay := make(map[time.Time]aggregate.GroupedDaily, len(this.Daily))
	for _, d := range this.Daily {
		byDay[d.Date] = d
	}
	for _, day := range thisWeek.Days() {
		price, volume := DayCell{Date: day}, DayCell{Date: day}
		if d, ok := byDay[day]; ok {
			price.Value = floatPtr(d.AvgPrice)
			volume.Value = floatPtr(d.SumVolume)
		}
		row.Prices = append(row.Prices, price)
		if res.Flags.HasVolume {
			row.Volumes = append(row.Volumes, volume)
		}
	}

	if p, ok := this.AvgPrice(); ok {
		row.ThisWeekPrice = floatPtr(p)
	}
	if p, ok := last.AvgPrice(); ok {
		row.LastWeekPrice = floatPtr(p)
	}
	row.PriceChange = change(row.ThisWeekPrice, row.LastWeekPrice)

	if v, ok := this.AvgVolume(); ok {
		row.ThisWeekVolume = floatPtr(v)
	}
	if v, ok := last.AvgVolume(); ok {
		row.LastWeekVolume = floatPtr(v)
	}
	row.VolumeChange = change(row.ThisWeekVolume, row.LastWeekVolume)
}

// carryRams fills each day with the latest price on or before it. Only the
// first day and days with their own report show a price; other days show the
// date the latest price came from.
func (r *Reporter) carryRams(ctx context.Context, row *WeeklyRow, filter service.DailyTranFilter, week dates.Span) error {
	latest, err := r.latestByDay(ctx, filter, week.Days())
	if err != nil {
		return err
	}
	for i, day := range week.Days() {
		t := latest[i]
		if t == nil {
			continue
		}
		if i == 0 || t.Date.Equal(day) {
			row.Prices[i] = DayCell{Date: day, Value: floatPtr(t.AvgPrice)}
		} else {
			row.Prices[i] = DayCell{Date: day, Mark: t.Date.Format("(01/02)")}
		}
	}
	return nil
}

// carryCattle fills each day with the latest price on or before it and
// replaces the weekly prices with plain means of those carried prices. The
// previous week is the eight days ending on the first day of this week.
func (r *Reporter) carryCattle(ctx context.Context, row *WeeklyRow, filter service.DailyTranFilter, week dates.Span) error {
	thisDays := week.Days()
	thisLatest, err := r.latestByDay(ctx, filter, thisDays)
	if err != nil {
		return err
	}
	lastLatest, err := r.latestByDay(ctx, filter, dates.Range(dates.AddDays(week.Start, -7), week.Start))
	if err != nil {
		return err
	}

	thisMean, thisOK := meanPrice(thisLatest)
	lastMean, lastOK := meanPrice(lastLatest)
	if thisOK {
		for i, t := range thisLatest {
			if t != nil {
				row.Prices[i] = DayCell{Date: thisDays[i], Value: floatPtr(t.AvgPrice)}
			}
		}
		row.ThisWeekPrice = floatPtr(thisMean)
	}
	if lastOK {
		row.LastWeekPrice = floatPtr(lastMean)
	}
	row.PriceChange = change(row.ThisWeekPrice, row.LastWeekPrice)
	return nil
}

func (r *Reporter) latestByDay(ctx context.Context, filter service.DailyTranFilter, days []time.Time) ([]*model.DailyTran, error) {
	out := make([]*model.DailyTran, len(days))
	for i, day := range days {
		t, err := r.store.LatestOnOrBefore(ctx, filter, day)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest price on %s: %w", dates.Format(day), err)
		}
		out[i] = t
	}
	return out, nil
}

func meanPrice(rows []*model.DailyTran) (float64, bool) {
	var sum float64
	n := 0
	for _, t := range rows {
		if t != nil {
			sum += t.AvgPrice
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func change(this, last *float64) *float64 {
	if this == nil || last == nil {
		return nil
	}
	if pct, ok := aggregate.PercentChange(*this, *last); ok {
		return &pct
	}
	return nil
}

func hasCells(cells []DayCell) bool {
	for _, c := range cells {
		if c.Value != nil || c.Mark != "" {
			return true
		}
	}
	return false
}
