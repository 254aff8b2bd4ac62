package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/aggregate"
	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/report"
	"github.com/Veraticus/the-harvest-must-flow/internal/series"
	"github.com/gin-gonic/gin"
)

// errBadRequest marks malformed query parameters.
var errBadRequest = errors.New("bad request")

// Handler answers series requests.
type Handler struct {
	reporter *report.Reporter
	now      func() time.Time
}

// NewHandler creates a handler over a reporter.
func NewHandler(reporter *report.Reporter) *Handler {
	return &Handler{reporter: reporter, now: time.Now}
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Daily serves the aggregated days of a window: table rows, dense chart
// points per field and the window's scalar figures.
func (h *Handler) Daily(c *gin.Context) {
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	span, err := spanParams(c)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.reporter.Daily(c.Request.Context(), sel, span)
	if err != nil {
		fail(c, err)
		return
	}
	if res.Empty() {
		c.JSON(http.StatusOK, gin.H{"no_data": true})
		return
	}

	points := make(map[aggregate.Field][]series.Point)
	for _, f := range res.Flags.Fields() {
		points[f] = series.Dense(res.Daily, span, f)
	}
	price, _ := res.AvgPrice()
	body := gin.H{
		"no_data":    false,
		"has_volume": res.Flags.HasVolume,
		"has_weight": res.Flags.HasWeight,
		"avg_price":  price,
		"table":      series.TableRows(res),
		"points":     points,
	}
	if v, ok := res.AvgVolume(); ok {
		body["avg_volume"] = v
	}
	if w, ok := res.AvgWeight(); ok {
		body["avg_weight"] = w
	}
	c.JSON(http.StatusOK, body)
}

// Yearly serves every year of data aligned on one reference year.
func (h *Handler) Yearly(c *gin.Context) {
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	field, err := fieldParam(c)
	if err != nil {
		fail(c, err)
		return
	}

	now := h.now()
	aligned, err := h.reporter.Yearly(c.Request.Context(), sel, field, dates.Day(now))
	if err != nil {
		fail(c, err)
		return
	}
	if len(aligned) == 0 {
		c.JSON(http.StatusOK, gin.H{"no_data": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"no_data": false,
		"years":   series.Years(aligned, now.Year()),
		"series":  aligned,
		"table":   series.YearTable(aligned),
	})
}

// Distribution serves monthly quantiles pooled over the requested years.
func (h *Handler) Distribution(c *gin.Context) {
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	field, err := fieldParam(c)
	if err != nil {
		fail(c, err)
		return
	}
	years, err := intList(c.Query("years"))
	if err != nil {
		fail(c, fmt.Errorf("%w: years: %v", errBadRequest, err))
		return
	}

	stats, err := h.reporter.Distribution(c.Request.Context(), sel, field, years, dates.Day(h.now()))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"no_data": len(stats) == 0, "months": stats})
}

// Integration compares a window with earlier periods.
func (h *Handler) Integration(c *gin.Context) {
	sel, ok := h.selection(c)
	if !ok {
		return
	}
	span, err := spanParams(c)
	if err != nil {
		fail(c, err)
		return
	}
	perYear := false
	if s := c.Query("per_year"); s != "" {
		if perYear, err = strconv.ParseBool(s); err != nil {
			fail(c, fmt.Errorf("%w: per_year: %v", errBadRequest, err))
			return
		}
	}

	out, err := h.reporter.Integration(c.Request.Context(), sel, span.Start, span.End, perYear)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// selection resolves products, sources and stage, answering the request itself on failure.
func (h *Handler) selection(c *gin.Context) (catalog.Selection, bool) {
	products, err := intList(c.Query("products"))
	if err != nil {
		fail(c, fmt.Errorf("%w: products: %v", errBadRequest, err))
		return catalog.Selection{}, false
	}
	sources, err := intList(c.Query("sources"))
	if err != nil {
		fail(c, fmt.Errorf("%w: sources: %v", errBadRequest, err))
		return catalog.Selection{}, false
	}
	stage, err := model.ParseStage(c.Query("stage"))
	if err != nil {
		fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return catalog.Selection{}, false
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = int64(p)
	}
	sourceIDs := make([]int64, len(sources))
	for i, s := range sources {
		sourceIDs[i] = int64(s)
	}

	sel, err := h.reporter.Resolve(c.Request.Context(), ids, sourceIDs, stage)
	if err != nil {
		fail(c, err)
		return catalog.Selection{}, false
	}
	return sel, true
}

func spanParams(c *gin.Context) (dates.Span, error) {
	start, err := dates.Parse(c.Query("start"))
	if err != nil {
		return dates.Span{}, fmt.Errorf("%w: start: %v", errBadRequest, err)
	}
	end, err := dates.Parse(c.Query("end"))
	if err != nil {
		return dates.Span{}, fmt.Errorf("%w: end: %v", errBadRequest, err)
	}
	return dates.NewSpan(start, end)
}

func fieldParam(c *gin.Context) (aggregate.Field, error) {
	s := c.DefaultQuery("field", string(aggregate.FieldPrice))
	f, err := aggregate.ParseField(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return f, nil
}

// intList parses "1,2,3".
func intList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fail maps caller mistakes to 400 and everything else to 500.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errBadRequest), common.IsValidation(err), errors.Is(err, dates.ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		common.LogError(c.Request.Context(), err, "Request failed", common.Fields{"path": c.Request.URL.Path})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
