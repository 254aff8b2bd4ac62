package ingest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/cache"
	"github.com/Veraticus/the-harvest-must-flow/internal/catalog"
	"github.com/Veraticus/the-harvest-must-flow/internal/dates"
	"github.com/Veraticus/the-harvest-must-flow/internal/model"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/Veraticus/the-harvest-must-flow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-02-29", want: dates.Date(2024, time.February, 29)},
		{in: "2024/03/01", want: dates.Date(2024, time.March, 1)},
		{in: "113/01/02", want: dates.Date(2024, time.January, 2)},
		{in: "113.12.31", want: dates.Date(2024, time.December, 31)},
		{in: "99-07-01", want: dates.Date(2010, time.July, 1)},
		{in: "2023-02-29", wantErr: true},
		{in: "2024-13-01", wantErr: true},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

const dailyCSV = "\ufeffproduct_id,source_id,date,avg_price,volume,avg_weight\n" +
	"1,10,2024-01-02,100,\"1,200\",\n" +
	"1,,113/01/03,90.5,-,\n" +
	"\n" +
	"2,0,2024-01-03,80,,110\n"

func TestParseDailyTrans(t *testing.T) {
	rows, err := ReadRows("daily.csv", strings.NewReader(dailyCSV))
	require.NoError(t, err)

	trans, err := ParseDailyTrans(rows)
	require.NoError(t, err)
	require.Len(t, trans, 3)

	assert.Equal(t, int64(10), *trans[0].SourceID)
	assert.Equal(t, 1200.0, *trans[0].Volume)
	assert.Nil(t, trans[0].AvgWeight)

	assert.Nil(t, trans[1].SourceID)
	assert.Equal(t, dates.Date(2024, time.January, 3), trans[1].Date)
	assert.Equal(t, 90.5, trans[1].AvgPrice)
	assert.Nil(t, trans[1].Volume)

	assert.Nil(t, trans[2].SourceID, "source 0 means none")
	assert.Equal(t, 110.0, *trans[2].AvgWeight)
}

func TestParseDailyTrans_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantCol string
	}{
		{name: "missing header", csv: "product_id,date\n1,2024-01-01\n"},
		{name: "bad product", csv: "product_id,date,avg_price\nx,2024-01-01,1\n", wantCol: "product_id"},
		{name: "bad date", csv: "product_id,date,avg_price\n1,2024-99-01,1\n", wantCol: "date"},
		{name: "missing price", csv: "product_id,date,avg_price\n1,2024-01-01,\n", wantCol: "avg_price"},
		{name: "bad volume", csv: "product_id,date,avg_price,volume\n1,2024-01-01,1,lots\n", wantCol: "volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadRows("x.csv", strings.NewReader(tt.csv))
			require.NoError(t, err)
			_, err = ParseDailyTrans(rows)
			require.Error(t, err)
			if tt.wantCol == "" {
				assert.True(t, errors.Is(err, ErrMissingColumn))
				return
			}
			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tt.wantCol, rowErr.Column)
			assert.Equal(t, 2, rowErr.Line)
		})
	}
}

func TestReadRows_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"product_id", "date", "avg_price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{7, "2024-05-01", 12.5}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := ReadRows("prices.XLSX", &buf)
	require.NoError(t, err)
	trans, err := ParseDailyTrans(rows)
	require.NoError(t, err)
	require.Len(t, trans, 1)
	assert.Equal(t, int64(7), trans[0].ProductID)
	assert.Equal(t, 12.5, trans[0].AvgPrice)
}

func TestParseCatalog(t *testing.T) {
	productsCSV := "id,parent_id,name,category,detail,stage,track_item\n" +
		"1,,毛豬,livestock,hog,origin,false\n" +
		"2,1,規格豬,livestock,hog,origin,\n" +
		"3,,芒果,fruit,5-8,origin,yes\n"
	rows, err := ReadRows("products.csv", strings.NewReader(productsCSV))
	require.NoError(t, err)
	products, err := ParseProducts(rows)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.False(t, products[0].TrackItem)
	assert.True(t, products[1].TrackItem)
	assert.Equal(t, int64(1), *products[1].ParentID)
	assert.Equal(t, model.CategoryFruit, products[2].Category())

	_, err = ParseProducts([][]string{{"id", "name", "category"}, {"1", "x", "mineral"}})
	assert.Error(t, err)

	sourcesCSV := "id,name,stage,products\n10,台北一,wholesale,1;2\n11,雲林縣,origin,\n"
	rows, err = ReadRows("sources.csv", strings.NewReader(sourcesCSV))
	require.NoError(t, err)
	sources, err := ParseSources(rows)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, []int64{1, 2}, sources[0].Products)
	assert.True(t, sources[1].Source.Enabled)

	profilesCSV := "watchlist_id,product_id,comparator,price,row,months,seasonal,always_display\n" +
		"1,3,__lt__,25,12,5;6;7;8,5:50186;7:50185,\n" +
		"1,1,gte,80,3,,,true\n"
	rows, err = ReadRows("profiles.csv", strings.NewReader(profilesCSV))
	require.NoError(t, err)
	profiles, err := ParseMonitorProfiles(rows)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, model.LessThan, profiles[0].Comparator)
	assert.Equal(t, []int{5, 6, 7, 8}, profiles[0].Months)
	assert.Equal(t, map[int][]int64{5: {50186}, 7: {50185}}, profiles[0].Seasonal)
	assert.True(t, profiles[1].AlwaysDisplay)

	_, err = ParseMonitorProfiles([][]string{{"watchlist_id", "product_id", "comparator", "price", "seasonal"}, {"1", "1", "lt", "1", "13:1"}})
	assert.Error(t, err)

	watchlists, err := ParseWatchlists([][]string{{"id", "name", "start", "end", "is_default"}, {"1", "113年", "113/01/01", "113/12/31", "y"}})
	require.NoError(t, err)
	require.Len(t, watchlists, 1)
	assert.True(t, watchlists[0].IsDefault)
	assert.Equal(t, dates.Date(2024, time.December, 31), watchlists[0].End)
}

func TestImporter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	c := cache.NewMemoryCache(time.Minute)
	defer func() { _ = c.Close() }()
	cat := catalog.NewService(db.Storage, c)

	im := NewImporter(db.Storage, cat)
	im.BatchSize = 2

	require.NoError(t, im.ImportProducts(ctx, []model.Product{
		{ID: 1, Name: "甘藍", Data: model.CropData{}, Stage: model.StageWholesale, TrackItem: true},
	}))

	// Warm the cache, then import sources and check the links show up.
	sources, err := cat.Sources(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, sources)

	require.NoError(t, im.ImportSources(ctx, []SourceRow{
		{Source: model.Source{ID: 10, Name: "台北一", Stage: model.StageWholesale, Enabled: true}, Products: []int64{1}},
	}))
	sources, err = cat.Sources(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	var progressed int
	rows := []model.DailyTran{
		testutil.Tran(t, 1, 10, "2024-01-01", 10),
		testutil.Tran(t, 1, 10, "2024-01-02", 11),
		testutil.Tran(t, 1, 10, "2024-01-03", 12),
	}
	stats, err := im.ImportDailyTrans(ctx, rows, func(n int) { progressed += n })
	require.NoError(t, err)
	assert.Equal(t, service.UpsertStats{Inserted: 3}, stats)
	assert.Equal(t, 3, progressed)

	stats, err = im.ImportDailyTrans(ctx, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, service.UpsertStats{Unchanged: 3}, stats)

	w := []model.Watchlist{{ID: 1, Name: "113年", Start: testutil.Day(t, "2024-01-01"), End: testutil.Day(t, "2024-12-31")}}
	p := []model.MonitorProfile{{WatchlistID: 1, ProductID: 1, Comparator: model.LessThan, Price: 8}}
	require.NoError(t, im.ImportWatchlists(ctx, w, p))
	profiles, err := db.Storage.GetMonitorProfiles(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}
