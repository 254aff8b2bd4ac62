package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid oauth config",
			config: Config{ClientID: "id", ClientSecret: "secret", RefreshToken: "token", BatchSize: 100, RetryAttempts: 3, RetryDelay: time.Second},
		},
		{
			name:   "valid service account config",
			config: Config{ServiceAccountPath: "/path/to/key.json", BatchSize: 100},
		},
		{
			name:    "missing auth",
			config:  Config{BatchSize: 100},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name:    "partial oauth credentials",
			config:  Config{ClientID: "id", RefreshToken: "token", BatchSize: 100},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name:    "multiple auth methods",
			config:  Config{ClientID: "id", ClientSecret: "secret", RefreshToken: "token", ServiceAccountPath: "/k.json", BatchSize: 100},
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name:    "invalid batch size",
			config:  Config{ServiceAccountPath: "/k.json"},
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name:    "negative retry delay",
			config:  Config{ServiceAccountPath: "/k.json", BatchSize: 1, RetryDelay: -time.Second},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTabValues(t *testing.T) {
	tab := report.Sheet{
		Name:   "週報",
		Header: []any{"品項", "本週平均價格"},
		Rows:   [][]any{{"甘藍", 17.5}, {"牛", nil}},
	}
	assert.Equal(t, [][]any{
		{"品項", "本週平均價格"},
		{"甘藍", 17.5},
		{"牛", ""},
	}, tabValues(tab))
}

func TestFormatRequests(t *testing.T) {
	tab := report.Sheet{Name: "週報", Header: []any{"a", "b", "c"}, Hidden: []int{0, 3}}
	requests := formatRequests(42, tab)
	require.Len(t, requests, 5)

	assert.Equal(t, int64(3), requests[0].RepeatCell.Range.EndColumnIndex)
	assert.Equal(t, int64(1), requests[1].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)

	hidden := requests[2].UpdateDimensionProperties
	assert.Equal(t, int64(42), hidden.Range.SheetId)
	assert.Equal(t, int64(1), hidden.Range.StartIndex)
	assert.Equal(t, int64(2), hidden.Range.EndIndex)
	assert.True(t, hidden.Properties.HiddenByUser)
	assert.Equal(t, int64(4), requests[3].UpdateDimensionProperties.Range.StartIndex)

	assert.NotNil(t, requests[4].AutoResizeDimensions)
}

// fakeSheets answers the handful of Sheets API calls a publish makes.
type fakeSheets struct {
	mu      sync.Mutex
	calls   []string
	writes  map[string][][]any
	added   []string
	formats int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			SpreadsheetId: "sheet-1",
			Sheets:        []*sheets.Sheet{{Properties: &sheets.SheetProperties{SheetId: 0, Title: "週報"}}},
		})
	case strings.HasSuffix(path, ":batchUpdate"):
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		var resp sheets.BatchUpdateSpreadsheetResponse
		for i, q := range req.Requests {
			if q.AddSheet != nil {
				f.added = append(f.added, q.AddSheet.Properties.Title)
				resp.Replies = append(resp.Replies, &sheets.Response{
					AddSheet: &sheets.AddSheetResponse{Properties: &sheets.SheetProperties{SheetId: int64(7 + i), Title: q.AddSheet.Properties.Title}},
				})
				continue
			}
			f.formats++
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, ":clear"):
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rng := path[strings.LastIndex(path, "/")+1:]
		f.writes[rng] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected call", http.StatusNotFound)
	}
}

func TestPublish(t *testing.T) {
	fake := &fakeSheets{writes: make(map[string][][]any)}
	server := httptest.NewServer(fake)
	defer server.Close()

	ctx := context.Background()
	srv, err := sheets.NewService(ctx,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
		option.WithoutAuthentication())
	require.NoError(t, err)

	config := DefaultConfig()
	config.SpreadsheetID = "sheet-1"
	config.RetryAttempts = 1
	p := newPublisher(srv, config, nil)

	id, err := p.Publish(ctx, "weekly", []report.Sheet{
		{Name: "週報", Header: []any{"品項"}, Rows: [][]any{{"甘藍"}, {"牛"}}, Hidden: []int{1}},
		{Name: "整合", Header: []any{"期間", "平均價格"}, Rows: [][]any{{"This Term", 17.5}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	assert.Equal(t, []string{"整合"}, fake.added)
	assert.Equal(t, [][]any{{"品項"}, {"甘藍"}, {"牛"}}, fake.writes["'週報'!A1"])
	assert.Equal(t, [][]any{{"期間", "平均價格"}, {"This Term", 17.5}}, fake.writes["'整合'!A1"])
	// header, freeze, resize per tab plus one hidden row
	assert.Equal(t, 7, fake.formats)
}

func TestPublish_NoSheets(t *testing.T) {
	p := newPublisher(nil, DefaultConfig(), nil)
	_, err := p.Publish(context.Background(), "empty", nil)
	assert.ErrorIs(t, err, report.ErrNoSheets)
}
