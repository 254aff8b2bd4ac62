package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/common"
	"github.com/Veraticus/the-harvest-must-flow/internal/report"
	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Publisher writes report sheets into tabs of one spreadsheet. Tabs that
// already exist are cleared and rewritten; missing tabs are added.
type Publisher struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewPublisher authenticates and creates a publisher.
func NewPublisher(ctx context.Context, config Config, logger *slog.Logger) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newPublisher(srv, config, logger), nil
}

func newPublisher(srv *sheets.Service, config Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{service: srv, config: config, logger: logger}
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, tokenSource)))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// Publish writes tabs and returns the spreadsheet id. Without a configured
// spreadsheet a new one named title is created.
func (p *Publisher) Publish(ctx context.Context, title string, tabs []report.Sheet) (string, error) {
	if len(tabs) == 0 {
		return "", report.ErrNoSheets
	}

	spreadsheetID, ids, err := p.spreadsheet(ctx, title, tabs)
	if err != nil {
		return "", err
	}
	if err := p.addMissingTabs(ctx, spreadsheetID, tabs, ids); err != nil {
		return "", err
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  p.config.RetryAttempts,
		InitialDelay: p.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, tab := range tabs {
		values := tabValues(tab)
		err := common.WithRetry(ctx, func() error {
			if err := p.clearTab(ctx, spreadsheetID, tab.Name); err != nil {
				return err
			}
			return p.writeData(ctx, spreadsheetID, tab.Name, values)
		}, retryOpts)
		if err != nil {
			return "", fmt.Errorf("failed to write tab %s: %w", tab.Name, err)
		}
	}

	if p.config.EnableFormatting {
		err := common.WithRetry(ctx, func() error {
			return p.applyFormatting(ctx, spreadsheetID, tabs, ids)
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			p.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	p.logger.Info("published report",
		"spreadsheet_id", spreadsheetID,
		"tabs", len(tabs))
	return spreadsheetID, nil
}

// spreadsheet opens the configured spreadsheet or creates one, returning the
// sheet id of every existing tab by name.
func (p *Publisher) spreadsheet(ctx context.Context, title string, tabs []report.Sheet) (string, map[string]int64, error) {
	ids := make(map[string]int64)

	if p.config.SpreadsheetID != "" {
		existing, err := p.service.Spreadsheets.Get(p.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", p.config.SpreadsheetID, err)
		}
		for _, s := range existing.Sheets {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
		return p.config.SpreadsheetID, ids, nil
	}

	if title == "" {
		title = p.config.SpreadsheetName
	}
	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    title,
			TimeZone: p.config.TimeZone,
		},
	}
	for _, tab := range tabs {
		spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{Title: tab.Name},
		})
	}

	created, err := p.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}
	for _, s := range created.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}

	p.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)
	return created.SpreadsheetId, ids, nil
}

func (p *Publisher) addMissingTabs(ctx context.Context, spreadsheetID string, tabs []report.Sheet, ids map[string]int64) error {
	var requests []*sheets.Request
	for _, tab := range tabs {
		if _, ok := ids[tab.Name]; ok {
			continue
		}
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab.Name},
			},
		})
	}
	if len(requests) == 0 {
		return nil
	}

	resp, err := p.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to add tabs: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return nil
}

func (p *Publisher) clearTab(ctx context.Context, spreadsheetID, name string) error {
	_, err := p.service.Spreadsheets.Values.Clear(spreadsheetID, tabRange(name, "A:ZZ"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// writeData writes values in batches to stay under API request limits.
func (p *Publisher) writeData(ctx context.Context, spreadsheetID, name string, values [][]any) error {
	size := p.config.BatchSize
	if size <= 0 {
		size = DefaultConfig().BatchSize
	}

	for i := 0; i < len(values); i += size {
		end := min(i+size, len(values))
		batch := values[i:end]

		_, err := p.service.Spreadsheets.Values.Update(spreadsheetID, tabRange(name, fmt.Sprintf("A%d", i+1)), &sheets.ValueRange{
			Values: batch,
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		p.logger.Debug("wrote batch", "tab", name, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

func (p *Publisher) applyFormatting(ctx context.Context, spreadsheetID string, tabs []report.Sheet, ids map[string]int64) error {
	var requests []*sheets.Request
	for _, tab := range tabs {
		id, ok := ids[tab.Name]
		if !ok {
			continue
		}
		requests = append(requests, formatRequests(id, tab)...)
	}
	if len(requests) == 0 {
		return nil
	}

	_, err := p.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

// formatRequests bolds and freezes the header, hides the tab's hidden rows
// and fits the columns.
func formatRequests(sheetID int64, tab report.Sheet) []*sheets.Request {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(tab.Header)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	// Data row i sits on grid row i+1, below the header.
	for _, i := range tab.Hidden {
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(i + 1),
					EndIndex:   int64(i + 2),
				},
				Properties: &sheets.DimensionProperties{HiddenByUser: true},
				Fields:     "hiddenByUser",
			},
		})
	}

	return append(requests, &sheets.Request{
		AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: 0,
				EndIndex:   int64(len(tab.Header)),
			},
		},
	})
}

// tabValues lays a sheet out as API values. Empty cells become "".
func tabValues(tab report.Sheet) [][]any {
	values := make([][]any, 0, len(tab.Rows)+1)
	values = append(values, cells(tab.Header))
	for _, row := range tab.Rows {
		values = append(values, cells(row))
	}
	return values
}

func cells(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		if v == nil {
			v = ""
		}
		out[i] = v
	}
	return out
}

func tabRange(name, cells string) string {
	return fmt.Sprintf("'%s'!%s", name, cells)
}
