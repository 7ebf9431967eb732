package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/service"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// summaryRows is the number of rows written above the table header.
const summaryRows = 9

// Writer implements the ReportWriter interface for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Write replaces the report sheet with a summary block followed by the
// filtered rows.
func (w *Writer) Write(ctx context.Context, filtered *model.Table, summary *service.ReportSummary) error {
	w.logger.Info("starting report generation",
		"rows", filtered.Len(),
		"run_id", summary.RunID)

	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
		return fmt.Errorf("failed to clear sheet: %w", clearErr)
	}

	values := w.prepareReportData(filtered, summary)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, len(values), filtered)
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written.
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report generation completed",
		"spreadsheet_id", spreadsheetID,
		"rows_written", len(values))

	return nil
}

// createSheetsService creates a Google Sheets API service.
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

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet gets an existing spreadsheet or creates a new one.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		_, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{
				Properties: &sheets.SheetProperties{
					Title: w.sheetTitle(),
				},
			},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	// Later runs reuse the same spreadsheet.
	w.config.SpreadsheetID = created.SpreadsheetId

	return created.SpreadsheetId, nil
}

func (w *Writer) sheetTitle() string {
	if w.config.SheetTitle == "" {
		return "Filtered"
	}
	return w.config.SheetTitle
}

// clearSheet clears all data from the report sheet.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, w.sheetTitle(), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareReportData lays out the summary block and then the filtered table.
func (w *Writer) prepareReportData(filtered *model.Table, summary *service.ReportSummary) [][]any {
	values := make([][]any, 0, summaryRows+1+filtered.Len())

	total, _ := decimal.NewFromFloat(summary.TotalCredit).Round(2).Float64()
	values = append(values,
		[]any{"Filtered Ledger", summary.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{}, // Empty row
		[]any{"Summary"},
		[]any{"Source File", summary.FileName},
		[]any{"Run ID", summary.RunID},
		[]any{"Rows Classified", summary.Rows},
		[]any{"Rows Matched", summary.Matched},
		[]any{"Total Credit", total},
		[]any{}, // Empty row
	)

	header := make([]any, len(filtered.Columns))
	for i, name := range filtered.Columns {
		header[i] = name
	}
	values = append(values, header)

	for _, row := range filtered.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = cellData(v)
		}
		values = append(values, cells)
	}

	return values
}

func cellData(v model.Value) any {
	switch v.Kind {
	case model.KindNumber:
		return v.Number
	case model.KindText:
		return v.Text
	default:
		return ""
	}
}

// writeData writes the data to the spreadsheet.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for _, b := range batches(len(values), w.config.BatchSize) {
		valueRange := &sheets.ValueRange{
			Values: values[b.start:b.end],
		}

		rangeStr := fmt.Sprintf("'%s'!A%d", w.sheetTitle(), b.start+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("RAW").
			Context(ctx).
			Do()

		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", b.start+1, err)
		}

		w.logger.Debug("wrote batch", "start_row", b.start+1, "rows", b.end-b.start)
	}

	return nil
}

type batch struct{ start, end int }

// batches splits n rows into consecutive ranges of at most size rows.
func batches(n, size int) []batch {
	if size <= 0 {
		size = n
	}
	var out []batch
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		out = append(out, batch{start: i, end: end})
	}
	return out
}

// applyFormatting bolds the title and table header and formats the credit
// column as currency.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, totalRows int, filtered *model.Table) error {
	sheetID, err := w.sheetID(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold:     true,
							FontSize: 16,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    summaryRows,
					EndRowIndex:      summaryRows + 1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(filtered.Columns)),
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
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(filtered.Columns)),
				},
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: sheetID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: summaryRows + 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	if credit := filtered.ColumnIndex(model.ColumnCredit); credit >= 0 {
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    summaryRows + 1,
					EndRowIndex:      int64(totalRows),
					StartColumnIndex: int64(credit),
					EndColumnIndex:   int64(credit + 1),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "CURRENCY",
							Pattern: "$#,##0.00",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		})
	}

	batchUpdate := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}

	_, err = w.service.Spreadsheets.BatchUpdate(spreadsheetID, batchUpdate).Context(ctx).Do()
	return err
}

// sheetID looks up the numeric ID of the report sheet.
func (w *Writer) sheetID(ctx context.Context, spreadsheetID string) (int64, error) {
	ss, err := w.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to read spreadsheet %s: %w", spreadsheetID, err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == w.sheetTitle() {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: sheet %q in spreadsheet %s", common.ErrNotFound, w.sheetTitle(), spreadsheetID)
}
