// Package export pushes a computed budget projection to Google Sheets, one
// row per concept and one column per month.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cuentas/internal/core"
	"cuentas/internal/forecast"
)

type SheetsExporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// NewFromEnv creates the exporter from environment variables.
// Required: GOOGLE_SPREADSHEET_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_FORECAST_SHEET_NAME (default "Forecast"); the target year
// is prefixed per export, e.g. "2026 Forecast".
func NewFromEnv(ctx context.Context) (*SheetsExporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_FORECAST_SHEET_NAME"))
	if sheetBase == "" {
		sheetBase = "Forecast"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsExporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportProjection writes the full projection matrix starting at A1 of the
// year-prefixed sheet, replacing whatever the previous export left there.
func (e *SheetsExporter) ExportProjection(ctx context.Context, proj *forecast.Projection) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rows := projectionRows(proj)
	sheet := fmt.Sprintf("%d %s", proj.Year, e.sheetBase)
	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: rows}

	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Projection exported to Google Sheets",
		"spreadsheet", e.spreadsheetID,
		"sheet", sheet,
		"rows", len(rows))
	return nil
}

func projectionRows(proj *forecast.Projection) [][]any {
	header := []any{"Concepto"}
	for m := 1; m <= 12; m++ {
		header = append(header, core.YearMonth{Year: proj.Year, Month: m}.Label())
	}
	header = append(header, "Total")

	rows := [][]any{header}
	appendSeries := func(series []*forecast.Series) {
		for _, s := range series {
			row := []any{string(s.Key)}
			for _, v := range s.Months {
				row = append(row, v.InexactFloat64())
			}
			row = append(row, s.Total().InexactFloat64())
			rows = append(rows, row)
		}
	}
	appendSeries(proj.Expenses)
	appendSeries(proj.Income)

	totals := []any{"Total gastos"}
	for _, v := range proj.ExpenseColumnTotals {
		totals = append(totals, v.InexactFloat64())
	}
	totals = append(totals, proj.ExpenseGrandTotal.InexactFloat64())
	rows = append(rows, totals)
	return rows
}
