package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"faturamento/internal/core"
	ports "faturamento/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Faturamento"

// Exporter writes one row per month into a yearly summary sheet named
// "<year> <base>", creating the sheet and its header on first use.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Row placement is read-then-write, so exports are serialized.
	mu sync.Mutex
}

// Ensure interface conformance
var _ ports.SummaryExporter = (*Exporter)(nil)

// Settings locate the spreadsheet and the service account credentials.
// CredentialsJSON wins over CredentialsFile.
type Settings struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// NewFromEnv creates an exporter using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SUMMARY_SHEET_NAME (default "Faturamento")
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Exporter, error) {
	settings := Settings{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		SheetName:       os.Getenv("GOOGLE_SUMMARY_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	// Also check the standard Google Cloud environment variable
	if strings.TrimSpace(settings.CredentialsFile) == "" {
		settings.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	return New(ctx, settings)
}

// New creates an exporter authenticated with a service account.
func New(ctx context.Context, settings Settings) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(settings.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, settings.CredentialsJSON, settings.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return NewWithService(svc, spreadsheetID, settings.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Exporter {
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = defaultSheetName
	}
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials from file", "path", serviceAccountFile)
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

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// ExportSummary upserts the summary's month row in the sheet for its year.
func (e *Exporter) ExportSummary(ctx context.Context, s core.MonthlySummary) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := s.Period().Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sheet := e.sheetName(s.Year)
	rows, err := e.readMonths(ctx, sheet)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		if err := e.writeRow(ctx, sheet, 1, headerRow()); err != nil {
			return err
		}
		rows = [][]any{headerRow()}
	}

	row, found := findMonthRow(rows, s.Month)
	if !found {
		row = len(rows) + 1
	}
	if err := e.writeRow(ctx, sheet, row, summaryRow(s)); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Summary exported to Google Sheets",
		"period", s.Period().String(),
		"sheet", sheet,
		"row", row,
		"updated", found)
	return nil
}

func (e *Exporter) sheetName(year int) string {
	return yearPrefixedName(e.sheetBase, year)
}

// readMonths returns column A of the sheet, creating the sheet when it does
// not exist yet.
func (e *Exporter) readMonths(ctx context.Context, sheet string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, rng).Context(ctx).Do()
	if err == nil {
		return resp.Values, nil
	}
	if !isMissingSheet(err) {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Creating summary sheet", "sheet", sheet)
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sheet}},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return nil, nil
}

func (e *Exporter) writeRow(ctx context.Context, sheet string, row int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// isMissingSheet reports whether the API rejected a range because its sheet
// does not exist.
func isMissingSheet(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range")
}
