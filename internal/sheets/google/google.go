package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"snowlog/internal/core"
	"snowlog/internal/export"
	applog "snowlog/internal/log"
	ports "snowlog/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn is the column letter of the final report column.
const lastColumn = "L"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu      sync.Mutex
	sheetID *int64
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Options configures the client. Credentials come from CredentialsJSON, then
// CredentialsFile, then GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	// ClientOptions are passed to the Sheets service in place of
	// service-account credentials when set.
	ClientOptions []goption.ClientOption
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("missing spreadsheet id: %w", ports.ErrNotConfigured)
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = export.SheetName
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := loadCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		applog.FieldComponent, applog.ComponentSheets,
		"spreadsheet_id", spreadsheetID,
		"sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// loadCredentials reads service account credentials.
func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials", "json_length", len(serviceAccountJSON))
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read credentials file", "path", serviceAccountFile, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendRecord implements ports.RecordAppender
func (c *Client) AppendRecord(ctx context.Context, rec core.ShiftRecord) (string, error) {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return "", err
	}
	if row := findRow(ids, rec.ID); row > 0 {
		slog.DebugContext(ctx, "Record already mirrored", applog.FieldRecordID, rec.ID, "row", row)
		return c.rowRange(row), nil
	}

	values := [][]any{}
	if len(ids) == 0 {
		values = append(values, export.HeaderRow())
	}
	values = append(values, toSheetRow(export.Row(rec)))

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.a1("A:"+lastColumn), &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// DeleteRecord implements ports.RecordDeleter
func (c *Client) DeleteRecord(ctx context.Context, id string) (bool, error) {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return false, err
	}
	row := findRow(ids, id)
	if row == 0 {
		return false, nil
	}

	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return false, err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("delete row %d in sheet %s: %w", row, c.sheetName, err)
	}
	return true, nil
}

// ListRecordIDs implements ports.RecordReader
func (c *Client) ListRecordIDs(ctx context.Context) ([]string, error) {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && isHeader(ids[0]) {
		ids = ids[1:]
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// ReplaceAll implements ports.RecordRewriter
func (c *Client) ReplaceAll(ctx context.Context, records []core.ShiftRecord) error {
	if _, err := c.resolveSheetID(ctx); err != nil {
		return err
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.a1("A:"+lastColumn), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	values := make([][]any, 0, len(records)+1)
	values = append(values, export.HeaderRow())
	for _, r := range records {
		values = append(values, toSheetRow(export.Row(r)))
	}

	rng := c.a1(fmt.Sprintf("A1:%s%d", lastColumn, len(values)))
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write sheet %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	if _, err := c.resolveSheetID(ctx); err != nil {
		return nil, err
	}
	rng := c.a1("A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

// resolveSheetID looks up the numeric id of the sheet tab, which row
// deletion needs. The tab is created when missing.
func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sheetID != nil {
		return *c.sheetID, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.sheetName {
			id := s.Properties.SheetId
			c.sheetID = &id
			return id, nil
		}
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: c.sheetName}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add sheet %s: %w", c.sheetName, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return 0, fmt.Errorf("add sheet %s: empty reply", c.sheetName)
	}
	id := resp.Replies[0].AddSheet.Properties.SheetId
	c.sheetID = &id
	return id, nil
}

func (c *Client) a1(rng string) string {
	return quoteSheetName(c.sheetName) + "!" + rng
}

func (c *Client) rowRange(row int) string {
	return c.a1(fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// findRow returns the 1-based row holding id, or 0.
func findRow(ids []string, id string) int {
	if id == "" {
		return 0
	}
	for i, v := range ids {
		if v == id {
			return i + 1
		}
	}
	return 0
}

func isHeader(v string) bool {
	return v == export.Header()[0]
}

// toSheetRow blanks unreported cells; a nil value would leave the cell
// untouched on update.
func toSheetRow(cells []any) []any {
	out := make([]any, len(cells))
	for i, v := range cells {
		if v == nil {
			v = ""
		}
		out[i] = v
	}
	return out
}
