package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"timesheet/internal/core"
	ports "timesheet/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	CatalogSheetName   string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesSheet  string
	catalogSheet  string
}

// Ensure interface conformance
var (
	_ ports.EntryWriter   = (*Client)(nil)
	_ ports.DayReplacer   = (*Client)(nil)
	_ ports.EntryLister   = (*Client)(nil)
	_ ports.EntryResetter = (*Client)(nil)
	_ ports.CatalogReader = (*Client)(nil)
)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	entries := strings.TrimSpace(cfg.SheetName)
	if entries == "" {
		entries = "Timesheet"
	}
	catalog := strings.TrimSpace(cfg.CatalogSheetName)
	if catalog == "" {
		catalog = "Catalog"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		entriesSheet:  entries,
		catalogSheet:  catalog,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is set.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client optimized for Google Sheets API
// with connection pooling, proper timeouts, and keep-alive settings
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Insert appends one row. An entry whose id is already in the sheet is not
// written twice, so a retried sync is harmless.
func (c *Client) Insert(ctx context.Context, ownerID string, e core.TimeEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rows, err := c.readRows(ctx)
	if err != nil {
		return "", err
	}
	for i, r := range rows {
		if safeGet(r, colEntryID) == e.ID {
			ref := rowRef(c.entriesSheet, i)
			slog.InfoContext(ctx, "Entry already in sheet, skipping append", "entry_id", e.ID, "sheets_ref", ref)
			return ref, nil
		}
	}

	return c.appendRows(ctx, [][]any{entryRow(ownerID, e)})
}

// ReplaceDay deletes the owner's rows of date d and appends entries.
func (c *Client) ReplaceDay(ctx context.Context, ownerID string, d core.Date, entries []core.TimeEntry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	day := d.String()
	if err := c.deleteRows(ctx, func(r []string) bool {
		return safeGet(r, colOwner) == ownerID && safeGet(r, colDate) == day
	}); err != nil {
		return fmt.Errorf("clear %s: %w", day, err)
	}
	if len(entries) == 0 {
		return nil
	}
	values := make([][]any, len(entries))
	for i, e := range entries {
		values[i] = entryRow(ownerID, e)
	}
	_, err := c.appendRows(ctx, values)
	return err
}

// DeleteByOwner removes every row of the owner.
func (c *Client) DeleteByOwner(ctx context.Context, ownerID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return c.deleteRows(ctx, func(r []string) bool {
		return safeGet(r, colOwner) == ownerID
	})
}

// ListByOwner reads the owner's rows back as entries. Rows that do not parse
// are skipped.
func (c *Client) ListByOwner(ctx context.Context, ownerID string) ([]core.TimeEntry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rows, err := c.readRows(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.TimeEntry
	for i, r := range rows {
		e, owner, err := parseRow(r)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable timesheet row", "row", i+2, "error", err)
			continue
		}
		if owner == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// List reads projects from column A and documents from column B of the catalog tab.
func (c *Client) List(ctx context.Context) ([]string, []string, error) {
	if c.svc == nil {
		return nil, nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A2:B", c.catalogSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return columnValues(resp.Values, 0), columnValues(resp.Values, 1), nil
}

// readRows returns the data rows of the entries tab, header excluded.
func (c *Client) readRows(ctx context.Context) ([][]string, error) {
	rng := fmt.Sprintf("%s!A2:G", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

func (c *Client) appendRows(ctx context.Context, values [][]any) (string, error) {
	rng := fmt.Sprintf("%s!A:G", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.entriesSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// deleteRows removes every data row matching match in one batch update.
// Rows are deleted bottom-up so earlier indices stay valid.
func (c *Client) deleteRows(ctx context.Context, match func([]string) bool) error {
	rows, err := c.readRows(ctx)
	if err != nil {
		return err
	}
	var idx []int64
	for i, r := range rows {
		if match(r) {
			idx = append(idx, int64(i)+1) // +1 skips the header row
		}
	}
	if len(idx) == 0 {
		return nil
	}

	sheetID, err := c.sheetID(ctx, c.entriesSheet)
	if err != nil {
		return err
	}

	sort.Slice(idx, func(a, b int) bool { return idx[a] > idx[b] })
	reqs := make([]*gsheet.Request, len(idx))
	for i, row := range idx {
		reqs[i] = &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: row,
					EndIndex:   row + 1,
				},
			},
		}
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %d rows from %s: %w", len(idx), c.entriesSheet, err)
	}
	slog.InfoContext(ctx, "Deleted timesheet rows", "sheet", c.entriesSheet, "count", len(idx))
	return nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

func rowRef(sheet string, dataIndex int) string {
	n := dataIndex + 2
	return fmt.Sprintf("%s!A%d:G%d", sheet, n, n)
}
