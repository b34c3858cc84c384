// Package sheets is the spreadsheet transport: the cedula roster is read
// from a source worksheet and harvest output is written to one tab per
// period on the target spreadsheet. The surface is deliberately small
// (list, ensure, append, read a column) so the harvest pipeline never
// touches the Google API types directly.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	domerrors "github.com/univalle-dev/asignacion-go/internal/errors"
)

// Client wraps the Sheets v4 service.
type Client struct {
	svc *gsheets.Service
}

// New builds an authenticated client from service-account JSON.
func New(ctx context.Context, credentialsJSON []byte) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
	}

	svc, err := gsheets.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{svc: svc}, nil
}

// NewWithService wraps an existing service. Used by tests to point the
// client at a fake endpoint.
func NewWithService(svc *gsheets.Service) *Client {
	return &Client{svc: svc}
}

// SheetInfo identifies one tab of a spreadsheet.
type SheetInfo struct {
	SheetID int64
	Title   string
}

// ListSheets returns the tab titles in spreadsheet order.
func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]string, error) {
	infos, err := c.ListSheetInfo(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(infos))
	for _, info := range infos {
		titles = append(titles, info.Title)
	}
	return titles, nil
}

// ListSheetInfo returns id and title for every tab.
func (c *Client) ListSheetInfo(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	var resp *gsheets.Spreadsheet
	err := c.do(ctx, "list_sheets", spreadsheetID, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Get(spreadsheetID).
			Fields("sheets.properties.sheetId", "sheets.properties.title").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	infos := make([]SheetInfo, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		infos = append(infos, SheetInfo{SheetID: sh.Properties.SheetId, Title: sh.Properties.Title})
	}
	return infos, nil
}

// EnsureSheet guarantees a tab named title exists with exactly header in
// row 1 and no data below it: missing tabs are created, a differing
// header row (compared case- and whitespace-insensitively) is
// overwritten, and rows 2..end are cleared either way.
func (c *Client) EnsureSheet(ctx context.Context, spreadsheetID, title string, header []string) (*SheetInfo, error) {
	infos, err := c.ListSheetInfo(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	var info *SheetInfo
	for i := range infos {
		if infos[i].Title == title {
			info = &infos[i]
			break
		}
	}

	if info == nil {
		info, err = c.addSheet(ctx, spreadsheetID, title)
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Created sheet", "title", title)
		if err := c.writeHeader(ctx, spreadsheetID, title, header); err != nil {
			return nil, err
		}
	} else {
		existing, err := c.readHeaderRow(ctx, spreadsheetID, title)
		if err != nil {
			return nil, err
		}
		if !headerMatches(existing, header) {
			slog.DebugContext(ctx, "Repairing sheet header", "title", title)
			if err := c.writeHeader(ctx, spreadsheetID, title, header); err != nil {
				return nil, err
			}
		}
	}

	err = c.do(ctx, "clear_rows", spreadsheetID, func() error {
		_, err := c.svc.Spreadsheets.Values.
			Clear(spreadsheetID, quoteTitle(title)+"!A2:ZZ", &gsheets.ClearValuesRequest{}).
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	return info, nil
}

// AppendRows writes rows below the last data row as a single batch.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, title string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	vr := &gsheets.ValueRange{Values: toValueRows(rows)}
	return c.do(ctx, "append_rows", spreadsheetID, func() error {
		_, err := c.svc.Spreadsheets.Values.
			Append(spreadsheetID, quoteTitle(title)+"!A1", vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
}

// ReadColumn returns one column's cell values top to bottom, empty cells
// included. column accepts a letter ("D") or a 1-based index ("4").
func (c *Client) ReadColumn(ctx context.Context, spreadsheetID, title, column string) ([]string, error) {
	letter, err := ColumnLetter(column)
	if err != nil {
		return nil, err
	}

	rng := fmt.Sprintf("%s!%s:%s", quoteTitle(title), letter, letter)
	var resp *gsheets.ValueRange
	err = c.do(ctx, "read_column", spreadsheetID, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, cellString(row[0]))
	}
	return values, nil
}

func (c *Client) addSheet(ctx context.Context, spreadsheetID, title string) (*SheetInfo, error) {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{Title: title},
			},
		}},
	}

	var resp *gsheets.BatchUpdateSpreadsheetResponse
	err := c.do(ctx, "add_sheet", spreadsheetID, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	info := &SheetInfo{Title: title}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		info.SheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	return info, nil
}

func (c *Client) readHeaderRow(ctx context.Context, spreadsheetID, title string) ([]string, error) {
	var resp *gsheets.ValueRange
	err := c.do(ctx, "read_header", spreadsheetID, func() error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.
			Get(spreadsheetID, quoteTitle(title)+"!1:1").
			Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}
	header := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		header = append(header, cellString(cell))
	}
	return header, nil
}

func (c *Client) writeHeader(ctx context.Context, spreadsheetID, title string, header []string) error {
	vr := &gsheets.ValueRange{Values: toValueRows([][]string{header})}
	return c.do(ctx, "write_header", spreadsheetID, func() error {
		_, err := c.svc.Spreadsheets.Values.
			Update(spreadsheetID, quoteTitle(title)+"!A1", vr).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
}

// headerMatches compares header rows ignoring case and interior
// whitespace differences. Trailing empty cells on the sheet side are
// ignored because the API never returns them.
func headerMatches(got, want []string) bool {
	for len(got) > 0 && normalizeCell(got[len(got)-1]) == "" {
		got = got[:len(got)-1]
	}
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(normalizeCell(got[i]), normalizeCell(want[i])) {
			return false
		}
	}
	return true
}

func normalizeCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// quoteTitle wraps a tab title in single quotes for A1 notation;
// interior quotes are doubled per the grammar.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// ColumnLetter resolves a column spec to its A1 letter form. Accepts a
// letter run ("D", "AA") or a 1-based index ("4").
func ColumnLetter(column string) (string, error) {
	col := strings.ToUpper(strings.TrimSpace(column))
	if col == "" {
		return "", domerrors.NewFormatError("column", column, "empty column spec")
	}

	if isLetters(col) {
		return col, nil
	}

	n, err := strconv.Atoi(col)
	if err != nil || n < 1 {
		return "", domerrors.NewFormatError("column", column, "must be a column letter or a positive index")
	}
	return indexToLetter(n), nil
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// indexToLetter converts a 1-based column index to letters (1=A, 27=AA).
func indexToLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func toValueRows(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
