package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheetConfig identifies the target spreadsheet.
type GoogleSheetConfig struct {
	CredentialsJSON []byte
	SpreadsheetID   string
	// Range is the A1 range rows are appended to. Empty means the first
	// worksheet of the spreadsheet.
	Range string
}

// GoogleSheet implements Sheet with the Sheets v4 values API.
type GoogleSheet struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	rng           string
}

// NewGoogleSheet authenticates with a service account and resolves the
// target worksheet, so bad credentials or a wrong id fail here rather than
// on the first feedback submission.
func NewGoogleSheet(ctx context.Context, cfg GoogleSheetConfig) (*GoogleSheet, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is empty")
	}

	srv, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(cfg.CredentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope, sheets.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return openGoogleSheet(ctx, srv, cfg)
}

// openGoogleSheet resolves the target range on an authenticated service.
func openGoogleSheet(ctx context.Context, srv *sheets.Service, cfg GoogleSheetConfig) (*GoogleSheet, error) {
	doc, err := srv.Spreadsheets.Get(cfg.SpreadsheetID).
		Fields("spreadsheetId", "sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", cfg.SpreadsheetID, err)
	}

	rng := cfg.Range
	if rng == "" {
		if len(doc.Sheets) == 0 || doc.Sheets[0].Properties == nil {
			return nil, fmt.Errorf("spreadsheet %s has no worksheets", cfg.SpreadsheetID)
		}
		rng = quoteSheetTitle(doc.Sheets[0].Properties.Title)
	}

	return &GoogleSheet{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		rng:           rng,
	}, nil
}

// quoteSheetTitle makes a worksheet title usable as an A1 range even when it
// contains spaces or quotes.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Range returns the resolved A1 range.
func (g *GoogleSheet) Range() string {
	return g.rng
}

// AppendRow writes values as a new row below the existing data. Cells are
// stored RAW so the timestamp stays text.
func (g *GoogleSheet) AppendRow(ctx context.Context, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	_, err := g.values.Append(g.spreadsheetID, g.rng, &sheets.ValueRange{
		Values: [][]interface{}{cells},
	}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// LastRow returns the last non-empty row in the range.
func (g *GoogleSheet) LastRow(ctx context.Context) ([]string, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, errors.New("sheet is empty")
	}

	last := resp.Values[len(resp.Values)-1]
	row := make([]string, len(last))
	for i, cell := range last {
		row[i] = fmt.Sprint(cell)
	}
	return row, nil
}
