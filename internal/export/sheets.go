package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendbook/internal/core"
)

// SheetsConfig carries the spreadsheet target and service-account credentials
// for the Sheets export surface.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string // inline service-account key, takes precedence
	CredentialsFile string // path to a service-account key file
}

// SheetsClient appends expense rows to a spreadsheet.
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsClient builds a client from service-account credentials. When
// neither inline JSON nor a key file is configured, Application Default
// Credentials are used.
func NewSheetsClient(ctx context.Context, cfg SheetsConfig) (*SheetsClient, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	var opts []goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, goption.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &SheetsClient{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// Append adds one row per record to the configured sheet, in the same field
// order as the CSV export.
func (c *SheetsClient) Append(ctx context.Context, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(expenses))
	for _, e := range expenses {
		values = append(values, []interface{}{
			e.ID,
			e.Title,
			core.FormatDecimal(e.Amount),
			e.Category.DisplayName(),
			e.Note,
			e.FormattedDate(),
			e.FormattedTime(),
			e.ReceiptURI,
		})
	}

	rangeRef := fmt.Sprintf("%s!A:H", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, rangeRef, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Appended expenses to sheet",
		"spreadsheet_id", c.spreadsheetID,
		"sheet", c.sheetName,
		"rows", len(values))
	return nil
}
