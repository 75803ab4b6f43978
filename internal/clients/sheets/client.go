// Package sheets provides spreadsheet sync backed by the Google Sheets API
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

const (
	DefaultSheetName = "Sheet1"
	DefaultTimeout   = 15 * time.Second
)

// Client implements interfaces.SpreadsheetSync
type Client struct {
	endpoint  string
	sheetName string
	timeout   time.Duration
	logger    *common.Logger
}

var _ interfaces.SpreadsheetSync = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithEndpoint overrides the API endpoint
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithSheetName sets the sheet (tab) holding transactions
func WithSheetName(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.sheetName = name
		}
	}
}

// WithTimeout bounds each API call
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Google Sheets client. The API key is supplied per
// call since each user stores their own.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		sheetName: DefaultSheetName,
		timeout:   DefaultTimeout,
		logger:    common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) service(ctx context.Context, apiKey string) (*gsheets.Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Google Sheets API key not set", common.ErrCredentialMissing)
	}
	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// ReadRows returns the transaction rows of the sheet, skipping the header
// and blank rows.
func (c *Client) ReadRows(ctx context.Context, credential, spreadsheetID string) ([]models.SheetRow, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, credential)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, c.sheetName).Context(ctx).Do()
	if err != nil {
		return nil, c.mapError(err, spreadsheetID, "read")
	}

	rows := make([]models.SheetRow, 0, len(resp.Values))
	for _, raw := range resp.Values {
		cells := make([]string, len(raw))
		for i, v := range raw {
			cells[i] = fmt.Sprint(v)
		}
		row := models.SheetRowFromValues(cells)
		if row.IsHeader() || row == (models.SheetRow{}) {
			continue
		}
		rows = append(rows, row)
	}

	c.logger.Debug().Str("spreadsheet_id", spreadsheetID).Int("rows", len(rows)).Msg("Read spreadsheet rows")
	return rows, nil
}

// WriteRow appends one row after the last row of the sheet.
func (c *Client) WriteRow(ctx context.Context, credential, spreadsheetID string, row models.SheetRow) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	svc, err := c.service(ctx, credential)
	if err != nil {
		return err
	}

	values := row.Values()
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	_, err = svc.Spreadsheets.Values.Append(spreadsheetID, c.sheetName, &gsheets.ValueRange{
		Values: [][]interface{}{cells},
	}).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return c.mapError(err, spreadsheetID, "append")
	}

	c.logger.Debug().Str("spreadsheet_id", spreadsheetID).Str("asset", row.AssetName).Msg("Appended spreadsheet row")
	return nil
}

func (c *Client) mapError(err error, spreadsheetID, op string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("spreadsheet %s: %w", spreadsheetID, common.ErrNotFound)
	}
	c.logger.Warn().Err(err).Str("spreadsheet_id", spreadsheetID).Str("op", op).Msg("Google Sheets call failed")
	return fmt.Errorf("%w: google sheets %s: %s", common.ErrExternalUnavailable, op, strings.TrimSpace(err.Error()))
}
