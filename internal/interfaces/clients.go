package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// PriceOracle supplies prices for a ticker. A false second result means the
// price is absent (unknown instrument, no trading data, future date, or a
// failed call); it is never reported as an error.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, ticker, credential string) (decimal.Decimal, bool)
	HistoricalClose(ctx context.Context, ticker string, date time.Time, credential string) (decimal.Decimal, bool)
}

// SpreadsheetSync reads and appends transaction rows in an external table.
type SpreadsheetSync interface {
	ReadRows(ctx context.Context, credential, spreadsheetID string) ([]models.SheetRow, error)
	WriteRow(ctx context.Context, credential, spreadsheetID string, row models.SheetRow) error
}
