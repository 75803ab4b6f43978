package common

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// MockPriceOracle implements interfaces.PriceOracle for testing.
// Tickers without an entry are reported as absent.
type MockPriceOracle struct {
	mu         sync.Mutex
	Current    map[string]decimal.Decimal
	Historical map[string]decimal.Decimal // key: TICKER|YYYY-MM-DD
	Calls      int
	LastCred   string
}

// NewMockPriceOracle creates an empty mock oracle
func NewMockPriceOracle() *MockPriceOracle {
	return &MockPriceOracle{
		Current:    make(map[string]decimal.Decimal),
		Historical: make(map[string]decimal.Decimal),
	}
}

// SetHistorical registers a close price for ticker on date (YYYY-MM-DD).
func (m *MockPriceOracle) SetHistorical(ticker, date string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Historical[strings.ToUpper(ticker)+"|"+date] = price
}

func (m *MockPriceOracle) CurrentPrice(ctx context.Context, ticker, credential string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastCred = credential
	p, ok := m.Current[strings.ToUpper(ticker)]
	return p, ok
}

func (m *MockPriceOracle) HistoricalClose(ctx context.Context, ticker string, date time.Time, credential string) (decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastCred = credential
	p, ok := m.Historical[strings.ToUpper(ticker)+"|"+date.Format(models.DateLayout)]
	return p, ok
}

// MockSpreadsheet implements interfaces.SpreadsheetSync over an in-memory table per spreadsheet id.
type MockSpreadsheet struct {
	mu      sync.Mutex
	Sheets  map[string][]models.SheetRow
	ReadErr error
}

// NewMockSpreadsheet creates an empty mock spreadsheet store
func NewMockSpreadsheet() *MockSpreadsheet {
	return &MockSpreadsheet{Sheets: make(map[string][]models.SheetRow)}
}

func (m *MockSpreadsheet) ReadRows(ctx context.Context, credential, spreadsheetID string) ([]models.SheetRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if credential == "" {
		return nil, errors.New("missing credential")
	}
	rows := m.Sheets[spreadsheetID]
	return append([]models.SheetRow(nil), rows...), nil
}

func (m *MockSpreadsheet) WriteRow(ctx context.Context, credential, spreadsheetID string, row models.SheetRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if credential == "" {
		return errors.New("missing credential")
	}
	m.Sheets[spreadsheetID] = append(m.Sheets[spreadsheetID], row)
	return nil
}
