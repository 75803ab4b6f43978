package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// All service operations act on the user carried by common.UserContext.

// LedgerService records Buy/Sell transactions
type LedgerService interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, txID int64, in models.TransactionInput) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, txID int64) error
	ListAssets(ctx context.Context, skip, limit int) ([]models.Asset, error)
}

// AccountService manages the user record, settings and cash
type AccountService interface {
	EnsureUser(ctx context.Context, userID int64) (*models.User, error)
	GetSettings(ctx context.Context) (*models.User, error)
	UpdateSettings(ctx context.Context, settings models.UserSettings) (*models.User, error)
	SetSheetsAPIKey(ctx context.Context, apiKey string) (*models.User, error)
	TopUp(ctx context.Context, amount decimal.Decimal) (*models.User, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (*models.User, error)
	ListPortfolios(ctx context.Context) ([]models.Portfolio, error)
	CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error)
}

// ValuationService derives summaries and composition from the ledger
type ValuationService interface {
	Summary(ctx context.Context, period models.Period) (*models.Summary, error)
	Composition(ctx context.Context) (*models.Composition, error)
	// CompositionChart renders the composition as a PNG pie chart.
	CompositionChart(ctx context.Context) ([]byte, error)
}

// PricingService answers price lookups for a user
type PricingService interface {
	EstimatePrice(ctx context.Context, ticker string, date time.Time) (*models.PriceEstimate, error)
	// Credential returns the price oracle credential for u, or "" when none is configured.
	Credential(u *models.User) string
}

// SheetSyncService moves transactions between the ledger and a spreadsheet
type SheetSyncService interface {
	ReadTransactions(ctx context.Context, spreadsheetID string) ([]models.SheetRow, error)
	WriteTransaction(ctx context.Context, spreadsheetID string, in models.TransactionInput) error
	ImportTransactions(ctx context.Context, spreadsheetID string) (*models.ImportResult, error)
}
