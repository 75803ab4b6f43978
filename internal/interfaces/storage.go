// Package interfaces defines service contracts for invest-track
package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// StorageManager coordinates the stores of one storage backend
type StorageManager interface {
	UserStore() UserStore
	PortfolioStore() PortfolioStore
	AssetStore() AssetStore
	LedgerStore() LedgerStore

	// Lifecycle
	Close() error
}

// UserStore manages users and their cash.
//
// A user's balance is always CashBase plus the signed effects of the user's
// current transactions. Implementations keep the stored balance consistent
// with that rule inside each mutation.
type UserStore interface {
	// EnsureUser returns the user, creating it with the given initial cash when absent.
	EnsureUser(ctx context.Context, userID int64, initial decimal.Decimal) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// UpdateSettings applies a partial settings update. A non-nil Balance moves
	// the cash base so the resulting balance equals the requested value.
	UpdateSettings(ctx context.Context, userID int64, settings models.UserSettings) (*models.User, error)
	// AdjustCash atomically adds delta to both the cash base and the balance.
	AdjustCash(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error)
}

// PortfolioStore manages named portfolios per user.
type PortfolioStore interface {
	// ListPortfolios returns the user's portfolios ordered by id.
	ListPortfolios(ctx context.Context, userID int64) ([]models.Portfolio, error)
	GetPortfolio(ctx context.Context, userID, portfolioID int64) (*models.Portfolio, error)
	CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error)
	// DefaultPortfolio returns the user's first portfolio, creating
	// "Default Portfolio" when the user has none.
	DefaultPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error)
}

// AssetStore is the append-only ticker registry.
type AssetStore interface {
	// ResolveOrCreate returns the asset registered under ticker, or registers
	// it with the given name. The first registered name is kept.
	ResolveOrCreate(ctx context.Context, ticker, name string) (*models.Asset, error)
	GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error)
	ListAssets(ctx context.Context, skip, limit int) ([]models.Asset, error)
}

// LedgerStore persists transactions. Every mutation recomputes the owning
// user's balance in the same atomic unit as the ledger change.
type LedgerStore interface {
	// ListTransactions returns the user's transactions ordered by id.
	ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, userID, txID int64) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, userID int64, rec models.TransactionRecord) (*models.Transaction, error)
	// UpdateTransaction returns common.ErrNotFound, leaving the balance untouched, when txID is absent.
	UpdateTransaction(ctx context.Context, userID, txID int64, rec models.TransactionRecord) (*models.Transaction, error)
	// DeleteTransaction returns common.ErrNotFound, leaving the balance untouched, when txID is absent.
	DeleteTransaction(ctx context.Context, userID, txID int64) error
}
