// Package ledger records Buy/Sell transactions for the acting user
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Compile-time interface check
var _ interfaces.LedgerService = (*Service)(nil)

// Service implements LedgerService
type Service struct {
	storage  interfaces.StorageManager
	accounts interfaces.AccountService
	pricing  interfaces.PricingService
	logger   *common.Logger
}

// NewService creates a new ledger service
func NewService(storage interfaces.StorageManager, accounts interfaces.AccountService, pricing interfaces.PricingService, logger *common.Logger) *Service {
	return &Service{
		storage:  storage,
		accounts: accounts,
		pricing:  pricing,
		logger:   logger,
	}
}

func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Skip < 0 || filter.Limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must not be negative", common.ErrInvalidInput)
	}
	if filter.From != nil && filter.To != nil && filter.From.After(filter.To.Time) {
		return nil, fmt.Errorf("%w: from is after to", common.ErrInvalidInput)
	}
	return s.storage.LedgerStore().ListTransactions(ctx, u.ID, filter)
}

func (s *Service) CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error) {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.resolve(ctx, u, in)
	if err != nil {
		return nil, err
	}

	tx, err := s.storage.LedgerStore().CreateTransaction(ctx, u.ID, rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Int64("transaction_id", tx.ID).
		Str("ticker", tx.Asset.Ticker).Str("type", string(tx.Type)).Str("price", tx.Price.String()).
		Msg("Transaction recorded")
	return tx, nil
}

// UpdateTransaction replaces the transaction. Its previous cash effect is
// reversed and the new one applied in the same store operation.
func (s *Service) UpdateTransaction(ctx context.Context, txID int64, in models.TransactionInput) (*models.Transaction, error) {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	// Check existence first so an unknown id never registers an asset or
	// triggers a price lookup.
	if _, err := s.storage.LedgerStore().GetTransaction(ctx, u.ID, txID); err != nil {
		return nil, err
	}
	rec, err := s.resolve(ctx, u, in)
	if err != nil {
		return nil, err
	}

	tx, err := s.storage.LedgerStore().UpdateTransaction(ctx, u.ID, txID, rec)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Int64("transaction_id", txID).Msg("Transaction updated")
	return tx, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, txID int64) error {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return err
	}
	if err := s.storage.LedgerStore().DeleteTransaction(ctx, u.ID, txID); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", u.ID).Int64("transaction_id", txID).Msg("Transaction deleted")
	return nil
}

func (s *Service) ListAssets(ctx context.Context, skip, limit int) ([]models.Asset, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip and limit must not be negative", common.ErrInvalidInput)
	}
	return s.storage.AssetStore().ListAssets(ctx, skip, limit)
}

// resolve validates the payload and turns it into a store record: the asset
// is registered by ticker, the portfolio defaulted and a missing price
// looked up when the user allows it.
func (s *Service) resolve(ctx context.Context, u *models.User, in models.TransactionInput) (models.TransactionRecord, error) {
	typ, err := models.ParseTransactionType(in.Type)
	if err != nil {
		return models.TransactionRecord{}, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	ticker := strings.TrimSpace(in.AssetName)
	if ticker == "" {
		return models.TransactionRecord{}, fmt.Errorf("%w: asset_name is required", common.ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return models.TransactionRecord{}, fmt.Errorf("%w: date is required", common.ErrInvalidInput)
	}
	if in.Quantity < 0 {
		return models.TransactionRecord{}, fmt.Errorf("%w: quantity must be positive", common.ErrInvalidInput)
	}
	if in.Price != nil && in.Price.IsNegative() {
		return models.TransactionRecord{}, fmt.Errorf("%w: price must not be negative", common.ErrInvalidInput)
	}

	// Resolve the portfolio before registering the asset so a bad
	// portfolio_id leaves the registry untouched.
	var portfolio *models.Portfolio
	if in.PortfolioID > 0 {
		portfolio, err = s.storage.PortfolioStore().GetPortfolio(ctx, u.ID, in.PortfolioID)
	} else {
		portfolio, err = s.storage.PortfolioStore().DefaultPortfolio(ctx, u.ID)
	}
	if err != nil {
		return models.TransactionRecord{}, err
	}

	rec := models.TransactionRecord{
		Date:        in.Date,
		Type:        typ,
		Quantity:    in.Quantity,
		PortfolioID: portfolio.ID,
	}
	if rec.Quantity == 0 {
		rec.Quantity = 1
	}

	// A zero price counts as omitted only when automatic pricing is on,
	// and stays zero when no price can be found.
	switch {
	case in.Price != nil && (!in.Price.IsZero() || !u.AutoTransactionPriceEnabled):
		rec.Price = *in.Price
	default:
		price, err := s.autoPrice(ctx, u, ticker, in.Date)
		switch {
		case err == nil:
			rec.Price = price
		case in.Price != nil && errors.Is(err, common.ErrInvalidInput):
			rec.Price = *in.Price
		default:
			return models.TransactionRecord{}, err
		}
	}

	asset, err := s.storage.AssetStore().ResolveOrCreate(ctx, ticker, ticker)
	if err != nil {
		return models.TransactionRecord{}, err
	}
	rec.AssetID = asset.ID
	return rec, nil
}

func (s *Service) autoPrice(ctx context.Context, u *models.User, ticker string, date models.Date) (decimal.Decimal, error) {
	if !u.AutoTransactionPriceEnabled || s.pricing == nil {
		return decimal.Zero, fmt.Errorf("%w: price is required", common.ErrInvalidInput)
	}
	est, err := s.pricing.EstimatePrice(ctx, ticker, date.Time)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrCredentialMissing):
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("Automatic price skipped")
		return decimal.Zero, fmt.Errorf("%w: price is required (brokerage API token not set)", common.ErrInvalidInput)
	case errors.Is(err, common.ErrNotFound):
		s.logger.Debug().Str("ticker", ticker).Str("date", date.String()).Err(err).Msg("Automatic price unavailable")
		return decimal.Zero, fmt.Errorf("%w: price is required (no historical price for %s on %s)",
			common.ErrInvalidInput, strings.ToUpper(ticker), date)
	default:
		return decimal.Zero, err
	}
	s.logger.Debug().Str("ticker", est.Ticker).Str("price", est.Price.String()).Msg("Transaction price filled from oracle")
	return est.Price, nil
}
