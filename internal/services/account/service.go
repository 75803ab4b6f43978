// Package account manages the acting user's record, settings, cash and portfolios
package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Compile-time interface check
var _ interfaces.AccountService = (*Service)(nil)

// Service implements AccountService
type Service struct {
	storage        interfaces.StorageManager
	initialBalance decimal.Decimal
	logger         *common.Logger
}

// NewService creates a new account service. Users created lazily start
// with initialBalance in cash.
func NewService(storage interfaces.StorageManager, initialBalance decimal.Decimal, logger *common.Logger) *Service {
	return &Service{
		storage:        storage,
		initialBalance: initialBalance,
		logger:         logger,
	}
}

// EnsureUser returns the user, creating it on first access.
func (s *Service) EnsureUser(ctx context.Context, userID int64) (*models.User, error) {
	if userID <= 0 {
		return nil, common.ErrUnauthorized
	}
	return s.storage.UserStore().EnsureUser(ctx, userID, s.initialBalance)
}

// GetSettings returns the acting user.
func (s *Service) GetSettings(ctx context.Context) (*models.User, error) {
	userID, err := common.ResolveUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.EnsureUser(ctx, userID)
}

func (s *Service) UpdateSettings(ctx context.Context, settings models.UserSettings) (*models.User, error) {
	u, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.storage.UserStore().UpdateSettings(ctx, u.ID, settings)
	if err != nil {
		return nil, err
	}
	if settings.Balance != nil {
		s.logger.Info().Int64("user_id", u.ID).Str("balance", updated.Balance.String()).Msg("Balance overridden")
	}
	return updated, nil
}

// SetSheetsAPIKey stores the user's spreadsheet API key.
func (s *Service) SetSheetsAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api_key is required", common.ErrInvalidInput)
	}
	return s.UpdateSettings(ctx, models.UserSettings{GoogleSheetsAPIKey: &apiKey})
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", common.ErrInvalidInput)
	}
	return nil
}

// TopUp adds cash to the balance.
func (s *Service) TopUp(ctx context.Context, amount decimal.Decimal) (*models.User, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	u, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.storage.UserStore().AdjustCash(ctx, u.ID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("amount", amount.String()).Msg("Balance topped up")
	return updated, nil
}

// Withdraw removes cash from the balance. The balance may go negative.
func (s *Service) Withdraw(ctx context.Context, amount decimal.Decimal) (*models.User, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	u, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.storage.UserStore().AdjustCash(ctx, u.ID, amount.Neg())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", u.ID).Str("amount", amount.String()).Msg("Balance withdrawn")
	return updated, nil
}

func (s *Service) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	u, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.PortfolioStore().ListPortfolios(ctx, u.ID)
}

func (s *Service) CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: portfolio name is required", common.ErrInvalidInput)
	}
	u, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return s.storage.PortfolioStore().CreatePortfolio(ctx, u.ID, name)
}
