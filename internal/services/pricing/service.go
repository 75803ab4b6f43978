// Package pricing answers price lookups against the configured price oracle
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Compile-time interface check
var _ interfaces.PricingService = (*Service)(nil)

// Service implements PricingService
type Service struct {
	oracle     interfaces.PriceOracle
	accounts   interfaces.AccountService
	defaultKey string
	userTokens bool
	logger     *common.Logger
}

// Option configures the service
type Option func(*Service)

// WithUserTokens controls whether a user's brokerage token is sent to the
// oracle. Only the brokerage's own price API understands it; other
// providers must be called with the configured key.
func WithUserTokens(enabled bool) Option {
	return func(s *Service) {
		s.userTokens = enabled
	}
}

// NewService creates a new pricing service. defaultKey is the oracle
// credential used for users without a token of their own.
func NewService(oracle interfaces.PriceOracle, accounts interfaces.AccountService, defaultKey string, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		oracle:     oracle,
		accounts:   accounts,
		defaultKey: defaultKey,
		userTokens: true,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credential prefers the user's brokerage token over the configured key
// when the oracle accepts user tokens.
func (s *Service) Credential(u *models.User) string {
	if s.userTokens && u != nil && strings.TrimSpace(u.TinkoffInvestAPIToken) != "" {
		return strings.TrimSpace(u.TinkoffInvestAPIToken)
	}
	return s.defaultKey
}

// EstimatePrice returns the historical close of ticker on date. An absent
// price is reported as common.ErrNotFound.
func (s *Service) EstimatePrice(ctx context.Context, ticker string, date time.Time) (*models.PriceEstimate, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", common.ErrInvalidInput)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: target_date is required", common.ErrInvalidInput)
	}

	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	credential := s.Credential(u)
	if credential == "" {
		return nil, fmt.Errorf("%w: brokerage API token not set", common.ErrCredentialMissing)
	}

	day := models.NewDate(date)
	price, ok := s.oracle.HistoricalClose(ctx, ticker, day.Time, credential)
	if !ok {
		s.logger.Debug().Str("ticker", ticker).Str("date", day.String()).Msg("No historical price")
		return nil, fmt.Errorf("price for %s on %s: %w", ticker, day, common.ErrNotFound)
	}

	return &models.PriceEstimate{Ticker: ticker, Date: day, Price: price}, nil
}
