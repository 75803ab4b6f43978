// Package valuation derives performance summaries and holdings composition
// from the ledger and the price oracle.
package valuation

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Compile-time interface check
var _ interfaces.ValuationService = (*Service)(nil)

const (
	msgNoPortfolios   = "No portfolios found for user."
	msgNoTransactions = "No transactions found for the selected period."
	msgSummaryOK      = "Portfolio summary calculated successfully."
	msgCashOnly       = "Price API token not set; showing cash balance only."
	msgNoHoldings     = "No holdings found; showing cash balance only."
	msgCompositionOK  = "Portfolio composition calculated successfully."
)

var hundred = decimal.NewFromInt(100)

// Service implements ValuationService
type Service struct {
	storage  interfaces.StorageManager
	accounts interfaces.AccountService
	pricing  interfaces.PricingService
	oracle   interfaces.PriceOracle
	logger   *common.Logger
	now      func() time.Time
}

// Option configures the service
type Option func(*Service)

// WithClock overrides the time source for period windows
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new valuation service
func NewService(storage interfaces.StorageManager, accounts interfaces.AccountService, pricing interfaces.PricingService,
	oracle interfaces.PriceOracle, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		storage:  storage,
		accounts: accounts,
		pricing:  pricing,
		oracle:   oracle,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary computes net cash flow and rate of return over the period across
// all of the user's portfolios.
func (s *Service) Summary(ctx context.Context, period models.Period) (*models.Summary, error) {
	if period == "" {
		period = models.PeriodAllTime
	}
	out := &models.Summary{
		Period:            period,
		CurrentTotal:      decimal.Zero,
		InitialInvestment: decimal.Zero,
		RateOfReturn:      decimal.Zero,
	}

	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	portfolios, err := s.storage.PortfolioStore().ListPortfolios(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		out.Message = msgNoPortfolios
		return out, nil
	}

	var filter models.TransactionFilter
	if days := period.LookbackDays(); days > 0 {
		from := models.NewDate(s.now().AddDate(0, 0, -days))
		filter.From = &from
	}

	txs, err := s.storage.LedgerStore().ListTransactions(ctx, u.ID, filter)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		out.Message = msgNoTransactions
		return out, nil
	}

	sells, buys := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Type == models.TransactionSell {
			sells = sells.Add(tx.Price)
		} else {
			buys = buys.Add(tx.Price)
		}
	}

	current := sells.Sub(buys)
	out.CurrentTotal = current.Round(2)
	out.InitialInvestment = buys.Round(2)
	if buys.IsPositive() {
		out.RateOfReturn = current.Div(buys).Mul(hundred).Round(2)
	}
	out.Message = msgSummaryOK

	s.logger.Debug().Int64("user_id", u.ID).Str("period", string(period)).Int("transactions", len(txs)).
		Str("current_total", out.CurrentTotal.String()).Msg("Summary computed")
	return out, nil
}

// Composition values the holdings of the user's first portfolio at current
// prices and appends the cash balance as the last entry.
func (s *Service) Composition(ctx context.Context) (*models.Composition, error) {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	cash := models.CompositionEntry{Label: models.CashLabel, Value: u.Balance}
	cashOnly := func(msg string) *models.Composition {
		return &models.Composition{
			Composition:         []models.CompositionEntry{cash},
			TotalPortfolioValue: u.Balance,
			Message:             msg,
		}
	}

	credential := s.pricing.Credential(u)
	if credential == "" {
		return cashOnly(msgCashOnly), nil
	}

	portfolios, err := s.storage.PortfolioStore().ListPortfolios(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if len(portfolios) == 0 {
		return cashOnly(msgNoHoldings), nil
	}
	first := portfolios[0]

	txs, err := s.storage.LedgerStore().ListTransactions(ctx, u.ID, models.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	holdings := make(map[string]int64)
	for _, tx := range txs {
		if tx.PortfolioID != first.ID {
			continue
		}
		holdings[tx.Asset.Ticker] += tx.Units()
	}

	tickers := make([]string, 0, len(holdings))
	for ticker, units := range holdings {
		if units > 0 {
			tickers = append(tickers, ticker)
		}
	}
	sort.Strings(tickers)

	out := &models.Composition{Message: msgCompositionOK}
	total := decimal.Zero
	for _, ticker := range tickers {
		units := holdings[ticker]
		price, ok := s.oracle.CurrentPrice(ctx, ticker, credential)
		if !ok {
			s.logger.Warn().Str("ticker", ticker).Msg("Current price unavailable")
			out.Composition = append(out.Composition, models.CompositionEntry{
				Label: ticker + models.PriceUnavailableSuffix,
				Value: decimal.Zero,
			})
			continue
		}
		value := price.Mul(decimal.NewFromInt(units)).Round(2)
		total = total.Add(value)
		out.Composition = append(out.Composition, models.CompositionEntry{Label: ticker, Value: value})
	}

	if len(tickers) == 0 {
		out.Message = msgNoHoldings
	}
	out.Composition = append(out.Composition, cash)
	out.TotalPortfolioValue = total.Add(u.Balance)
	return out, nil
}
