package valuation

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
	"github.com/nikitakreml/invest-track-app/internal/services/account"
	"github.com/nikitakreml/invest-track-app/internal/services/ledger"
	"github.com/nikitakreml/invest-track-app/internal/services/pricing"
	"github.com/nikitakreml/invest-track-app/internal/storage/memory"
	tcommon "github.com/nikitakreml/invest-track-app/tests/common"
)

var today = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	ledger   *ledger.Service
	accounts *account.Service
	oracle   *tcommon.MockPriceOracle
	ctx      context.Context
}

func newFixture(t *testing.T, initial, defaultKey string) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	store := memory.NewManager(logger)
	accounts := account.NewService(store, decimal.RequireFromString(initial), logger)
	oracle := tcommon.NewMockPriceOracle()
	prices := pricing.NewService(oracle, accounts, defaultKey, logger)
	return &fixture{
		svc:      NewService(store, accounts, prices, oracle, logger, WithClock(func() time.Time { return today })),
		ledger:   ledger.NewService(store, accounts, prices, logger),
		accounts: accounts,
		oracle:   oracle,
		ctx:      common.WithUserID(context.Background(), 1),
	}
}

func (f *fixture) add(t *testing.T, date, typ, price, ticker string, qty int64) {
	t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(t, err)
	p := decimal.RequireFromString(price)
	_, err = f.ledger.CreateTransaction(f.ctx, models.TransactionInput{
		Date: d, Type: typ, Price: &p, AssetName: ticker, Quantity: qty,
	})
	require.NoError(t, err)
}

func TestSummary_BuyThenSell(t *testing.T) {
	f := newFixture(t, "0", "")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)
	f.add(t, "2024-02-10", "Sell", "150", "SBER", 0)

	s, err := f.svc.Summary(f.ctx, models.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, "50", s.CurrentTotal.String())
	assert.Equal(t, "100", s.InitialInvestment.String())
	assert.Equal(t, "50", s.RateOfReturn.String())
	assert.Equal(t, msgSummaryOK, s.Message)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"all_time","current_total":50,"initial_investment":100,
		"rate_of_return":50,"message":"Portfolio summary calculated successfully."}`, string(raw))
}

func TestSummary_Rounding(t *testing.T) {
	f := newFixture(t, "0", "")
	f.add(t, "2024-01-10", "Buy", "300", "SBER", 0)
	f.add(t, "2024-01-11", "Sell", "100.555", "SBER", 0)

	s, err := f.svc.Summary(f.ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.PeriodAllTime, s.Period)
	assert.Equal(t, "-199.45", s.CurrentTotal.String())
	assert.Equal(t, "-66.48", s.RateOfReturn.String())
}

func TestSummary_NoPortfolios(t *testing.T) {
	f := newFixture(t, "0", "")

	s, err := f.svc.Summary(f.ctx, models.PeriodYear)
	require.NoError(t, err)
	assert.True(t, s.CurrentTotal.IsZero())
	assert.True(t, s.RateOfReturn.IsZero())
	assert.Equal(t, msgNoPortfolios, s.Message)
}

func TestSummary_EmptyWindow(t *testing.T) {
	f := newFixture(t, "0", "")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)

	s, err := f.svc.Summary(f.ctx, models.PeriodMonth)
	require.NoError(t, err)
	assert.True(t, s.CurrentTotal.IsZero())
	assert.True(t, s.InitialInvestment.IsZero())
	assert.True(t, s.RateOfReturn.IsZero())
	assert.Equal(t, msgNoTransactions, s.Message)
}

func TestSummary_PeriodWindows(t *testing.T) {
	f := newFixture(t, "0", "")
	f.add(t, "2023-05-01", "Buy", "1000", "OLD", 0)  // outside year
	f.add(t, "2024-01-15", "Buy", "100", "SBER", 0)  // inside year
	f.add(t, "2024-05-20", "Sell", "50", "SBER", 0)  // inside month
	f.add(t, "2024-06-09", "Sell", "10", "SBER", 0)  // inside day
	f.add(t, "2024-06-12", "Sell", "5", "FUTR", 0)   // future dated, kept by a lower-bound window

	tests := []struct {
		period  models.Period
		current string
		initial string
	}{
		{models.PeriodAllTime, "-1035", "1100"},
		{models.PeriodYear, "-35", "100"},
		{models.PeriodMonth, "65", "0"},
		{models.PeriodDay, "15", "0"},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			s, err := f.svc.Summary(f.ctx, tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.current, s.CurrentTotal.String())
			assert.Equal(t, tt.initial, s.InitialInvestment.String())
			if tt.initial == "0" {
				assert.True(t, s.RateOfReturn.IsZero())
			}
		})
	}
}

func TestComposition_NoCredentialIsCashOnly(t *testing.T) {
	f := newFixture(t, "1000", "")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)
	f.oracle.Current["SBER"] = decimal.RequireFromString("300")

	c, err := f.svc.Composition(f.ctx)
	require.NoError(t, err)
	require.Len(t, c.Composition, 1)
	assert.Equal(t, models.CashLabel, c.Composition[0].Label)
	assert.Equal(t, "900", c.Composition[0].Value.String())
	assert.True(t, c.TotalPortfolioValue.Equal(c.Composition[0].Value))
	assert.Equal(t, 0, f.oracle.Calls)
}

func TestComposition_ValuesHoldings(t *testing.T) {
	f := newFixture(t, "1000", "config-key")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)
	f.add(t, "2024-01-11", "Buy", "100", "SBER", 0)
	f.add(t, "2024-01-12", "Buy", "50", "GAZP", 3)
	f.add(t, "2024-01-13", "Buy", "10", "YNDX", 0)
	f.add(t, "2024-01-14", "Sell", "12", "YNDX", 0) // fully sold
	f.add(t, "2024-01-15", "Buy", "20", "LKOH", 0)
	f.oracle.Current["SBER"] = decimal.RequireFromString("300.5")
	f.oracle.Current["GAZP"] = decimal.RequireFromString("160")
	f.oracle.Current["YNDX"] = decimal.RequireFromString("999")

	c, err := f.svc.Composition(f.ctx)
	require.NoError(t, err)

	labels := make([]string, len(c.Composition))
	for i, e := range c.Composition {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{"GAZP", "LKOH (Price Unavailable)", "SBER", models.CashLabel}, labels)
	assert.Equal(t, "480", c.Composition[0].Value.String())
	assert.True(t, c.Composition[1].Value.IsZero())
	assert.Equal(t, "601", c.Composition[2].Value.String())

	balance := c.Composition[3].Value
	assert.Equal(t, "732", balance.String())
	assert.Equal(t, "1813", c.TotalPortfolioValue.String())
	assert.Equal(t, "config-key", f.oracle.LastCred)
}

func TestComposition_OnlyFirstPortfolio(t *testing.T) {
	f := newFixture(t, "0", "k")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)

	second, err := f.accounts.CreatePortfolio(f.ctx, "Second")
	require.NoError(t, err)
	p := decimal.RequireFromString("10")
	_, err = f.ledger.CreateTransaction(f.ctx, models.TransactionInput{
		Date: models.NewDate(today), Type: "Buy", Price: &p, AssetName: "GAZP", PortfolioID: second.ID,
	})
	require.NoError(t, err)
	f.oracle.Current["SBER"] = decimal.RequireFromString("1")
	f.oracle.Current["GAZP"] = decimal.RequireFromString("1")

	c, err := f.svc.Composition(f.ctx)
	require.NoError(t, err)
	require.Len(t, c.Composition, 2)
	assert.Equal(t, "SBER", c.Composition[0].Label)
}

func TestCompositionChart_RendersPNG(t *testing.T) {
	f := newFixture(t, "1000", "k")
	f.add(t, "2024-01-10", "Buy", "100", "SBER", 0)
	f.oracle.Current["SBER"] = decimal.RequireFromString("250")

	png, err := f.svc.CompositionChart(f.ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRenderCompositionChart_NothingPositive(t *testing.T) {
	png, err := RenderCompositionChart(&models.Composition{
		Composition: []models.CompositionEntry{{Label: models.CashLabel, Value: decimal.RequireFromString("-5")}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
