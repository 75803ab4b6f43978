package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
	"github.com/nikitakreml/invest-track-app/internal/services/account"
	"github.com/nikitakreml/invest-track-app/internal/services/pricing"
	"github.com/nikitakreml/invest-track-app/internal/storage/memory"
	tcommon "github.com/nikitakreml/invest-track-app/tests/common"
)

type fixture struct {
	svc      *Service
	accounts *account.Service
	store    *memory.Manager
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
		svc:      NewService(store, accounts, prices, logger),
		accounts: accounts,
		store:    store,
		oracle:   oracle,
		ctx:      common.WithUserID(context.Background(), 1),
	}
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	u, err := f.accounts.GetSettings(f.ctx)
	require.NoError(t, err)
	return u.Balance.String()
}

var testDay = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func input(t *testing.T, date, typ, p, asset string) models.TransactionInput {
	t.Helper()
	d, err := models.ParseDate(date)
	require.NoError(t, err)
	in := models.TransactionInput{Date: d, Type: typ, AssetName: asset}
	if p != "" {
		in.Price = price(p)
	}
	return in
}

func TestCreateTransaction_AdjustsBalanceAndDefaultsPortfolio(t *testing.T) {
	f := newFixture(t, "1000", "")

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "buy", "250", "sber"))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionBuy, tx.Type)
	assert.Equal(t, "SBER", tx.Asset.Ticker)
	assert.Equal(t, "sber", tx.Asset.Name)
	assert.Equal(t, int64(1), tx.Quantity)
	assert.Equal(t, "750", f.balance(t))

	portfolios, err := f.accounts.ListPortfolios(f.ctx)
	require.NoError(t, err)
	require.Len(t, portfolios, 1)
	assert.Equal(t, models.DefaultPortfolioName, portfolios[0].Name)
	assert.Equal(t, portfolios[0].ID, tx.PortfolioID)

	_, err = f.svc.CreateTransaction(f.ctx, input(t, "2024-01-11", "Sell", "300", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, "1050", f.balance(t))
}

func TestCreateTransaction_OneAssetPerTicker(t *testing.T) {
	f := newFixture(t, "0", "")

	in := input(t, "2024-01-10", "Buy", "1", "GAZP")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateTransaction(f.ctx, in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assets, err := f.svc.ListAssets(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "GAZP", assets[0].Ticker)
	assert.Equal(t, "-20", f.balance(t))
}

func TestUpdateTransaction_RoundTripReflectsFinalEffect(t *testing.T) {
	f := newFixture(t, "1000", "")

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "100", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, "900", f.balance(t))

	updated, err := f.svc.UpdateTransaction(f.ctx, tx.ID, input(t, "2024-01-12", "Sell", "200", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSell, updated.Type)
	assert.Equal(t, "2024-01-12", updated.Date.String())
	assert.Equal(t, "1200", f.balance(t))

	_, err = f.svc.UpdateTransaction(f.ctx, tx.ID, input(t, "2024-01-12", "Sell", "200", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, "1200", f.balance(t))
}

func TestUpdateTransaction_UnknownID(t *testing.T) {
	f := newFixture(t, "500", "")

	_, err := f.svc.UpdateTransaction(f.ctx, 999, input(t, "2024-01-10", "Buy", "10", "NEW"))
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, "500", f.balance(t))

	assets, err := f.svc.ListAssets(f.ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestDeleteTransaction(t *testing.T) {
	f := newFixture(t, "500", "")

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "120.5", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, "379.5", f.balance(t))

	err = f.svc.DeleteTransaction(f.ctx, 12345)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, "379.5", f.balance(t))

	require.NoError(t, f.svc.DeleteTransaction(f.ctx, tx.ID))
	assert.Equal(t, "500", f.balance(t))

	err = f.svc.DeleteTransaction(f.ctx, tx.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestCreateTransaction_Validation(t *testing.T) {
	f := newFixture(t, "100", "")

	tests := []struct {
		name string
		in   models.TransactionInput
	}{
		{"bad type", input(t, "2024-01-10", "Hold", "1", "SBER")},
		{"no asset", input(t, "2024-01-10", "Buy", "1", "  ")},
		{"no date", models.TransactionInput{Type: "Buy", AssetName: "SBER", Price: price("1")}},
		{"negative price", input(t, "2024-01-10", "Buy", "-1", "SBER")},
		{"negative quantity", models.TransactionInput{Date: models.NewDate(testDay), Type: "Buy", AssetName: "SBER", Price: price("1"), Quantity: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(f.ctx, tt.in)
			assert.True(t, errors.Is(err, common.ErrInvalidInput), "got %v", err)
		})
	}
	assert.Equal(t, "100", f.balance(t))
}

func TestCreateTransaction_UnknownPortfolio(t *testing.T) {
	f := newFixture(t, "100", "")

	in := input(t, "2024-01-10", "Buy", "1", "SBER")
	in.PortfolioID = 42
	_, err := f.svc.CreateTransaction(f.ctx, in)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestCreateTransaction_ExplicitPortfolio(t *testing.T) {
	f := newFixture(t, "100", "")

	p, err := f.accounts.CreatePortfolio(f.ctx, "Trading")
	require.NoError(t, err)

	in := input(t, "2024-01-10", "Buy", "10", "SBER")
	in.PortfolioID = p.ID
	tx, err := f.svc.CreateTransaction(f.ctx, in)
	require.NoError(t, err)
	assert.Equal(t, p.ID, tx.PortfolioID)
}

func TestCreateTransaction_AutoPrice(t *testing.T) {
	f := newFixture(t, "1000", "")
	token := "t.token"
	_, err := f.accounts.UpdateSettings(f.ctx, models.UserSettings{TinkoffInvestAPIToken: &token})
	require.NoError(t, err)
	f.oracle.SetHistorical("SBER", "2024-01-10", decimal.RequireFromString("270.5"))

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "", "SBER"))
	require.NoError(t, err)
	assert.Equal(t, "270.5", tx.Price.String())
	assert.Equal(t, "729.5", f.balance(t))

	zero := input(t, "2024-01-10", "Buy", "0", "SBER")
	tx, err = f.svc.CreateTransaction(f.ctx, zero)
	require.NoError(t, err)
	assert.Equal(t, "270.5", tx.Price.String())
}

func TestCreateTransaction_AutoPriceUnavailable(t *testing.T) {
	f := newFixture(t, "1000", "")
	token := "t.token"
	_, err := f.accounts.UpdateSettings(f.ctx, models.UserSettings{TinkoffInvestAPIToken: &token})
	require.NoError(t, err)

	_, err = f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "", "SBER"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Contains(t, err.Error(), "no historical price for SBER on 2024-01-10")

	assets, err := f.svc.ListAssets(f.ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestCreateTransaction_ZeroPriceWithoutCredential(t *testing.T) {
	f := newFixture(t, "1000", "")

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "0", "SBER"))
	require.NoError(t, err)
	assert.True(t, tx.Price.IsZero())
	assert.Equal(t, "1000", f.balance(t))
	assert.Equal(t, 0, f.oracle.Calls)

	_, err = f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "", "SBER"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Contains(t, err.Error(), "brokerage API token not set")
	assert.NotContains(t, err.Error(), "no historical price")
}

func TestCreateTransaction_ZeroPriceNoHistory(t *testing.T) {
	f := newFixture(t, "1000", "config-key")

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Sell", "0", "SBER"))
	require.NoError(t, err)
	assert.True(t, tx.Price.IsZero())
	assert.Equal(t, 1, f.oracle.Calls)
	assert.Equal(t, "1000", f.balance(t))
}

func TestCreateTransaction_AutoPriceDisabled(t *testing.T) {
	f := newFixture(t, "1000", "config-key")
	off := false
	_, err := f.accounts.UpdateSettings(f.ctx, models.UserSettings{AutoTransactionPriceEnabled: &off})
	require.NoError(t, err)
	f.oracle.SetHistorical("SBER", "2024-01-10", decimal.RequireFromString("270.5"))

	_, err = f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "", "SBER"))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Equal(t, 0, f.oracle.Calls)

	tx, err := f.svc.CreateTransaction(f.ctx, input(t, "2024-01-10", "Buy", "0", "SBER"))
	require.NoError(t, err)
	assert.True(t, tx.Price.IsZero())
}

func TestListTransactions_PaginationAndFilter(t *testing.T) {
	f := newFixture(t, "0", "")
	for _, d := range []string{"2024-01-01", "2024-02-01", "2024-03-01"} {
		_, err := f.svc.CreateTransaction(f.ctx, input(t, d, "Buy", "1", "SBER"))
		require.NoError(t, err)
	}

	all, err := f.svc.ListTransactions(f.ctx, models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Less(t, all[0].ID, all[1].ID)

	page, err := f.svc.ListTransactions(f.ctx, models.TransactionFilter{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	from, _ := models.ParseDate("2024-02-01")
	filtered, err := f.svc.ListTransactions(f.ctx, models.TransactionFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	to, _ := models.ParseDate("2024-01-15")
	_, err = f.svc.ListTransactions(f.ctx, models.TransactionFilter{From: &from, To: &to})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = f.svc.ListTransactions(f.ctx, models.TransactionFilter{Limit: -1})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}
