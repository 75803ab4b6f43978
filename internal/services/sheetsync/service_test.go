package sheetsync

import (
	"context"
	"errors"
	"testing"

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

type fixture struct {
	svc      *Service
	ledger   *ledger.Service
	accounts *account.Service
	sheets   *tcommon.MockSpreadsheet
	ctx      context.Context
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	store := memory.NewManager(logger)
	accounts := account.NewService(store, decimal.RequireFromString("1000"), logger)
	prices := pricing.NewService(tcommon.NewMockPriceOracle(), accounts, "", logger)
	led := ledger.NewService(store, accounts, prices, logger)
	sheets := tcommon.NewMockSpreadsheet()
	f := &fixture{
		svc:      NewService(sheets, accounts, led, logger),
		ledger:   led,
		accounts: accounts,
		sheets:   sheets,
		ctx:      common.WithUserID(context.Background(), 1),
	}
	if apiKey != "" {
		_, err := accounts.SetSheetsAPIKey(f.ctx, apiKey)
		require.NoError(t, err)
	}
	return f
}

func TestReadTransactions_SkipsHeader(t *testing.T) {
	f := newFixture(t, "key")
	f.sheets.Sheets["s1"] = []models.SheetRow{
		models.SheetRowFromValues(models.SheetHeader),
		{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: "250"},
	}

	rows, err := f.svc.ReadTransactions(f.ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SBER", rows[0].AssetName)
}

func TestReadTransactions_FallsBackToStoredID(t *testing.T) {
	f := newFixture(t, "key")
	id := "stored"
	_, err := f.accounts.UpdateSettings(f.ctx, models.UserSettings{GoogleSheetsSpreadsheetID: &id})
	require.NoError(t, err)
	f.sheets.Sheets["stored"] = []models.SheetRow{{AssetName: "GAZP", Date: "2024-01-10", Type: "Sell", Price: "1"}}

	rows, err := f.svc.ReadTransactions(f.ctx, "")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReadTransactions_Errors(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.svc.ReadTransactions(f.ctx, "s1")
	assert.True(t, errors.Is(err, common.ErrCredentialMissing))

	f = newFixture(t, "key")
	_, err = f.svc.ReadTransactions(f.ctx, " ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	f.sheets.ReadErr = common.ErrExternalUnavailable
	_, err = f.svc.ReadTransactions(f.ctx, "s1")
	assert.True(t, errors.Is(err, common.ErrExternalUnavailable))
}

func TestWriteTransaction_AppendsRow(t *testing.T) {
	f := newFixture(t, "key")
	d, _ := models.ParseDate("2024-02-01")
	p := decimal.RequireFromString("99.5")

	err := f.svc.WriteTransaction(f.ctx, "s1", models.TransactionInput{Date: d, Type: "sell", AssetName: " SBER ", Price: &p})
	require.NoError(t, err)
	assert.Equal(t, []models.SheetRow{{AssetName: "SBER", Date: "2024-02-01", Type: "Sell", Price: "99.5"}}, f.sheets.Sheets["s1"])

	u, err := f.accounts.GetSettings(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", u.Balance.String())
}

func TestWriteTransaction_Validation(t *testing.T) {
	f := newFixture(t, "key")
	d, _ := models.ParseDate("2024-02-01")

	err := f.svc.WriteTransaction(f.ctx, "s1", models.TransactionInput{Date: d, Type: "hold", AssetName: "SBER"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	err = f.svc.WriteTransaction(f.ctx, "s1", models.TransactionInput{Type: "Buy", AssetName: "SBER"})
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Empty(t, f.sheets.Sheets["s1"])
}

func TestImportTransactions(t *testing.T) {
	f := newFixture(t, "key")
	f.sheets.Sheets["s1"] = []models.SheetRow{
		models.SheetRowFromValues(models.SheetHeader),
		{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: "250"},
		{AssetName: "SBER", Date: "2024-01-11", Type: "Sell", Price: "100,5"},
		{AssetName: "GAZP", Date: "10.01.2024", Type: "Buy", Price: "1"},
		{AssetName: "GAZP", Date: "2024-01-12", Type: "Buy", Price: ""},
	}

	res, err := f.svc.ImportTransactions(f.ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "row 3")
	assert.Contains(t, res.Errors[1], "price is required")

	txs, err := f.ledger.ListTransactions(f.ctx, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	u, err := f.accounts.GetSettings(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "850.5", u.Balance.String())
}
