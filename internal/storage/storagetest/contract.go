// Package storagetest holds behavioural tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Factory returns a fresh, empty storage manager for one subtest.
type Factory func(t *testing.T) interfaces.StorageManager

// Run exercises the StorageManager contract against backends produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, m interfaces.StorageManager)
	}{
		{"EnsureUserIsIdempotent", testEnsureUserIsIdempotent},
		{"AssetFirstNameWins", testAssetFirstNameWins},
		{"DefaultPortfolioCreatedOnce", testDefaultPortfolioCreatedOnce},
		{"CreateAdjustsBalance", testCreateAdjustsBalance},
		{"UpdateReflectsOnlyFinalEffect", testUpdateReflectsOnlyFinalEffect},
		{"DeleteRestoresBalance", testDeleteRestoresBalance},
		{"MissingTransactionLeavesBalance", testMissingTransactionLeavesBalance},
		{"CashAdjustmentsSurviveEdits", testCashAdjustmentsSurviveEdits},
		{"SettingsBalanceOverride", testSettingsBalanceOverride},
		{"ListOrderingAndFilter", testListOrderingAndFilter},
		{"UsersAreIsolated", testUsersAreIsolated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStore(t)
			tt.fn(t, m)
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func assertBalance(t *testing.T, m interfaces.StorageManager, userID int64, want string) {
	t.Helper()
	u, err := m.UserStore().GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(dec(want)), "balance = %s, want %s", u.Balance, want)
}

type fixture struct {
	userID    int64
	portfolio *models.Portfolio
	asset     *models.Asset
}

func setup(t *testing.T, m interfaces.StorageManager, userID int64, initial string) fixture {
	t.Helper()
	ctx := context.Background()
	_, err := m.UserStore().EnsureUser(ctx, userID, dec(initial))
	require.NoError(t, err)
	p, err := m.PortfolioStore().DefaultPortfolio(ctx, userID)
	require.NoError(t, err)
	a, err := m.AssetStore().ResolveOrCreate(ctx, "SBER", "Sberbank")
	require.NoError(t, err)
	return fixture{userID: userID, portfolio: p, asset: a}
}

func (f fixture) record(t *testing.T, typ models.TransactionType, price, day string) models.TransactionRecord {
	return models.TransactionRecord{
		Date:        date(t, day),
		Type:        typ,
		Price:       dec(price),
		Quantity:    1,
		AssetID:     f.asset.ID,
		PortfolioID: f.portfolio.ID,
	}
}

func testEnsureUserIsIdempotent(t *testing.T, m interfaces.StorageManager) {
	ctx := context.Background()
	u, err := m.UserStore().EnsureUser(ctx, 1, dec("1000"))
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(dec("1000")))
	assert.True(t, u.AutoTransactionPriceEnabled)

	u, err = m.UserStore().EnsureUser(ctx, 1, dec("5"))
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(dec("1000")), "second call must not reseed")

	_, err = m.UserStore().GetUser(ctx, 99)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func testAssetFirstNameWins(t *testing.T, m interfaces.StorageManager) {
	ctx := context.Background()
	a1, err := m.AssetStore().ResolveOrCreate(ctx, "GAZP", "Gazprom")
	require.NoError(t, err)
	a2, err := m.AssetStore().ResolveOrCreate(ctx, "GAZP", "Other name")
	require.NoError(t, err)

	assert.Equal(t, a1.ID, a2.ID)
	assert.Equal(t, "Gazprom", a2.Name)

	list, err := m.AssetStore().ListAssets(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := m.AssetStore().GetAssetByTicker(ctx, "GAZP")
	require.NoError(t, err)
	assert.Equal(t, a1.ID, got.ID)

	_, err = m.AssetStore().GetAssetByTicker(ctx, "NOPE")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func testDefaultPortfolioCreatedOnce(t *testing.T, m interfaces.StorageManager) {
	ctx := context.Background()
	_, err := m.UserStore().EnsureUser(ctx, 1, decimal.Zero)
	require.NoError(t, err)

	p1, err := m.PortfolioStore().DefaultPortfolio(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPortfolioName, p1.Name)

	p2, err := m.PortfolioStore().DefaultPortfolio(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	_, err = m.PortfolioStore().CreatePortfolio(ctx, 1, "Second")
	require.NoError(t, err)
	list, err := m.PortfolioStore().ListPortfolios(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, p1.ID, list[0].ID, "first portfolio stays the default")
}

func testCreateAdjustsBalance(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "1000")
	ctx := context.Background()

	buy, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "100", "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "SBER", buy.Asset.Ticker)
	assertBalance(t, m, f.userID, "900")

	_, err = m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionSell, "150", "2024-01-02"))
	require.NoError(t, err)
	assertBalance(t, m, f.userID, "1050")
}

func testUpdateReflectsOnlyFinalEffect(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "1000")
	ctx := context.Background()

	tx, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "100", "2024-01-01"))
	require.NoError(t, err)

	// Several edits; only the last one may count.
	for _, step := range []struct {
		typ   models.TransactionType
		price string
	}{
		{models.TransactionSell, "40"},
		{models.TransactionBuy, "75.5"},
		{models.TransactionSell, "200"},
	} {
		_, err = m.LedgerStore().UpdateTransaction(ctx, f.userID, tx.ID, f.record(t, step.typ, step.price, "2024-01-03"))
		require.NoError(t, err)
	}
	assertBalance(t, m, f.userID, "1200")

	got, err := m.LedgerStore().GetTransaction(ctx, f.userID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionSell, got.Type)
	assert.Equal(t, "2024-01-03", got.Date.String())
}

func testDeleteRestoresBalance(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "500")
	ctx := context.Background()

	tx, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "120.25", "2024-01-01"))
	require.NoError(t, err)
	assertBalance(t, m, f.userID, "379.75")

	require.NoError(t, m.LedgerStore().DeleteTransaction(ctx, f.userID, tx.ID))
	assertBalance(t, m, f.userID, "500")

	_, err = m.LedgerStore().GetTransaction(ctx, f.userID, tx.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func testMissingTransactionLeavesBalance(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "300")
	ctx := context.Background()
	_, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "100", "2024-01-01"))
	require.NoError(t, err)

	err = m.LedgerStore().DeleteTransaction(ctx, f.userID, 424242)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = m.LedgerStore().UpdateTransaction(ctx, f.userID, 424242, f.record(t, models.TransactionSell, "999", "2024-01-01"))
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assertBalance(t, m, f.userID, "200")
}

func testCashAdjustmentsSurviveEdits(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "0")
	ctx := context.Background()

	_, err := m.UserStore().AdjustCash(ctx, f.userID, dec("1000"))
	require.NoError(t, err)
	tx, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "300", "2024-01-01"))
	require.NoError(t, err)
	_, err = m.UserStore().AdjustCash(ctx, f.userID, dec("-50"))
	require.NoError(t, err)
	_, err = m.LedgerStore().UpdateTransaction(ctx, f.userID, tx.ID, f.record(t, models.TransactionBuy, "100", "2024-01-01"))
	require.NoError(t, err)

	// 0 + 1000 - 50 - 100
	assertBalance(t, m, f.userID, "850")
}

func testSettingsBalanceOverride(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "100")
	ctx := context.Background()

	tx, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "40", "2024-01-01"))
	require.NoError(t, err)

	target := dec("1000")
	key := "sheet-key"
	u, err := m.UserStore().UpdateSettings(ctx, f.userID, models.UserSettings{Balance: &target, GoogleSheetsAPIKey: &key})
	require.NoError(t, err)
	assert.True(t, u.Balance.Equal(target))
	assert.Equal(t, "sheet-key", u.GoogleSheetsAPIKey)

	// Later edits keep working relative to the overridden balance.
	require.NoError(t, m.LedgerStore().DeleteTransaction(ctx, f.userID, tx.ID))
	assertBalance(t, m, f.userID, "1040")

	_, err = m.UserStore().UpdateSettings(ctx, 77, models.UserSettings{})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func testListOrderingAndFilter(t *testing.T, m interfaces.StorageManager) {
	f := setup(t, m, 1, "0")
	ctx := context.Background()

	days := []string{"2024-03-01", "2024-01-01", "2024-02-01"}
	var ids []int64
	for _, d := range days {
		tx, err := m.LedgerStore().CreateTransaction(ctx, f.userID, f.record(t, models.TransactionBuy, "1", d))
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}

	all, err := m.LedgerStore().ListTransactions(ctx, f.userID, models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := range ids {
		assert.Equal(t, ids[i], all[i].ID, "insertion order")
		assert.Equal(t, "SBER", all[i].Asset.Ticker)
	}

	page, err := m.LedgerStore().ListTransactions(ctx, f.userID, models.TransactionFilter{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	from := date(t, "2024-02-01")
	recent, err := m.LedgerStore().ListTransactions(ctx, f.userID, models.TransactionFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func testUsersAreIsolated(t *testing.T, m interfaces.StorageManager) {
	ctx := context.Background()
	f1 := setup(t, m, 1, "100")
	f2 := setup(t, m, 2, "100")
	assert.NotEqual(t, f1.portfolio.ID, f2.portfolio.ID)
	assert.Equal(t, f1.asset.ID, f2.asset.ID, "assets are shared")

	tx, err := m.LedgerStore().CreateTransaction(ctx, f1.userID, f1.record(t, models.TransactionBuy, "10", "2024-01-01"))
	require.NoError(t, err)

	err = m.LedgerStore().DeleteTransaction(ctx, f2.userID, tx.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound), "other users cannot touch the transaction")

	list, err := m.LedgerStore().ListTransactions(ctx, f2.userID, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	assertBalance(t, m, f1.userID, "90")
	assertBalance(t, m, f2.userID, "100")

	_, err = m.LedgerStore().CreateTransaction(ctx, f2.userID, f1.record(t, models.TransactionBuy, "1", "2024-01-01"))
	assert.True(t, errors.Is(err, common.ErrNotFound), "portfolio of another user")
}
