// Package memory implements interfaces.StorageManager in process memory.
// It backs development mode and service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Manager holds every table behind one mutex, so a ledger change and the
// balance it implies are applied as a single step.
type Manager struct {
	mu     sync.Mutex
	logger *common.Logger

	users        map[int64]*models.User
	portfolios   map[int64]*models.Portfolio
	assets       map[int64]*models.Asset
	assetTickers map[string]int64
	transactions map[int64]*models.Transaction

	nextPortfolioID int64
	nextAssetID     int64
	nextTxID        int64
}

// NewManager creates an empty in-memory store.
func NewManager(logger *common.Logger) *Manager {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Manager{
		logger:       logger,
		users:        make(map[int64]*models.User),
		portfolios:   make(map[int64]*models.Portfolio),
		assets:       make(map[int64]*models.Asset),
		assetTickers: make(map[string]int64),
		transactions: make(map[int64]*models.Transaction),
	}
}

var _ interfaces.StorageManager = (*Manager)(nil)

func (m *Manager) UserStore() interfaces.UserStore           { return m }
func (m *Manager) PortfolioStore() interfaces.PortfolioStore { return m }
func (m *Manager) AssetStore() interfaces.AssetStore         { return m }
func (m *Manager) LedgerStore() interfaces.LedgerStore       { return m }

// Close is a no-op.
func (m *Manager) Close() error { return nil }

// --- users ---

func (m *Manager) EnsureUser(_ context.Context, userID int64, initial decimal.Decimal) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		u = &models.User{
			ID:                          userID,
			CashBase:                    initial,
			Balance:                     initial,
			AutoTransactionPriceEnabled: true,
		}
		m.users[userID] = u
		m.logger.Debug().Int64("user_id", userID).Msg("Created user")
	}
	cp := *u
	return &cp, nil
}

func (m *Manager) GetUser(_ context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *Manager) UpdateSettings(_ context.Context, userID int64, settings models.UserSettings) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}
	settings.Apply(u)
	if settings.Balance != nil {
		u.CashBase = u.CashBase.Add(settings.Balance.Sub(u.Balance))
		u.Balance = m.deriveBalanceLocked(u)
	}
	cp := *u
	return &cp, nil
}

func (m *Manager) AdjustCash(_ context.Context, userID int64, delta decimal.Decimal) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}
	u.CashBase = u.CashBase.Add(delta)
	u.Balance = m.deriveBalanceLocked(u)
	cp := *u
	return &cp, nil
}

// deriveBalanceLocked recomputes the user's balance. Caller holds m.mu.
func (m *Manager) deriveBalanceLocked(u *models.User) decimal.Decimal {
	var txs []models.Transaction
	for _, tx := range m.transactions {
		if p, ok := m.portfolios[tx.PortfolioID]; ok && p.OwnerID == u.ID {
			txs = append(txs, *tx)
		}
	}
	return models.DeriveBalance(u.CashBase, txs)
}

// --- portfolios ---

func (m *Manager) ListPortfolios(_ context.Context, userID int64) ([]models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listPortfoliosLocked(userID), nil
}

func (m *Manager) listPortfoliosLocked(userID int64) []models.Portfolio {
	out := []models.Portfolio{}
	for _, p := range m.portfolios {
		if p.OwnerID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) GetPortfolio(_ context.Context, userID, portfolioID int64) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.portfolios[portfolioID]
	if !ok || p.OwnerID != userID {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, common.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *Manager) CreatePortfolio(_ context.Context, userID int64, name string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createPortfolioLocked(userID, name), nil
}

func (m *Manager) createPortfolioLocked(userID int64, name string) *models.Portfolio {
	m.nextPortfolioID++
	p := &models.Portfolio{ID: m.nextPortfolioID, Name: name, OwnerID: userID}
	m.portfolios[p.ID] = p
	cp := *p
	return &cp
}

func (m *Manager) DefaultPortfolio(_ context.Context, userID int64) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if list := m.listPortfoliosLocked(userID); len(list) > 0 {
		return &list[0], nil
	}
	return m.createPortfolioLocked(userID, models.DefaultPortfolioName), nil
}

// --- assets ---

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (m *Manager) ResolveOrCreate(_ context.Context, ticker, name string) (*models.Asset, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", common.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.assetTickers[ticker]; ok {
		cp := *m.assets[id]
		return &cp, nil
	}
	if strings.TrimSpace(name) == "" {
		name = ticker
	}
	m.nextAssetID++
	a := &models.Asset{ID: m.nextAssetID, Name: name, Ticker: ticker}
	m.assets[a.ID] = a
	m.assetTickers[ticker] = a.ID
	cp := *a
	return &cp, nil
}

func (m *Manager) GetAssetByTicker(_ context.Context, ticker string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.assetTickers[normalizeTicker(ticker)]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", ticker, common.ErrNotFound)
	}
	cp := *m.assets[id]
	return &cp, nil
}

func (m *Manager) ListAssets(_ context.Context, skip, limit int) ([]models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, skip, limit), nil
}

func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// --- ledger ---

func (m *Manager) ListTransactions(_ context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Transaction{}
	for _, tx := range m.transactions {
		if !m.ownsLocked(userID, tx) || !filter.Matches(tx.Date) {
			continue
		}
		out = append(out, m.withAssetLocked(*tx))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filter.Skip, filter.Limit), nil
}

func (m *Manager) GetTransaction(_ context.Context, userID, txID int64) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[txID]
	if !ok || !m.ownsLocked(userID, tx) {
		return nil, fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
	}
	out := m.withAssetLocked(*tx)
	return &out, nil
}

func (m *Manager) CreateTransaction(_ context.Context, userID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.checkRecordLocked(userID, rec)
	if err != nil {
		return nil, err
	}

	m.nextTxID++
	tx := recordToTransaction(m.nextTxID, rec)
	m.transactions[tx.ID] = &tx
	u.Balance = m.deriveBalanceLocked(u)

	out := m.withAssetLocked(tx)
	return &out, nil
}

func (m *Manager) UpdateTransaction(_ context.Context, userID, txID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transactions[txID]
	if !ok || !m.ownsLocked(userID, existing) {
		return nil, fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
	}
	u, err := m.checkRecordLocked(userID, rec)
	if err != nil {
		return nil, err
	}

	tx := recordToTransaction(txID, rec)
	m.transactions[txID] = &tx
	u.Balance = m.deriveBalanceLocked(u)

	out := m.withAssetLocked(tx)
	return &out, nil
}

func (m *Manager) DeleteTransaction(_ context.Context, userID, txID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.transactions[txID]
	if !ok || !m.ownsLocked(userID, existing) {
		return fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
	}
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}

	delete(m.transactions, txID)
	u.Balance = m.deriveBalanceLocked(u)
	return nil
}

// checkRecordLocked verifies the referenced user, asset and portfolio exist.
func (m *Manager) checkRecordLocked(userID int64, rec models.TransactionRecord) (*models.User, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}
	if _, ok := m.assets[rec.AssetID]; !ok {
		return nil, fmt.Errorf("asset %d: %w", rec.AssetID, common.ErrNotFound)
	}
	if p, ok := m.portfolios[rec.PortfolioID]; !ok || p.OwnerID != userID {
		return nil, fmt.Errorf("portfolio %d: %w", rec.PortfolioID, common.ErrNotFound)
	}
	return u, nil
}

func (m *Manager) ownsLocked(userID int64, tx *models.Transaction) bool {
	p, ok := m.portfolios[tx.PortfolioID]
	return ok && p.OwnerID == userID
}

func (m *Manager) withAssetLocked(tx models.Transaction) models.Transaction {
	if a, ok := m.assets[tx.AssetID]; ok {
		tx.Asset = *a
	}
	return tx
}

func recordToTransaction(id int64, rec models.TransactionRecord) models.Transaction {
	qty := rec.Quantity
	if qty <= 0 {
		qty = 1
	}
	return models.Transaction{
		ID:          id,
		Date:        rec.Date,
		Type:        rec.Type,
		Price:       rec.Price,
		Quantity:    qty,
		PortfolioID: rec.PortfolioID,
		AssetID:     rec.AssetID,
	}
}
