// Package surrealdb implements interfaces.StorageManager using SurrealDB.
//
// Records use numeric ids allocated from the counter table. Money is stored
// as SurrealDB decimals and read back through <string> casts.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
)

// notFoundMarker is thrown from SurrealQL blocks when a referenced record is missing.
const notFoundMarker = "investtrack_not_found"

var tables = []string{"user", "portfolio", "asset", "transaction", "counter"}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	userStore      *UserStore
	portfolioStore *PortfolioStore
	assetStore     *AssetStore
	ledgerStore    *LedgerStore
}

var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager connects, signs in, selects the namespace and database and
// defines the tables.
func NewManager(ctx context.Context, logger *common.Logger, cfg common.StorageConfig) (*Manager, error) {
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := NewManagerFromDB(ctx, db, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// NewManagerFromDB wraps an already-selected database connection.
func NewManagerFromDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	// SurrealDB v3 errors on querying tables that do not exist
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	if _, err := surrealdb.Query[any](ctx, db,
		"DEFINE INDEX IF NOT EXISTS transaction_user ON transaction FIELDS user_id", nil); err != nil {
		return nil, fmt.Errorf("failed to define transaction index: %w", err)
	}

	m := &Manager{db: db, logger: logger}
	m.userStore = &UserStore{db: db, logger: logger}
	m.portfolioStore = &PortfolioStore{db: db, logger: logger}
	m.assetStore = &AssetStore{db: db, logger: logger}
	m.ledgerStore = &LedgerStore{db: db, logger: logger, assets: m.assetStore}
	return m, nil
}

func (m *Manager) UserStore() interfaces.UserStore {
	return m.userStore
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) AssetStore() interfaces.AssetStore {
	return m.assetStore
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

// Close closes the SurrealDB connection.
func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}

// queryRows runs a single-statement query and returns its result rows.
func queryRows[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, sql, vars)
	if err != nil {
		return nil, err
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// execBlock runs a multi-statement block and surfaces the first failed statement.
func execBlock(ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) error {
	results, err := surrealdb.Query[any](ctx, db, sql, vars)
	if err != nil {
		return mapError(err)
	}
	if results == nil {
		return nil
	}
	for _, r := range *results {
		if r.Status != "" && r.Status != "OK" {
			return mapError(fmt.Errorf("%v", r.Result))
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), notFoundMarker)
}

func mapError(err error) error {
	if isNotFoundError(err) {
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	}
	return err
}

type counterRow struct {
	Value int64 `json:"value"`
}

// nextID allocates the next id of a sequence. Gaps are possible when the
// surrounding write fails; ids are never reused.
func nextID(ctx context.Context, db *surrealdb.DB, sequence string) (int64, error) {
	rows, err := queryRows[counterRow](ctx, db, "UPSERT $rid SET value += 1 RETURN AFTER", map[string]any{
		"rid": surrealmodels.NewRecordID("counter", sequence),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", sequence, err)
	}
	if len(rows) == 0 || rows[0].Value <= 0 {
		return 0, fmt.Errorf("failed to allocate %s id: empty result", sequence)
	}
	return rows[0].Value, nil
}

// parseDecimal reads a <string>-cast decimal. Some server versions render
// decimals with a "dec" suffix.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "dec")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// recomputeBalanceSQL re-derives the balance of $uid from its cash base and
// the user's current transactions.
const recomputeBalanceSQL = `UPDATE $uid SET balance = cash_base
		+ math::sum((SELECT VALUE price FROM transaction WHERE user_id = $user_id AND type = 'Sell'))
		- math::sum((SELECT VALUE price FROM transaction WHERE user_id = $user_id AND type = 'Buy'));`

// requireUserSQL aborts the enclosing transaction when $uid does not exist.
const requireUserSQL = `IF array::len((SELECT user_id FROM $uid)) = 0 { THROW "` + notFoundMarker + `: user" };`

func userRID(userID int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("user", userID)
}

func portfolioRID(id int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("portfolio", id)
}

func transactionRID(id int64) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("transaction", id)
}

func assetRID(ticker string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("asset", ticker)
}
