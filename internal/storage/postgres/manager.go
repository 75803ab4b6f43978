// Package postgres implements interfaces.StorageManager on PostgreSQL via pgx.
//
// Ledger mutations run inside one database transaction that first locks the
// owning user row, applies the change, and then recomputes the stored balance
// from cash_base and the user's remaining transactions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/storage/postgres/migrations"
)

// Manager implements interfaces.StorageManager using PostgreSQL.
type Manager struct {
	db     *sql.DB
	logger *common.Logger
}

var _ interfaces.StorageManager = (*Manager)(nil)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewManager opens dsn with the pgx driver, verifies the connection and
// migrates the schema.
func NewManager(ctx context.Context, logger *common.Logger, dsn string) (*Manager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Msg("PostgreSQL storage ready")
	return NewManagerFromDB(db, logger), nil
}

// NewManagerFromDB wraps an already-open, migrated database.
func NewManagerFromDB(db *sql.DB, logger *common.Logger) *Manager {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Manager{db: db, logger: logger}
}

func (m *Manager) UserStore() interfaces.UserStore           { return &UserStore{db: m.db, logger: m.logger} }
func (m *Manager) PortfolioStore() interfaces.PortfolioStore { return &PortfolioStore{db: m.db} }
func (m *Manager) AssetStore() interfaces.AssetStore         { return &AssetStore{db: m.db} }
func (m *Manager) LedgerStore() interfaces.LedgerStore       { return &LedgerStore{db: m.db, logger: m.logger} }

// Close closes the connection pool.
func (m *Manager) Close() error {
	return m.db.Close()
}
