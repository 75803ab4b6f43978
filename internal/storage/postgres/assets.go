package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// AssetStore implements interfaces.AssetStore.
type AssetStore struct {
	db *sql.DB
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (s *AssetStore) ResolveOrCreate(ctx context.Context, ticker, name string) (*models.Asset, error) {
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		name = ticker
	}

	// The unique index on ticker keeps the first name under concurrent inserts.
	query := `INSERT INTO assets (name, ticker) VALUES ($1, $2) ON CONFLICT (ticker) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, name, ticker); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s.GetAssetByTicker(ctx, ticker)
}

func (s *AssetStore) GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	query := `SELECT id, name, ticker FROM assets WHERE ticker = $1`
	a := &models.Asset{}
	err := s.db.QueryRowContext(ctx, query, normalizeTicker(ticker)).Scan(&a.ID, &a.Name, &a.Ticker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", ticker, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (s *AssetStore) ListAssets(ctx context.Context, skip, limit int) ([]models.Asset, error) {
	query := `SELECT id, name, ticker FROM assets ORDER BY id OFFSET $1 LIMIT NULLIF($2, 0)`
	rows, err := s.db.QueryContext(ctx, query, max(skip, 0), max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Asset{}
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Ticker); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
