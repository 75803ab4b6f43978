package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// AssetStore implements interfaces.AssetStore. Assets are keyed by their
// normalized ticker, so the record id enforces ticker uniqueness.
type AssetStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

type assetRow struct {
	AssetID int64  `json:"asset_id"`
	Name    string `json:"name"`
	Ticker  string `json:"ticker"`
}

func (r assetRow) toAsset() models.Asset {
	return models.Asset{ID: r.AssetID, Name: r.Name, Ticker: r.Ticker}
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

	if a, err := s.GetAssetByTicker(ctx, ticker); err == nil {
		return a, nil
	}

	id, err := nextID(ctx, s.db, "asset")
	if err != nil {
		return nil, err
	}
	sql := "CREATE $rid SET asset_id = $asset_id, name = $name, ticker = $ticker"
	_, createErr := surrealdb.Query[any](ctx, s.db, sql, map[string]any{
		"rid":      assetRID(ticker),
		"asset_id": id,
		"name":     name,
		"ticker":   ticker,
	})
	if createErr == nil {
		s.logger.Debug().Str("ticker", ticker).Int64("asset_id", id).Msg("Asset created")
	}

	// CREATE fails when a concurrent request won the ticker; its name stands.
	a, err := s.GetAssetByTicker(ctx, ticker)
	if err != nil {
		if createErr != nil {
			return nil, fmt.Errorf("failed to create asset: %w", createErr)
		}
		return nil, err
	}
	return a, nil
}

func (s *AssetStore) GetAssetByTicker(ctx context.Context, ticker string) (*models.Asset, error) {
	ticker = normalizeTicker(ticker)
	rows, err := queryRows[assetRow](ctx, s.db, "SELECT asset_id, name, ticker FROM $rid", map[string]any{
		"rid": assetRID(ticker),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("asset %s: %w", ticker, common.ErrNotFound)
	}
	a := rows[0].toAsset()
	return &a, nil
}

func (s *AssetStore) getAssetByID(ctx context.Context, assetID int64) (*models.Asset, error) {
	sql := "SELECT asset_id, name, ticker FROM asset WHERE asset_id = $asset_id LIMIT 1"
	rows, err := queryRows[assetRow](ctx, s.db, sql, map[string]any{"asset_id": assetID})
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("asset %d: %w", assetID, common.ErrNotFound)
	}
	a := rows[0].toAsset()
	return &a, nil
}

func (s *AssetStore) ListAssets(ctx context.Context, skip, limit int) ([]models.Asset, error) {
	sql := "SELECT asset_id, name, ticker FROM asset ORDER BY asset_id" + pageClause(skip, limit)
	rows, err := queryRows[assetRow](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	out := make([]models.Asset, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toAsset())
	}
	return out, nil
}

// pageClause renders LIMIT/START. A non-positive limit means no limit.
func pageClause(skip, limit int) string {
	var clause string
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		clause += fmt.Sprintf(" START %d", skip)
	}
	return clause
}
