package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// PortfolioStore implements interfaces.PortfolioStore.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

type portfolioRow struct {
	PortfolioID int64  `json:"portfolio_id"`
	Name        string `json:"name"`
	UserID      int64  `json:"user_id"`
}

func (r portfolioRow) toPortfolio() models.Portfolio {
	return models.Portfolio{ID: r.PortfolioID, Name: r.Name, OwnerID: r.UserID}
}

func (s *PortfolioStore) ListPortfolios(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	sql := "SELECT portfolio_id, name, user_id FROM portfolio WHERE user_id = $user_id ORDER BY portfolio_id"
	rows, err := queryRows[portfolioRow](ctx, s.db, sql, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	out := make([]models.Portfolio, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPortfolio())
	}
	return out, nil
}

func (s *PortfolioStore) GetPortfolio(ctx context.Context, userID, portfolioID int64) (*models.Portfolio, error) {
	sql := "SELECT portfolio_id, name, user_id FROM $rid WHERE user_id = $user_id"
	rows, err := queryRows[portfolioRow](ctx, s.db, sql, map[string]any{
		"rid":     portfolioRID(portfolioID),
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, common.ErrNotFound)
	}
	p := rows[0].toPortfolio()
	return &p, nil
}

func (s *PortfolioStore) CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: portfolio name is required", common.ErrInvalidInput)
	}
	id, err := nextID(ctx, s.db, "portfolio")
	if err != nil {
		return nil, err
	}

	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	CREATE $rid SET portfolio_id = $portfolio_id, name = $name, user_id = $user_id;
	COMMIT TRANSACTION;`
	vars := map[string]any{
		"uid":          userRID(userID),
		"rid":          portfolioRID(id),
		"portfolio_id": id,
		"name":         name,
		"user_id":      userID,
	}
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return &models.Portfolio{ID: id, Name: name, OwnerID: userID}, nil
}

func (s *PortfolioStore) DefaultPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	existing, err := s.ListPortfolios(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}

	id, err := nextID(ctx, s.db, "portfolio")
	if err != nil {
		return nil, err
	}

	// The existence check and the create share one transaction; a concurrent
	// request that loses the commit falls back to the winner's portfolio.
	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	IF array::len((SELECT portfolio_id FROM portfolio WHERE user_id = $user_id)) = 0 {
		CREATE $rid SET portfolio_id = $portfolio_id, name = $name, user_id = $user_id;
	};
	COMMIT TRANSACTION;`
	vars := map[string]any{
		"uid":          userRID(userID),
		"rid":          portfolioRID(id),
		"portfolio_id": id,
		"name":         models.DefaultPortfolioName,
		"user_id":      userID,
	}
	blockErr := execBlock(ctx, s.db, sql, vars)
	if blockErr != nil && isNotFoundError(blockErr) {
		return nil, fmt.Errorf("failed to create default portfolio: %w", blockErr)
	}

	existing, err = s.ListPortfolios(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		if blockErr != nil {
			return nil, fmt.Errorf("failed to create default portfolio: %w", blockErr)
		}
		return nil, fmt.Errorf("default portfolio for user %d: %w", userID, common.ErrNotFound)
	}
	s.logger.Debug().Int64("user_id", userID).Int64("portfolio_id", existing[0].ID).Msg("Default portfolio resolved")
	return &existing[0], nil
}
