package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/dbx"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// PortfolioStore implements interfaces.PortfolioStore.
type PortfolioStore struct {
	db *sql.DB
}

func (s *PortfolioStore) ListPortfolios(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	query := `SELECT id, name, owner_id FROM portfolios WHERE owner_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Portfolio{}
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func getPortfolio(ctx context.Context, db dbx.DBTX, userID, portfolioID int64) (*models.Portfolio, error) {
	query := `SELECT id, name, owner_id FROM portfolios WHERE id = $1 AND owner_id = $2`
	p := &models.Portfolio{}
	err := db.QueryRowContext(ctx, query, portfolioID, userID).Scan(&p.ID, &p.Name, &p.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %d: %w", portfolioID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (s *PortfolioStore) GetPortfolio(ctx context.Context, userID, portfolioID int64) (*models.Portfolio, error) {
	return getPortfolio(ctx, s.db, userID, portfolioID)
}

func createPortfolio(ctx context.Context, db dbx.DBTX, userID int64, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: portfolio name is required", common.ErrInvalidInput)
	}
	p := &models.Portfolio{Name: name, OwnerID: userID}
	query := `INSERT INTO portfolios (name, owner_id) VALUES ($1, $2) RETURNING id`
	if err := db.QueryRowContext(ctx, query, name, userID).Scan(&p.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (s *PortfolioStore) CreatePortfolio(ctx context.Context, userID int64, name string) (*models.Portfolio, error) {
	return createPortfolio(ctx, s.db, userID, name)
}

func (s *PortfolioStore) DefaultPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	var out *models.Portfolio
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		// Lock the owner so two first requests cannot both create a default.
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		query := `SELECT id, name, owner_id FROM portfolios WHERE owner_id = $1 ORDER BY id LIMIT 1`
		p := &models.Portfolio{}
		err := tx.QueryRowContext(ctx, query, userID).Scan(&p.ID, &p.Name, &p.OwnerID)
		switch {
		case err == nil:
			out = p
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("db error: %w", err)
		}

		out, err = createPortfolio(ctx, tx, userID, models.DefaultPortfolioName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
