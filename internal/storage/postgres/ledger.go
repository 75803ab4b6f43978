package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/dbx"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

const transactionSelect = `SELECT t.id, t.date, t.type, t.price, t.quantity, t.portfolio_id, a.id, a.name, a.ticker
        FROM transactions t
        JOIN portfolios p ON p.id = t.portfolio_id
        JOIN assets a ON a.id = t.asset_id`

// LedgerStore implements interfaces.LedgerStore.
type LedgerStore struct {
	db     *sql.DB
	logger *common.Logger
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	var typ string
	err := row.Scan(&tx.ID, &tx.Date, &typ, &tx.Price, &tx.Quantity, &tx.PortfolioID,
		&tx.Asset.ID, &tx.Asset.Name, &tx.Asset.Ticker)
	tx.Type = models.TransactionType(typ)
	tx.AssetID = tx.Asset.ID
	return tx, err
}

func (s *LedgerStore) ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	var from, to any
	if filter.From != nil {
		from = filter.From.Time
	}
	if filter.To != nil {
		to = filter.To.Time
	}

	query := transactionSelect + `
        WHERE p.owner_id = $1
          AND ($2::date IS NULL OR t.date >= $2::date)
          AND ($3::date IS NULL OR t.date <= $3::date)
        ORDER BY t.id
        OFFSET $4 LIMIT NULLIF($5, 0)`

	rows, err := s.db.QueryContext(ctx, query, userID, from, to, max(filter.Skip, 0), max(filter.Limit, 0))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func getTransaction(ctx context.Context, db dbx.DBTX, userID, txID int64) (*models.Transaction, error) {
	query := transactionSelect + ` WHERE t.id = $1 AND p.owner_id = $2`
	tx, err := scanTransaction(db.QueryRowContext(ctx, query, txID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &tx, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, userID, txID int64) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, userID, txID)
}

func quantityOf(rec models.TransactionRecord) int64 {
	if rec.Quantity <= 0 {
		return 1
	}
	return rec.Quantity
}

func (s *LedgerStore) CreateTransaction(ctx context.Context, userID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	var out *models.Transaction
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := getPortfolio(ctx, tx, userID, rec.PortfolioID); err != nil {
			return err
		}

		var id int64
		query := `INSERT INTO transactions (date, type, price, quantity, asset_id, portfolio_id)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
		if err := tx.QueryRowContext(ctx, query, rec.Date.Time, string(rec.Type), rec.Price,
			quantityOf(rec), rec.AssetID, rec.PortfolioID).Scan(&id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		balance, err := recomputeBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		s.logger.Debug().Int64("user_id", userID).Int64("transaction_id", id).
			Str("balance", balance.String()).Msg("Transaction created")

		out, err = getTransaction(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerStore) UpdateTransaction(ctx context.Context, userID, txID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	var out *models.Transaction
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := getPortfolio(ctx, tx, userID, rec.PortfolioID); err != nil {
			return err
		}

		query := `UPDATE transactions t
            SET date = $3, type = $4, price = $5, quantity = $6, asset_id = $7, portfolio_id = $8
            FROM portfolios p
            WHERE t.id = $2 AND p.id = t.portfolio_id AND p.owner_id = $1`
		res, err := tx.ExecContext(ctx, query, userID, txID, rec.Date.Time, string(rec.Type), rec.Price,
			quantityOf(rec), rec.AssetID, rec.PortfolioID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		} else if n == 0 {
			return fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
		}

		if _, err := recomputeBalance(ctx, tx, userID); err != nil {
			return err
		}
		out, err = getTransaction(ctx, tx, userID, txID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerStore) DeleteTransaction(ctx context.Context, userID, txID int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		query := `DELETE FROM transactions t USING portfolios p
            WHERE t.id = $2 AND p.id = t.portfolio_id AND p.owner_id = $1`
		res, err := tx.ExecContext(ctx, query, userID, txID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("db error: %w", err)
		} else if n == 0 {
			return fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
		}

		_, err = recomputeBalance(ctx, tx, userID)
		return err
	})
}
