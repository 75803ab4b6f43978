package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/dbx"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

const userColumns = `id, balance, cash_base, google_sheets_api_key, google_sheets_spreadsheet_id,
        tinkoff_invest_api_token, auto_transaction_price_enabled`

// UserStore implements interfaces.UserStore.
type UserStore struct {
	db     *sql.DB
	logger *common.Logger
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Balance, &u.CashBase, &u.GoogleSheetsAPIKey, &u.GoogleSheetsSpreadsheetID,
		&u.TinkoffInvestAPIToken, &u.AutoTransactionPriceEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func getUser(ctx context.Context, db dbx.DBTX, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	return u, nil
}

// lockUser loads the user row FOR UPDATE, serializing balance changes per user.
func lockUser(ctx context.Context, tx dbx.DBTX, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	u, err := scanUser(tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	return u, nil
}

// recomputeBalance re-derives users.balance from cash_base and the user's
// current transactions.
func recomputeBalance(ctx context.Context, tx dbx.DBTX, userID int64) (decimal.Decimal, error) {
	query := `UPDATE users u SET balance = u.cash_base + COALESCE((
            SELECT SUM(CASE WHEN t.type = 'Sell' THEN t.price ELSE -t.price END)
            FROM transactions t
            JOIN portfolios p ON p.id = t.portfolio_id
            WHERE p.owner_id = u.id), 0)
        WHERE u.id = $1
        RETURNING balance`

	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}
	return balance, nil
}

func (s *UserStore) EnsureUser(ctx context.Context, userID int64, initial decimal.Decimal) (*models.User, error) {
	query := `INSERT INTO users (id, balance, cash_base) VALUES ($1, $2, $2) ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, query, userID, initial)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug().Int64("user_id", userID).Msg("Created user")
	}
	return getUser(ctx, s.db, userID)
}

func (s *UserStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return getUser(ctx, s.db, userID)
}

func (s *UserStore) UpdateSettings(ctx context.Context, userID int64, settings models.UserSettings) (*models.User, error) {
	var out *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		settings.Apply(u)
		if settings.Balance != nil {
			u.CashBase = u.CashBase.Add(settings.Balance.Sub(u.Balance))
		}

		query := `UPDATE users SET google_sheets_api_key = $2, google_sheets_spreadsheet_id = $3,
                tinkoff_invest_api_token = $4, auto_transaction_price_enabled = $5, cash_base = $6
            WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, userID, u.GoogleSheetsAPIKey, u.GoogleSheetsSpreadsheetID,
			u.TinkoffInvestAPIToken, u.AutoTransactionPriceEnabled, u.CashBase); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		if u.Balance, err = recomputeBalance(ctx, tx, userID); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *UserStore) AdjustCash(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error) {
	var out *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		u.CashBase = u.CashBase.Add(delta)
		if _, err := tx.ExecContext(ctx, `UPDATE users SET cash_base = $2 WHERE id = $1`, userID, u.CashBase); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if u.Balance, err = recomputeBalance(ctx, tx, userID); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
