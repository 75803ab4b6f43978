package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/surrealdb.go"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// UserStore implements interfaces.UserStore.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

const userSelect = `SELECT user_id, <string> balance AS balance, <string> cash_base AS cash_base,
	google_sheets_api_key, google_sheets_spreadsheet_id, tinkoff_invest_api_token,
	auto_transaction_price_enabled FROM $uid`

type userRow struct {
	UserID                      int64  `json:"user_id"`
	Balance                     string `json:"balance"`
	CashBase                    string `json:"cash_base"`
	GoogleSheetsAPIKey          string `json:"google_sheets_api_key"`
	GoogleSheetsSpreadsheetID   string `json:"google_sheets_spreadsheet_id"`
	TinkoffInvestAPIToken       string `json:"tinkoff_invest_api_token"`
	AutoTransactionPriceEnabled bool   `json:"auto_transaction_price_enabled"`
}

func (r userRow) toUser() (*models.User, error) {
	balance, err := parseDecimal(r.Balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", r.Balance, err)
	}
	cashBase, err := parseDecimal(r.CashBase)
	if err != nil {
		return nil, fmt.Errorf("invalid cash_base %q: %w", r.CashBase, err)
	}
	return &models.User{
		ID:                          r.UserID,
		Balance:                     balance,
		CashBase:                    cashBase,
		GoogleSheetsAPIKey:          r.GoogleSheetsAPIKey,
		GoogleSheetsSpreadsheetID:   r.GoogleSheetsSpreadsheetID,
		TinkoffInvestAPIToken:       r.TinkoffInvestAPIToken,
		AutoTransactionPriceEnabled: r.AutoTransactionPriceEnabled,
	}, nil
}

func (s *UserStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	rows, err := queryRows[userRow](ctx, s.db, userSelect, map[string]any{"uid": userRID(userID)})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, common.ErrNotFound)
	}
	return rows[0].toUser()
}

func (s *UserStore) EnsureUser(ctx context.Context, userID int64, initial decimal.Decimal) (*models.User, error) {
	sql := `BEGIN TRANSACTION;
	IF array::len((SELECT user_id FROM $uid)) = 0 {
		CREATE $uid SET user_id = $user_id, balance = <decimal> $initial, cash_base = <decimal> $initial,
			google_sheets_api_key = "", google_sheets_spreadsheet_id = "", tinkoff_invest_api_token = "",
			auto_transaction_price_enabled = true;
	};
	COMMIT TRANSACTION;`
	vars := map[string]any{
		"uid":     userRID(userID),
		"user_id": userID,
		"initial": initial.String(),
	}
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		// A concurrent first request may have created the record already.
		if u, getErr := s.GetUser(ctx, userID); getErr == nil {
			return u, nil
		}
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func (s *UserStore) UpdateSettings(ctx context.Context, userID int64, settings models.UserSettings) (*models.User, error) {
	var sets []string
	vars := map[string]any{
		"uid":     userRID(userID),
		"user_id": userID,
	}
	if settings.GoogleSheetsAPIKey != nil {
		sets = append(sets, "google_sheets_api_key = $sheets_key")
		vars["sheets_key"] = *settings.GoogleSheetsAPIKey
	}
	if settings.GoogleSheetsSpreadsheetID != nil {
		sets = append(sets, "google_sheets_spreadsheet_id = $spreadsheet_id")
		vars["spreadsheet_id"] = *settings.GoogleSheetsSpreadsheetID
	}
	if settings.TinkoffInvestAPIToken != nil {
		sets = append(sets, "tinkoff_invest_api_token = $tinkoff_token")
		vars["tinkoff_token"] = *settings.TinkoffInvestAPIToken
	}
	if settings.AutoTransactionPriceEnabled != nil {
		sets = append(sets, "auto_transaction_price_enabled = $auto_price")
		vars["auto_price"] = *settings.AutoTransactionPriceEnabled
	}
	if settings.Balance != nil {
		// Shift the cash base so the re-derived balance lands on the target.
		sets = append(sets, "cash_base = cash_base + (<decimal> $target - balance)")
		vars["target"] = settings.Balance.String()
	}

	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	b.WriteString(requireUserSQL + "\n")
	if len(sets) > 0 {
		b.WriteString("UPDATE $uid SET " + strings.Join(sets, ", ") + ";\n")
	}
	b.WriteString(recomputeBalanceSQL + "\n")
	b.WriteString("COMMIT TRANSACTION;")

	if err := execBlock(ctx, s.db, b.String(), vars); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func (s *UserStore) AdjustCash(ctx context.Context, userID int64, delta decimal.Decimal) (*models.User, error) {
	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	UPDATE $uid SET cash_base = cash_base + <decimal> $delta;
	` + recomputeBalanceSQL + `
	COMMIT TRANSACTION;`
	vars := map[string]any{
		"uid":     userRID(userID),
		"user_id": userID,
		"delta":   delta.String(),
	}
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to adjust cash: %w", err)
	}
	return s.GetUser(ctx, userID)
}
