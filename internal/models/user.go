package models

import "github.com/shopspring/decimal"

// DefaultPortfolioName is the portfolio created for a user who has none.
const DefaultPortfolioName = "Default Portfolio"

// User owns portfolios and a single cash balance.
//
// CashBase is the initial balance plus every manual top-up and withdrawal.
// Balance is CashBase plus the signed effects of the user's current
// transactions; storage backends recompute it on every ledger mutation.
type User struct {
	ID                          int64           `json:"id"`
	Balance                     decimal.Decimal `json:"balance"`
	CashBase                    decimal.Decimal `json:"-"`
	GoogleSheetsAPIKey          string          `json:"google_sheets_api_key,omitempty"`
	GoogleSheetsSpreadsheetID   string          `json:"google_sheets_spreadsheet_id,omitempty"`
	TinkoffInvestAPIToken       string          `json:"tinkoff_invest_api_token,omitempty"`
	AutoTransactionPriceEnabled bool            `json:"auto_transaction_price_enabled"`
}

// UserSettings is a partial settings update. Nil fields are left unchanged.
// Setting Balance moves the cash base so that the derived balance equals it.
type UserSettings struct {
	GoogleSheetsAPIKey          *string          `json:"google_sheets_api_key,omitempty"`
	GoogleSheetsSpreadsheetID   *string          `json:"google_sheets_spreadsheet_id,omitempty"`
	TinkoffInvestAPIToken       *string          `json:"tinkoff_invest_api_token,omitempty"`
	AutoTransactionPriceEnabled *bool            `json:"auto_transaction_price_enabled,omitempty"`
	Balance                     *decimal.Decimal `json:"balance,omitempty"`
}

// Apply copies the non-nil credential fields onto u. Balance is handled by the store.
func (s UserSettings) Apply(u *User) {
	if s.GoogleSheetsAPIKey != nil {
		u.GoogleSheetsAPIKey = *s.GoogleSheetsAPIKey
	}
	if s.GoogleSheetsSpreadsheetID != nil {
		u.GoogleSheetsSpreadsheetID = *s.GoogleSheetsSpreadsheetID
	}
	if s.TinkoffInvestAPIToken != nil {
		u.TinkoffInvestAPIToken = *s.TinkoffInvestAPIToken
	}
	if s.AutoTransactionPriceEnabled != nil {
		u.AutoTransactionPriceEnabled = *s.AutoTransactionPriceEnabled
	}
}

// AmountRequest is the top-up / withdraw payload.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Portfolio is a named grouping of transactions.
type Portfolio struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
}
