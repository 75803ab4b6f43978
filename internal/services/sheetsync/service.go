// Package sheetsync moves transactions between the ledger and an external spreadsheet
package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// Compile-time interface check
var _ interfaces.SheetSyncService = (*Service)(nil)

// Service implements SheetSyncService
type Service struct {
	sheets   interfaces.SpreadsheetSync
	accounts interfaces.AccountService
	ledger   interfaces.LedgerService
	logger   *common.Logger
}

// NewService creates a new spreadsheet sync service
func NewService(sheets interfaces.SpreadsheetSync, accounts interfaces.AccountService, ledger interfaces.LedgerService, logger *common.Logger) *Service {
	return &Service{
		sheets:   sheets,
		accounts: accounts,
		ledger:   ledger,
		logger:   logger,
	}
}

// target resolves the API key and spreadsheet id for the acting user.
// An empty spreadsheetID falls back to the id stored in the user's settings.
func (s *Service) target(ctx context.Context, spreadsheetID string) (string, string, error) {
	u, err := s.accounts.GetSettings(ctx)
	if err != nil {
		return "", "", err
	}
	key := strings.TrimSpace(u.GoogleSheetsAPIKey)
	if key == "" {
		return "", "", fmt.Errorf("%w: spreadsheet API key not set", common.ErrCredentialMissing)
	}
	id := strings.TrimSpace(spreadsheetID)
	if id == "" {
		id = strings.TrimSpace(u.GoogleSheetsSpreadsheetID)
	}
	if id == "" {
		return "", "", fmt.Errorf("%w: spreadsheet_id is required", common.ErrInvalidInput)
	}
	return key, id, nil
}

func (s *Service) ReadTransactions(ctx context.Context, spreadsheetID string) ([]models.SheetRow, error) {
	key, id, err := s.target(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	rows, err := s.sheets.ReadRows(ctx, key, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.SheetRow, 0, len(rows))
	for _, r := range rows {
		if r.IsHeader() {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// WriteTransaction appends the payload as a row. The ledger is not touched.
func (s *Service) WriteTransaction(ctx context.Context, spreadsheetID string, in models.TransactionInput) error {
	typ, err := models.ParseTransactionType(in.Type)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.AssetName) == "" || in.Date.IsZero() {
		return fmt.Errorf("%w: asset_name and date are required", common.ErrInvalidInput)
	}
	key, id, err := s.target(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	in.Type = string(typ)
	in.AssetName = strings.TrimSpace(in.AssetName)
	if err := s.sheets.WriteRow(ctx, key, id, models.SheetRowFromInput(in)); err != nil {
		return err
	}
	s.logger.Info().Str("spreadsheet_id", id).Str("asset", in.AssetName).Msg("Transaction row appended")
	return nil
}

// ImportTransactions records every data row as a ledger transaction. Rows
// that cannot be parsed or are rejected by the ledger are skipped and
// reported; storage and upstream failures abort the import.
func (s *Service) ImportTransactions(ctx context.Context, spreadsheetID string) (*models.ImportResult, error) {
	rows, err := s.ReadTransactions(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	res := &models.ImportResult{}
	skip := func(n int, err error) {
		res.Skipped++
		res.Errors = append(res.Errors, fmt.Sprintf("row %d: %v", n, err))
	}
	for i, row := range rows {
		n := i + 1
		in, err := row.ToInput()
		if err != nil {
			skip(n, err)
			continue
		}
		if _, err := s.ledger.CreateTransaction(ctx, in); err != nil {
			if errors.Is(err, common.ErrInvalidInput) || errors.Is(err, common.ErrNotFound) {
				skip(n, err)
				continue
			}
			return nil, fmt.Errorf("import stopped at row %d: %w", n, err)
		}
		res.Imported++
	}

	s.logger.Info().Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("Spreadsheet import complete")
	return res, nil
}
