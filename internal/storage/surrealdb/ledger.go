package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// LedgerStore implements interfaces.LedgerStore.
//
// Transactions carry user_id and a copy of the asset's name and ticker;
// assets are immutable once created, so the copy never goes stale.
type LedgerStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	assets *AssetStore
}

const transactionFields = `tx_id, date, type, <string> price AS price, quantity, portfolio_id,
	asset_id, asset_name, ticker`

const requirePortfolioSQL = `IF array::len((SELECT portfolio_id FROM $pid WHERE user_id = $user_id)) = 0 {
		THROW "` + notFoundMarker + `: portfolio" };`

const requireTransactionSQL = `IF array::len((SELECT tx_id FROM $rid WHERE user_id = $user_id)) = 0 {
		THROW "` + notFoundMarker + `: transaction" };`

type transactionRow struct {
	TxID        int64  `json:"tx_id"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
	PortfolioID int64  `json:"portfolio_id"`
	AssetID     int64  `json:"asset_id"`
	AssetName   string `json:"asset_name"`
	Ticker      string `json:"ticker"`
}

func (r transactionRow) toTransaction() (models.Transaction, error) {
	date, err := models.ParseDate(r.Date)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %d: invalid date %q: %w", r.TxID, r.Date, err)
	}
	price, err := parseDecimal(r.Price)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %d: invalid price %q: %w", r.TxID, r.Price, err)
	}
	return models.Transaction{
		ID:          r.TxID,
		Date:        date,
		Type:        models.TransactionType(r.Type),
		Price:       price,
		Quantity:    r.Quantity,
		PortfolioID: r.PortfolioID,
		AssetID:     r.AssetID,
		Asset:       models.Asset{ID: r.AssetID, Name: r.AssetName, Ticker: r.Ticker},
	}, nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, userID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	conds := []string{"user_id = $user_id"}
	vars := map[string]any{"user_id": userID}
	if filter.From != nil {
		conds = append(conds, "date >= $from")
		vars["from"] = filter.From.String()
	}
	if filter.To != nil {
		conds = append(conds, "date <= $to")
		vars["to"] = filter.To.String()
	}

	sql := "SELECT " + transactionFields + " FROM transaction WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY tx_id" + pageClause(filter.Skip, filter.Limit)
	rows, err := queryRows[transactionRow](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		tx, err := r.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, userID, txID int64) (*models.Transaction, error) {
	sql := "SELECT " + transactionFields + " FROM $rid WHERE user_id = $user_id"
	rows, err := queryRows[transactionRow](ctx, s.db, sql, map[string]any{
		"rid":     transactionRID(txID),
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction %d: %w", txID, common.ErrNotFound)
	}
	tx, err := rows[0].toTransaction()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func quantityOf(rec models.TransactionRecord) int64 {
	if rec.Quantity <= 0 {
		return 1
	}
	return rec.Quantity
}

// recordVars resolves the asset and binds the columns shared by create and update.
func (s *LedgerStore) recordVars(ctx context.Context, userID, txID int64, rec models.TransactionRecord) (map[string]any, error) {
	asset, err := s.assets.getAssetByID(ctx, rec.AssetID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"uid":          userRID(userID),
		"pid":          portfolioRID(rec.PortfolioID),
		"rid":          transactionRID(txID),
		"user_id":      userID,
		"tx_id":        txID,
		"portfolio_id": rec.PortfolioID,
		"asset_id":     asset.ID,
		"asset_name":   asset.Name,
		"ticker":       asset.Ticker,
		"date":         rec.Date.String(),
		"type":         string(rec.Type),
		"price":        rec.Price.String(),
		"quantity":     quantityOf(rec),
	}, nil
}

const transactionSetSQL = `tx_id = $tx_id, user_id = $user_id, portfolio_id = $portfolio_id,
		asset_id = $asset_id, asset_name = $asset_name, ticker = $ticker, date = $date,
		type = $type, price = <decimal> $price, quantity = $quantity`

func (s *LedgerStore) CreateTransaction(ctx context.Context, userID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	id, err := nextID(ctx, s.db, "transaction")
	if err != nil {
		return nil, err
	}
	vars, err := s.recordVars(ctx, userID, id, rec)
	if err != nil {
		return nil, err
	}

	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	` + requirePortfolioSQL + `
	CREATE $rid SET ` + transactionSetSQL + `;
	` + recomputeBalanceSQL + `
	COMMIT TRANSACTION;`
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	s.logger.Debug().Int64("user_id", userID).Int64("transaction_id", id).Msg("Transaction created")
	return s.GetTransaction(ctx, userID, id)
}

func (s *LedgerStore) UpdateTransaction(ctx context.Context, userID, txID int64, rec models.TransactionRecord) (*models.Transaction, error) {
	vars, err := s.recordVars(ctx, userID, txID, rec)
	if err != nil {
		return nil, err
	}

	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	` + requireTransactionSQL + `
	` + requirePortfolioSQL + `
	UPDATE $rid SET ` + transactionSetSQL + `;
	` + recomputeBalanceSQL + `
	COMMIT TRANSACTION;`
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	return s.GetTransaction(ctx, userID, txID)
}

func (s *LedgerStore) DeleteTransaction(ctx context.Context, userID, txID int64) error {
	sql := `BEGIN TRANSACTION;
	` + requireUserSQL + `
	` + requireTransactionSQL + `
	DELETE $rid;
	` + recomputeBalanceSQL + `
	COMMIT TRANSACTION;`
	vars := map[string]any{
		"uid":     userRID(userID),
		"rid":     transactionRID(txID),
		"user_id": userID,
	}
	if err := execBlock(ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}
