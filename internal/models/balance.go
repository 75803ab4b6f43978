package models

import "github.com/shopspring/decimal"

// DeriveBalance recomputes a balance from the cash base and the transactions
// currently in the ledger. Edits and deletions therefore never accumulate.
func DeriveBalance(cashBase decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := cashBase
	for _, tx := range txs {
		balance = balance.Add(tx.Effect())
	}
	return balance
}
