package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, matching the front-end contract.
	decimal.MarshalJSONWithoutQuotes = true
}

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day. It marshals as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. Accepts "YYYY-MM-DD" or RFC 3339.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := ParseDate(v[:min(len(v), len(DateLayout))])
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	TransactionBuy  TransactionType = "Buy"
	TransactionSell TransactionType = "Sell"
)

// ParseTransactionType accepts "buy"/"sell" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return TransactionBuy, nil
	case "sell":
		return TransactionSell, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// SignedEffect returns the cash effect of a transaction of this type and price:
// a Buy spends cash, a Sell receives it.
func (t TransactionType) SignedEffect(price decimal.Decimal) decimal.Decimal {
	if t == TransactionSell {
		return price
	}
	return price.Neg()
}

// Asset is a tradable instrument identified by its ticker.
type Asset struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// Transaction is one priced Buy or Sell event. Price is the total cash amount of
// the event; Quantity is the number of units it moved (1 when not supplied).
type Transaction struct {
	ID          int64           `json:"id"`
	Date        Date            `json:"date"`
	Type        TransactionType `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	PortfolioID int64           `json:"portfolio_id"`
	AssetID     int64           `json:"-"`
	Asset       Asset           `json:"asset"`
}

// Effect is the signed cash effect of the transaction.
func (t Transaction) Effect() decimal.Decimal {
	return t.Type.SignedEffect(t.Price)
}

// Units is the signed holding change: +quantity for a Buy, -quantity for a Sell.
func (t Transaction) Units() int64 {
	q := t.Quantity
	if q <= 0 {
		q = 1
	}
	if t.Type == TransactionSell {
		return -q
	}
	return q
}

// TransactionInput is the client payload for create and update.
// AssetName is the ticker; it also names a newly registered asset.
// A nil Price asks the ledger to look up the historical close.
type TransactionInput struct {
	Date        Date             `json:"date"`
	Type        string           `json:"type"`
	Price       *decimal.Decimal `json:"price"`
	AssetName   string           `json:"asset_name"`
	Quantity    int64            `json:"quantity,omitempty"`
	PortfolioID int64            `json:"portfolio_id,omitempty"`
}

// TransactionRecord is a fully resolved row handed to the ledger store:
// the asset and portfolio already exist and the price is known.
type TransactionRecord struct {
	Date        Date
	Type        TransactionType
	Price       decimal.Decimal
	Quantity    int64
	AssetID     int64
	PortfolioID int64
}

// TransactionFilter narrows a ledger listing. Zero values mean unbounded.
type TransactionFilter struct {
	Skip  int
	Limit int
	From  *Date
	To    *Date
}

// Matches reports whether d falls inside the filter's date window.
func (f TransactionFilter) Matches(d Date) bool {
	if f.From != nil && d.Before(f.From.Time) {
		return false
	}
	if f.To != nil && d.After(f.To.Time) {
		return false
	}
	return true
}
