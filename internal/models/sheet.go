package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SheetHeader is the column layout of the transactions spreadsheet.
var SheetHeader = []string{"Asset Name", "Transaction Date", "Type", "Asset Price"}

// SheetRow is one transaction row of the external spreadsheet.
type SheetRow struct {
	AssetName string `json:"Asset Name"`
	Date      string `json:"Transaction Date"`
	Type      string `json:"Type"`
	Price     string `json:"Asset Price"`
}

// MarshalJSON writes a numeric price cell as a JSON number and anything
// else as the raw cell text.
func (r SheetRow) MarshalJSON() ([]byte, error) {
	type cells SheetRow
	out := struct {
		cells
		Price any `json:"Asset Price"`
	}{cells: cells(r), Price: r.Price}
	if d, err := parseCellDecimal(r.Price); err == nil {
		out.Price = json.Number(d.String())
	}
	return json.Marshal(out)
}

func parseCellDecimal(cell string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(cell), ",", "."))
}

// Values returns the row as spreadsheet cells in SheetHeader order.
func (r SheetRow) Values() []string {
	return []string{r.AssetName, r.Date, r.Type, r.Price}
}

// SheetRowFromValues maps cells onto a row, tolerating short rows.
func SheetRowFromValues(cells []string) SheetRow {
	get := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	return SheetRow{AssetName: get(0), Date: get(1), Type: get(2), Price: get(3)}
}

// IsHeader reports whether the row repeats the column titles.
func (r SheetRow) IsHeader() bool {
	return strings.EqualFold(r.AssetName, SheetHeader[0]) && strings.EqualFold(r.Type, SheetHeader[2])
}

// SheetRowFromInput renders a transaction payload as a spreadsheet row.
func SheetRowFromInput(in TransactionInput) SheetRow {
	price := ""
	if in.Price != nil {
		price = in.Price.String()
	}
	return SheetRow{
		AssetName: in.AssetName,
		Date:      in.Date.String(),
		Type:      in.Type,
		Price:     price,
	}
}

// ToInput parses the row into a transaction payload.
func (r SheetRow) ToInput() (TransactionInput, error) {
	if r.AssetName == "" {
		return TransactionInput{}, fmt.Errorf("asset name is empty")
	}
	d, err := ParseDate(r.Date)
	if err != nil {
		return TransactionInput{}, err
	}
	if _, err := ParseTransactionType(r.Type); err != nil {
		return TransactionInput{}, err
	}
	in := TransactionInput{Date: d, Type: r.Type, AssetName: r.AssetName}
	if strings.TrimSpace(r.Price) != "" {
		price, err := parseCellDecimal(r.Price)
		if err != nil {
			return TransactionInput{}, fmt.Errorf("invalid price %q: %w", r.Price, err)
		}
		in.Price = &price
	}
	return in, nil
}

// ImportResult reports the outcome of a spreadsheet import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
