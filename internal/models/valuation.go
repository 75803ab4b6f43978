package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Period selects the lookback window of a summary.
type Period string

const (
	PeriodAllTime Period = "all_time"
	PeriodDay     Period = "day"
	PeriodMonth   Period = "month"
	PeriodYear    Period = "year"
)

// ParsePeriod validates a period name. Empty means all_time.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodAllTime, nil
	case PeriodAllTime, PeriodDay, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// LookbackDays returns the window length in calendar days; 0 means no filter.
func (p Period) LookbackDays() int {
	switch p {
	case PeriodDay:
		return 1
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	}
	return 0
}

// Summary is the net cash flow and return over a period.
type Summary struct {
	Period            Period          `json:"period"`
	CurrentTotal      decimal.Decimal `json:"current_total"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	RateOfReturn      decimal.Decimal `json:"rate_of_return"`
	Message           string          `json:"message"`
}

// CashLabel labels the balance entry of a composition.
const CashLabel = "Cash (Balance)"

// PriceUnavailableSuffix marks a holding whose current price could not be fetched.
const PriceUnavailableSuffix = " (Price Unavailable)"

// CompositionEntry is one labelled value. It marshals as a [label, value] pair.
type CompositionEntry struct {
	Label string
	Value decimal.Decimal
}

// MarshalJSON implements json.Marshaler.
func (e CompositionEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Label, e.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *CompositionEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("composition entry must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.Label); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &e.Value)
}

// Composition is the current value breakdown by holding plus cash.
type Composition struct {
	Composition         []CompositionEntry `json:"composition"`
	TotalPortfolioValue decimal.Decimal    `json:"total_portfolio_value"`
	Message             string             `json:"message"`
}

// PriceEstimate is the response of the estimate-price endpoint.
type PriceEstimate struct {
	Ticker string          `json:"ticker"`
	Date   Date            `json:"date"`
	Price  decimal.Decimal `json:"price"`
}
