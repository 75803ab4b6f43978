package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		input   string
		want    TransactionType
		wantErr bool
	}{
		{"Buy", TransactionBuy, false},
		{"buy", TransactionBuy, false},
		{" SELL ", TransactionSell, false},
		{"hold", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTransactionType(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestTransaction_EffectAndUnits(t *testing.T) {
	buy := Transaction{Type: TransactionBuy, Price: decimal.NewFromInt(100)}
	sell := Transaction{Type: TransactionSell, Price: decimal.NewFromInt(150), Quantity: 3}

	assert.True(t, buy.Effect().Equal(decimal.NewFromInt(-100)))
	assert.True(t, sell.Effect().Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(1), buy.Units(), "missing quantity counts as one unit")
	assert.Equal(t, int64(-3), sell.Units())
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &d))
	assert.Equal(t, "2024-03-15", d.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-15"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T22:10:00Z"`), &d))
	assert.Equal(t, "2024-03-15", d.String())

	assert.Error(t, json.Unmarshal([]byte(`"15/03/2024"`), &d))
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-02", d.String())

	require.NoError(t, d.Scan("2024-05-06T00:00:00Z"))
	assert.Equal(t, "2024-05-06", d.String())

	require.NoError(t, d.Scan([]byte("2024-07-08")))
	assert.Equal(t, "2024-07-08", d.String())

	assert.Error(t, d.Scan(42))
}

func TestTransactionFilter_Matches(t *testing.T) {
	from, _ := ParseDate("2024-01-10")
	to, _ := ParseDate("2024-01-20")
	f := TransactionFilter{From: &from, To: &to}

	in, _ := ParseDate("2024-01-10")
	out, _ := ParseDate("2024-01-21")
	assert.True(t, f.Matches(in), "lower bound is inclusive")
	assert.False(t, f.Matches(out))
	assert.True(t, TransactionFilter{}.Matches(out))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAllTime, p)
	assert.Equal(t, 0, p.LookbackDays())

	p, err = ParsePeriod("Month")
	require.NoError(t, err)
	assert.Equal(t, 30, p.LookbackDays())

	_, err = ParsePeriod("week")
	assert.Error(t, err)
}

func TestComposition_JSONShape(t *testing.T) {
	c := Composition{
		Composition: []CompositionEntry{
			{Label: "SBER", Value: decimal.RequireFromString("250.5")},
			{Label: CashLabel, Value: decimal.NewFromInt(100)},
		},
		TotalPortfolioValue: decimal.RequireFromString("350.5"),
		Message:             "ok",
	}
	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"composition":[["SBER",250.5],["Cash (Balance)",100]],"total_portfolio_value":350.5,"message":"ok"}`, string(out))

	var back Composition
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "SBER", back.Composition[0].Label)
	assert.True(t, back.Composition[0].Value.Equal(decimal.RequireFromString("250.5")))
}

func TestSheetRow_ToInput(t *testing.T) {
	row := SheetRowFromValues([]string{"GAZP", "2024-02-01", "sell", "12,5"})
	in, err := row.ToInput()
	require.NoError(t, err)
	require.NotNil(t, in.Price)
	assert.True(t, in.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "GAZP", in.AssetName)

	short := SheetRowFromValues([]string{"GAZP", "2024-02-01", "Buy"})
	in, err = short.ToInput()
	require.NoError(t, err)
	assert.Nil(t, in.Price, "blank price is left for lookup")

	_, err = SheetRowFromValues([]string{"GAZP", "yesterday", "Buy", "1"}).ToInput()
	assert.Error(t, err)

	assert.True(t, SheetRowFromValues(SheetHeader).IsHeader())
}

func TestSheetRowFromInput(t *testing.T) {
	price := decimal.RequireFromString("99.90")
	d, _ := ParseDate("2024-04-01")
	row := SheetRowFromInput(TransactionInput{Date: d, Type: "Buy", Price: &price, AssetName: "YNDX"})
	want := []string{"YNDX", "2024-04-01", "Buy", "99.9"}
	if diff := cmp.Diff(want, row.Values()); diff != "" {
		t.Errorf("row values mismatch (-want +got):\n%s", diff)
	}
}

func TestSheetRow_JSONPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		want  string
	}{
		{"number", "250.50", `"Asset Price":250.5`},
		{"comma decimal", "12,5", `"Asset Price":12.5`},
		{"blank", "", `"Asset Price":""`},
		{"text", "n/a", `"Asset Price":"n/a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(SheetRow{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: tt.price})
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
			assert.Contains(t, string(data), `"Asset Name":"SBER"`)
			assert.Equal(t, 1, strings.Count(string(data), "Asset Price"))
		})
	}
}

func TestUserSettings_Apply(t *testing.T) {
	token := "t-123"
	off := false
	u := &User{GoogleSheetsAPIKey: "keep", AutoTransactionPriceEnabled: true}
	UserSettings{TinkoffInvestAPIToken: &token, AutoTransactionPriceEnabled: &off}.Apply(u)

	assert.Equal(t, "keep", u.GoogleSheetsAPIKey)
	assert.Equal(t, "t-123", u.TinkoffInvestAPIToken)
	assert.False(t, u.AutoTransactionPriceEnabled)
}
