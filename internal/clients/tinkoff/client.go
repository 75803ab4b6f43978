// Package tinkoff provides a price oracle backed by the Tinkoff Invest REST API
package tinkoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
)

const (
	DefaultBaseURL   = "https://invest-public-api.tinkoff.ru/rest"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second

	instrumentsService = "/tinkoff.public.invest.api.contract.v1.InstrumentsService"
	marketDataService  = "/tinkoff.public.invest.api.contract.v1.MarketDataService"
)

// errNoInstrument means the ticker did not match any instrument.
var errNoInstrument = errors.New("instrument not found")

// Client implements interfaces.PriceOracle
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

var _ interfaces.PriceOracle = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithClock overrides the time source used to reject future dates
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Tinkoff Invest client. The API token is supplied
// per call since each user brings their own.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Tinkoff API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// quotation is the units+nano fixed-point number used by the API.
// Units arrive as a JSON string because they are int64 on the wire.
type quotation struct {
	Units json.Number `json:"units"`
	Nano  int32       `json:"nano"`
}

func (q quotation) Decimal() (decimal.Decimal, error) {
	units := decimal.Zero
	if q.Units != "" {
		var err error
		units, err = decimal.NewFromString(string(q.Units))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid units %q: %w", q.Units, err)
		}
	}
	return units.Add(decimal.New(int64(q.Nano), -9)), nil
}

type instrument struct {
	FIGI   string `json:"figi"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

type findInstrumentResponse struct {
	Instruments []instrument `json:"instruments"`
}

type candle struct {
	Close quotation `json:"close"`
	Time  time.Time `json:"time"`
}

type getCandlesResponse struct {
	Candles []candle `json:"candles"`
}

type lastPrice struct {
	FIGI  string    `json:"figi"`
	Price quotation `json:"price"`
}

type getLastPricesResponse struct {
	LastPrices []lastPrice `json:"lastPrices"`
}

// post performs a rate-limited POST to a service method
func (c *Client) post(ctx context.Context, method, token string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("method", method).Msg("Tinkoff API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Endpoint:   method,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// findFIGI resolves a ticker to the FIGI of its best match. An exact ticker
// match is preferred over the first search hit.
func (c *Client) findFIGI(ctx context.Context, ticker, token string) (string, error) {
	var resp findInstrumentResponse
	err := c.post(ctx, instrumentsService+"/FindInstrument", token, map[string]interface{}{
		"query": ticker,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Instruments) == 0 {
		return "", errNoInstrument
	}
	for _, inst := range resp.Instruments {
		if strings.EqualFold(inst.Ticker, ticker) && inst.FIGI != "" {
			return inst.FIGI, nil
		}
	}
	if resp.Instruments[0].FIGI == "" {
		return "", errNoInstrument
	}
	return resp.Instruments[0].FIGI, nil
}

// HistoricalClose returns the daily close for ticker on date. Dates after
// today are absent without a network call.
func (c *Client) HistoricalClose(ctx context.Context, ticker string, date time.Time, credential string) (decimal.Decimal, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	today := c.now()
	if day.Format("2006-01-02") > today.Format("2006-01-02") {
		c.logger.Debug().Str("ticker", ticker).Str("date", day.Format("2006-01-02")).Msg("Future date, no price")
		return decimal.Zero, false
	}
	if credential == "" || ticker == "" {
		return decimal.Zero, false
	}

	figi, err := c.findFIGI(ctx, ticker, credential)
	if err != nil {
		c.warn(err, ticker, "FindInstrument failed")
		return decimal.Zero, false
	}

	var resp getCandlesResponse
	err = c.post(ctx, marketDataService+"/GetCandles", credential, map[string]interface{}{
		"figi":     figi,
		"from":     day.Format(time.RFC3339),
		"to":       day.AddDate(0, 0, 1).Format(time.RFC3339),
		"interval": "CANDLE_INTERVAL_DAY",
	}, &resp)
	if err != nil {
		c.warn(err, ticker, "GetCandles failed")
		return decimal.Zero, false
	}

	for _, cdl := range resp.Candles {
		if cdl.Time.UTC().Format("2006-01-02") != day.Format("2006-01-02") {
			continue
		}
		price, err := cdl.Close.Decimal()
		if err != nil {
			c.warn(err, ticker, "Invalid candle close")
			return decimal.Zero, false
		}
		return price, true
	}

	c.logger.Debug().Str("ticker", ticker).Str("date", day.Format("2006-01-02")).Msg("No candle for date")
	return decimal.Zero, false
}

// CurrentPrice returns the last traded price for ticker.
func (c *Client) CurrentPrice(ctx context.Context, ticker, credential string) (decimal.Decimal, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if credential == "" || ticker == "" {
		return decimal.Zero, false
	}

	figi, err := c.findFIGI(ctx, ticker, credential)
	if err != nil {
		c.warn(err, ticker, "FindInstrument failed")
		return decimal.Zero, false
	}

	var resp getLastPricesResponse
	err = c.post(ctx, marketDataService+"/GetLastPrices", credential, map[string]interface{}{
		"figi": []string{figi},
	}, &resp)
	if err != nil {
		c.warn(err, ticker, "GetLastPrices failed")
		return decimal.Zero, false
	}

	for _, lp := range resp.LastPrices {
		if lp.FIGI != "" && lp.FIGI != figi {
			continue
		}
		price, err := lp.Price.Decimal()
		if err != nil || price.IsZero() {
			return decimal.Zero, false
		}
		return price, true
	}
	return decimal.Zero, false
}

func (c *Client) warn(err error, ticker, msg string) {
	if errors.Is(err, errNoInstrument) {
		c.logger.Info().Str("ticker", ticker).Msg("Ticker not found at Tinkoff")
		return
	}
	c.logger.Warn().Err(err).Str("ticker", ticker).Msg(msg)
}
