// Package eodhd provides a price oracle backed by the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
)

// flexDecimal handles JSON values that may be a number, a numeric string or "NA".
type flexDecimal struct {
	decimal.Decimal
	Valid bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		d, err := decimal.NewFromString(num.String())
		if err != nil {
			return nil
		}
		f.Decimal, f.Valid = d, true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "NA" || s == "N/A" {
			return nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil
		}
		f.Decimal, f.Valid = d, true
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into decimal", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements interfaces.PriceOracle
type Client struct {
	baseURL    string
	apiKey     string
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

// NewClient creates a new EODHD client. apiKey is used when a call
// carries no credential of its own.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path, apiKey string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) key(credential string) string {
	if credential != "" {
		return credential
	}
	return c.apiKey
}

// realTimeResponse is the /real-time payload
type realTimeResponse struct {
	Code  string      `json:"code"`
	Close flexDecimal `json:"close"`
}

// eodBarResponse is one /eod bar
type eodBarResponse struct {
	Date  string      `json:"date"`
	Close flexDecimal `json:"close"`
}

// CurrentPrice returns the latest real-time close for ticker.
func (c *Client) CurrentPrice(ctx context.Context, ticker, credential string) (decimal.Decimal, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	apiKey := c.key(credential)
	if ticker == "" || apiKey == "" {
		return decimal.Zero, false
	}

	var resp realTimeResponse
	if err := c.get(ctx, "/real-time/"+ticker, apiKey, nil, &resp); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Msg("EODHD real-time quote failed")
		return decimal.Zero, false
	}
	if !resp.Close.Valid || !resp.Close.IsPositive() {
		return decimal.Zero, false
	}
	return resp.Close.Decimal, true
}

// HistoricalClose returns the end-of-day close for ticker on date. Dates
// after today are absent without a network call.
func (c *Client) HistoricalClose(ctx context.Context, ticker string, date time.Time, credential string) (decimal.Decimal, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	day := date.Format("2006-01-02")
	if day > c.now().Format("2006-01-02") {
		return decimal.Zero, false
	}
	apiKey := c.key(credential)
	if ticker == "" || apiKey == "" {
		return decimal.Zero, false
	}

	params := url.Values{}
	params.Set("period", "d")
	params.Set("from", day)
	params.Set("to", day)

	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+ticker, apiKey, params, &bars); err != nil {
		c.logger.Warn().Err(err).Str("ticker", ticker).Str("date", day).Msg("EODHD end-of-day query failed")
		return decimal.Zero, false
	}
	for _, bar := range bars {
		if bar.Date == day && bar.Close.Valid {
			return bar.Close.Decimal, true
		}
	}
	return decimal.Zero, false
}
