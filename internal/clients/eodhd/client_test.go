package eodhd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCurrentPrice_ParsesResponse(t *testing.T) {
	mockResp := map[string]interface{}{
		"code":      "SBER.MCX",
		"timestamp": int64(1711670340),
		"close":     271.45,
	}

	var capturedPath, capturedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedToken = r.URL.Query().Get("api_token")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("config-key", WithBaseURL(srv.URL))
	price, ok := client.CurrentPrice(context.Background(), "sber.mcx", "")
	if !ok {
		t.Fatal("expected a price")
	}
	if capturedPath != "/real-time/SBER.MCX" {
		t.Errorf("expected path /real-time/SBER.MCX, got %s", capturedPath)
	}
	if capturedToken != "config-key" {
		t.Errorf("expected config key fallback, got %q", capturedToken)
	}
	if price.String() != "271.45" {
		t.Errorf("expected 271.45, got %s", price)
	}
}

func TestCurrentPrice_CredentialOverridesKey(t *testing.T) {
	var capturedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedToken = r.URL.Query().Get("api_token")
		w.Write([]byte(`{"code":"X","close":"12.5"}`))
	}))
	defer srv.Close()

	client := NewClient("config-key", WithBaseURL(srv.URL))
	price, ok := client.CurrentPrice(context.Background(), "X", "user-key")
	if !ok || price.String() != "12.5" {
		t.Fatalf("expected 12.5, got %s (ok=%v)", price, ok)
	}
	if capturedToken != "user-key" {
		t.Errorf("expected user-key, got %q", capturedToken)
	}
}

func TestCurrentPrice_NAIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"X","close":"NA"}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	if _, ok := client.CurrentPrice(context.Background(), "X", ""); ok {
		t.Error("expected absent price for NA close")
	}
}

func TestCurrentPrice_HTTPErrorIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Ticker Not Found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	if _, ok := client.CurrentPrice(context.Background(), "NOPE", ""); ok {
		t.Error("expected absent price on 404")
	}
}

func TestCurrentPrice_NoKey(t *testing.T) {
	client := NewClient("", WithBaseURL("http://127.0.0.1:1"))
	if _, ok := client.CurrentPrice(context.Background(), "X", ""); ok {
		t.Error("expected absent price without a key")
	}
}

func TestHistoricalClose(t *testing.T) {
	var capturedQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		capturedQuery = map[string]string{"from": q.Get("from"), "to": q.Get("to"), "period": q.Get("period")}
		w.Write([]byte(`[{"date":"2024-03-01","open":1,"close":101.25,"volume":10}]`))
	}))
	defer srv.Close()

	now := func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }
	client := NewClient("k", WithBaseURL(srv.URL), WithClock(now))

	price, ok := client.HistoricalClose(context.Background(), "AAPL.US", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "")
	if !ok || price.String() != "101.25" {
		t.Fatalf("expected 101.25, got %s (ok=%v)", price, ok)
	}
	if capturedQuery["from"] != "2024-03-01" || capturedQuery["to"] != "2024-03-01" || capturedQuery["period"] != "d" {
		t.Errorf("unexpected query %v", capturedQuery)
	}
}

func TestHistoricalClose_FutureDate(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	now := func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }
	client := NewClient("k", WithBaseURL(srv.URL), WithClock(now))

	if _, ok := client.HistoricalClose(context.Background(), "AAPL.US", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), ""); ok {
		t.Error("expected absent price for a future date")
	}
	if called {
		t.Error("expected no request for a future date")
	}
}

func TestHistoricalClose_NoBarForDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL))
	if _, ok := client.HistoricalClose(context.Background(), "AAPL.US", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), ""); ok {
		t.Error("expected absent price on a holiday")
	}
}
