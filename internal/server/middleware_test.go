package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

func TestIdentity_BearerTokenSelectsUser(t *testing.T) {
	env := newTestEnv(t)

	token, err := env.app.Tokens.GenerateToken(2)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/users/me/top-up", strings.NewReader(`{"amount": 5}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var u models.User
	decode(t, rec, &u)
	if u.ID != 2 || u.Balance.String() != "1005" {
		t.Errorf("unexpected user: %+v", u)
	}

	// The default user is untouched.
	if got := env.balance(t); got != "1000" {
		t.Errorf("default user balance = %s, want 1000", got)
	}
}

func TestIdentity_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/users/me/settings", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusUnauthorized)
	if !strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Errorf("missing WWW-Authenticate challenge: %q", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestIdentity_RequireToken(t *testing.T) {
	env := newTestEnv(t, func(c *common.Config) { c.Auth.RequireToken = true })

	rec := env.do(t, http.MethodGet, "/users/me/settings", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/api/health", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		origin string
		allow  string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"http://localhost", "http://localhost"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)

			expectStatus(t, rec, http.StatusNoContent)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.allow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.allow)
			}
		})
	}
}

func TestCorrelationID(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "req-123" {
		t.Errorf("X-Correlation-ID = %q, want req-123", got)
	}

	rec = env.do(t, http.MethodGet, "/api/health", nil)
	if got := rec.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("expected generated 8-char correlation id, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	expectStatus(t, rec, http.StatusInternalServerError)
}

func TestPathParam(t *testing.T) {
	tests := []struct {
		path, prefix, suffix, want string
	}{
		{"/transactions/12", "/transactions/", "", "12"},
		{"/transactions/12/extra", "/transactions/", "", "12"},
		{"/other/12", "/transactions/", "", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := PathParam(r, tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("PathParam(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
