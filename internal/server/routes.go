package server

import (
	"net/http"
	"time"

	"github.com/nikitakreml/invest-track-app/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Ledger
	mux.HandleFunc("/transactions", s.routeTransactions)
	mux.HandleFunc("/transactions/", s.routeTransactionByID)
	mux.HandleFunc("/assets", s.handleAssetList)
	mux.HandleFunc("/asset/estimate-price", s.handleEstimatePrice)

	// Valuation
	mux.HandleFunc("/portfolio/summary", s.handlePortfolioSummary)
	mux.HandleFunc("/portfolio/composition", s.handlePortfolioComposition)
	mux.HandleFunc("/portfolio/composition/chart", s.handleCompositionChart)
	mux.HandleFunc("/portfolios", s.routePortfolios)

	// User
	mux.HandleFunc("/users/me/settings", s.routeUserSettings)
	mux.HandleFunc("/users/me/top-up", s.handleTopUp)
	mux.HandleFunc("/users/me/withdraw", s.handleWithdraw)
	mux.HandleFunc("/auth/set-key", s.handleSetKey)

	// Spreadsheet
	mux.HandleFunc("/google_sheets/read_transactions", s.handleSheetsRead)
	mux.HandleFunc("/google_sheets/write_transaction", s.handleSheetsWrite)
	mux.HandleFunc("/google_sheets/import", s.handleSheetsImport)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	bi := common.CurrentBuild()
	resp := map[string]string{
		"version": bi.Version,
		"build":   bi.Build,
		"commit":  bi.Commit,
	}
	if !s.app.StartupTime.IsZero() {
		resp["uptime"] = time.Since(s.app.StartupTime).Round(time.Second).String()
	}
	WriteJSON(w, http.StatusOK, resp)
}
