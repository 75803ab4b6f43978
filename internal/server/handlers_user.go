package server

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// routeUserSettings handles GET and PUT /users/me/settings.
func (s *Server) routeUserSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		u, err := s.app.AccountService.GetSettings(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)

	case http.MethodPut:
		var settings models.UserSettings
		if !DecodeJSON(w, r, &settings) {
			return
		}
		u, err := s.app.AccountService.UpdateSettings(r.Context(), settings)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, u)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut)
	}
}

// handleTopUp handles POST /users/me/top-up.
func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	s.handleCashMove(w, r, s.app.AccountService.TopUp)
}

// handleWithdraw handles POST /users/me/withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCashMove(w, r, s.app.AccountService.Withdraw)
}

func (s *Server) handleCashMove(w http.ResponseWriter, r *http.Request,
	move func(ctx context.Context, amount decimal.Decimal) (*models.User, error)) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.AmountRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	u, err := move(r.Context(), req.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

// handleSetKey handles POST /auth/set-key?api_key=.
func (s *Server) handleSetKey(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if _, err := s.app.AccountService.SetSheetsAPIKey(r.Context(), r.URL.Query().Get("api_key")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Spreadsheet API key updated successfully"})
}
