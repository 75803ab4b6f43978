package server

import (
	"net/http"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// handleSheetsRead handles GET /google_sheets/read_transactions?spreadsheet_id=.
func (s *Server) handleSheetsRead(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	rows, err := s.app.SheetSyncService.ReadTransactions(r.Context(), r.URL.Query().Get("spreadsheet_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.SheetRow{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"transactions": rows})
}

// handleSheetsWrite handles POST /google_sheets/write_transaction?spreadsheet_id=.
func (s *Server) handleSheetsWrite(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var in models.TransactionInput
	if !DecodeJSON(w, r, &in) {
		return
	}
	if err := s.app.SheetSyncService.WriteTransaction(r.Context(), r.URL.Query().Get("spreadsheet_id"), in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Transaction written to spreadsheet"})
}

// handleSheetsImport handles POST /google_sheets/import?spreadsheet_id=.
func (s *Server) handleSheetsImport(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	res, err := s.app.SheetSyncService.ImportTransactions(r.Context(), r.URL.Query().Get("spreadsheet_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
