package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// defaultListLimit caps transaction listings when no limit is given.
const defaultListLimit = 100

// routeTransactions handles GET and POST /transactions.
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTransactionList(w, r)
	case http.MethodPost:
		s.handleTransactionCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeTransactionByID handles PUT and DELETE /transactions/{id}.
func (s *Server) routeTransactionByID(w http.ResponseWriter, r *http.Request) {
	raw := PathParam(r, "/transactions/", "")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 || strings.TrimPrefix(r.URL.Path, "/transactions/") != raw {
		WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handleTransactionUpdate(w, r, id)
	case http.MethodDelete:
		s.handleTransactionDelete(w, r, id)
	default:
		RequireMethod(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	var filter models.TransactionFilter
	var err error
	if filter.Skip, err = queryInt(r, "skip", 0); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", defaultListLimit); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if filter.From, err = queryDate(r, "from"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if filter.To, err = queryDate(r, "to"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	txs, err := s.app.LedgerService.ListTransactions(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	WriteJSON(w, http.StatusOK, txs)
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	var in models.TransactionInput
	if !DecodeJSON(w, r, &in) {
		return
	}
	tx, err := s.app.LedgerService.CreateTransaction(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var in models.TransactionInput
	if !DecodeJSON(w, r, &in) {
		return
	}
	tx, err := s.app.LedgerService.UpdateTransaction(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

func (s *Server) handleTransactionDelete(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.app.LedgerService.DeleteTransaction(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Transaction deleted"})
}

// handleAssetList handles GET /assets?skip&limit.
func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	assets, err := s.app.LedgerService.ListAssets(r.Context(), skip, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	WriteJSON(w, http.StatusOK, assets)
}

// handleEstimatePrice handles GET /asset/estimate-price?ticker&target_date.
func (s *Server) handleEstimatePrice(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ticker := r.URL.Query().Get("ticker")
	date, err := queryDate(r, "target_date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if date == nil {
		s.writeServiceError(w, r, fmt.Errorf("%w: target_date is required", common.ErrInvalidInput))
		return
	}

	est, err := s.app.PricingService.EstimatePrice(r.Context(), ticker, date.Time)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, est)
}
