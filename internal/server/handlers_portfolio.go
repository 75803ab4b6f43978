package server

import (
	"net/http"
	"strconv"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

// handlePortfolioSummary handles GET /portfolio/summary?period=.
func (s *Server) handlePortfolioSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_input")
		return
	}

	summary, err := s.app.ValuationService.Summary(r.Context(), period)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// handlePortfolioComposition handles GET /portfolio/composition.
func (s *Server) handlePortfolioComposition(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	comp, err := s.app.ValuationService.Composition(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, comp)
}

// handleCompositionChart handles GET /portfolio/composition/chart.
func (s *Server) handleCompositionChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	png, err := s.app.ValuationService.CompositionChart(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// routePortfolios handles GET and POST /portfolios.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		portfolios, err := s.app.AccountService.ListPortfolios(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if portfolios == nil {
			portfolios = []models.Portfolio{}
		}
		WriteJSON(w, http.StatusOK, portfolios)

	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		p, err := s.app.AccountService.CreatePortfolio(r.Context(), req.Name)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}
