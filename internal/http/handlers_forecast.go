package http

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/forecast"
)

type ratesRequest struct {
	Expenses []decimal.Decimal `json:"expenses"`
	Income   []decimal.Decimal `json:"income"`
}

type overrideRequest struct {
	Category string          `json:"category"`
	Concept  string          `json:"concept"`
	Month    int             `json:"month"` // 1..12 of the projected year
	Value    decimal.Decimal `json:"value"`
}

type commitRequest struct {
	Year int `json:"year"` // base year; the projection targets year+1
}

type commitResponse struct {
	Year     int      `json:"year"`
	Created  int      `json:"created"`
	Failures []string `json:"failures,omitempty"`
}

// baseYear resolves the projection base year from the query, defaulting to
// the current month's year.
func (s *Server) baseYear(r *http.Request) (int, bool) {
	param := r.URL.Query().Get("year")
	if param == "" {
		return s.engine.Current().Year, true
	}
	year, err := strconv.Atoi(param)
	if err != nil {
		return 0, false
	}
	return year, true
}

func (s *Server) buildProjection(r *http.Request, baseYear int) (*forecast.Projection, error) {
	s.forecastMu.Lock()
	defer s.forecastMu.Unlock()
	return s.forecaster.Build(r.Context(), baseYear, s.expenseRates, s.incomeRates, s.overrides)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	year, ok := s.baseYear(r)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid year"})
		return
	}
	proj, err := s.buildProjection(r, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

func (s *Server) handleForecastRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if (req.Expenses != nil && len(req.Expenses) != 12) || (req.Income != nil && len(req.Income) != 12) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "rates must cover exactly 12 months"})
		return
	}

	s.forecastMu.Lock()
	if req.Expenses != nil {
		copy(s.expenseRates[:], req.Expenses)
	}
	if req.Income != nil {
		copy(s.incomeRates[:], req.Income)
	}
	s.forecastMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForecastOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Month < 1 || req.Month > 12 {
		writeError(w, r, core.ErrInvalidMonth)
		return
	}

	key := forecast.KeyFor(sanitizeInput(req.Category), sanitizeInput(req.Concept))
	s.forecastMu.Lock()
	s.overrides.Set(key, req.Month, req.Value)
	s.forecastMu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForecastCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Year == 0 {
		req.Year = s.engine.Current().Year
	}

	proj, err := s.buildProjection(r, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	created, failures := s.forecaster.Commit(r.Context(), proj)
	resp := commitResponse{Year: proj.Year, Created: created}
	for _, f := range failures {
		resp.Failures = append(resp.Failures, f.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForecastExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "spreadsheet export is not configured"})
		return
	}

	var req commitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Year == 0 {
		req.Year = s.engine.Current().Year
	}

	proj, err := s.buildProjection(r, req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.exporter.ExportProjection(r.Context(), proj); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"year": proj.Year})
}
