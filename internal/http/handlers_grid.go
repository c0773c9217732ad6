package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/cache"
	"cuentas/internal/core"
	"cuentas/internal/grid"
)

// handleGrid serves the aggregated category×month matrix. Snapshots are
// memoized keyed on the store revision, so any record mutation invalidates
// them without explicit bookkeeping.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	opts := grid.Options{
		CurrentMonth: s.engine.Current(),
		ShowForecast: true,
		Now:          time.Now(),
	}

	yearParam := r.URL.Query().Get("year")
	if yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid year"})
			return
		}
		opts.Year = &year
	}
	if v := r.URL.Query().Get("forecast"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid forecast flag"})
			return
		}
		opts.ShowForecast = show
	}

	version, err := s.store.Version(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	key := cache.SnapshotKey(version, opts.CurrentMonth.Key(), yearParam, opts.ShowForecast)
	if g, ok := s.gridCache.Get(key); ok {
		slog.DebugContext(r.Context(), "Grid cache hit", "key", key)
		writeJSON(w, http.StatusOK, g)
		return
	}

	expenses, err := s.store.ListRecords(r.Context(), core.KindExpense)
	if err != nil {
		writeError(w, r, err)
		return
	}
	income, err := s.store.ListRecords(r.Context(), core.KindIncome)
	if err != nil {
		writeError(w, r, err)
		return
	}

	g := grid.Build(expenses, income, opts)
	s.gridCache.Set(key, g)
	writeJSON(w, http.StatusOK, g)
}

type categoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

type yearSummary struct {
	Year     int             `json:"year"`
	Expenses []categoryTotal `json:"expenses"`
	Income   []categoryTotal `json:"income"`
	Net      decimal.Decimal `json:"net"`
}

// handleYearSummary serves per-category yearly totals for both sides, plus
// the net balance.
func (s *Server) handleYearSummary(w http.ResponseWriter, r *http.Request) {
	year := s.engine.Current().Year
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid year"})
			return
		}
		year = parsed
	}

	opts := grid.Options{
		Year:         &year,
		CurrentMonth: s.engine.Current(),
	}

	summary := yearSummary{Year: year, Net: decimal.Zero}
	for _, kind := range []core.Kind{core.KindExpense, core.KindIncome} {
		records, err := s.store.ListRecords(r.Context(), kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var g *grid.Grid
		if kind == core.KindExpense {
			g = grid.Build(records, nil, opts)
		} else {
			g = grid.Build(nil, records, opts)
		}

		totals := make([]categoryTotal, 0, len(g.Rows))
		for _, row := range g.Rows {
			totals = append(totals, categoryTotal{Category: row.Category, Total: row.Total})
		}
		if kind == core.KindExpense {
			summary.Expenses = totals
			summary.Net = summary.Net.Sub(g.GrandTotal)
		} else {
			summary.Income = totals
			summary.Net = summary.Net.Add(g.GrandTotal)
		}
	}
	writeJSON(w, http.StatusOK, summary)
}
