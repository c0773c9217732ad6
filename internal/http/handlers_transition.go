package http

import (
	"net/http"

	"cuentas/internal/core"
	"cuentas/internal/transition"
)

type advanceRequest struct {
	Target    string `json:"target"` // YYYY-MM
	Confirmed bool   `json:"confirmed"`
}

type advanceResponse struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Purged   int      `json:"purged"`
	Promoted int      `json:"promoted"`
	Failures []string `json:"failures,omitempty"`
}

func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	current := s.engine.Current()
	writeJSON(w, http.StatusOK, map[string]string{
		"current": current.Key(),
		"label":   current.Label(),
	})
}

func (s *Server) handleAdvanceMonth(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	target, ok := core.ParseKey(req.Target)
	if !ok {
		writeError(w, r, transition.ErrInvalidTarget)
		return
	}

	res, err := s.engine.Advance(r.Context(), target, transition.Options{
		Admin:     s.adminMode,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The pointer move changes every snapshot key, so the memoized grids are
	// unreachable from now on. Drop them instead of waiting out the TTL.
	s.gridCache.Purge()

	resp := advanceResponse{
		From:     res.From.Key(),
		To:       res.To.Key(),
		Purged:   res.Purged,
		Promoted: res.Promoted,
	}
	for _, f := range res.Failures {
		resp.Failures = append(resp.Failures, f.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}
