package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/editor"
)

type quickEditRequest struct {
	Kind     string          `json:"kind"`
	Category string          `json:"category"`
	Month    string          `json:"month"` // YYYY-MM
	Target   decimal.Decimal `json:"target"`
	Forecast bool            `json:"forecast"`
}

type conceptEditRequest struct {
	Kind     string          `json:"kind"`
	Category string          `json:"category"`
	Concept  string          `json:"concept"`
	Month    string          `json:"month"`
	Mode     string          `json:"mode"` // edit|add|subtract
	Value    decimal.Decimal `json:"value"`
	Note     *string         `json:"note"`
	Forecast bool            `json:"forecast"`
}

type mutationResponse struct {
	Op     editor.Op    `json:"op"`
	Record *core.Record `json:"record,omitempty"`
}

func (s *Server) handleCellEdit(w http.ResponseWriter, r *http.Request) {
	var req quickEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	kind, month, err := parseCellTarget(req.Kind, req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	mut, err := s.resolver.ApplyQuickEdit(r.Context(), editor.QuickEdit{
		Kind:         kind,
		Category:     sanitizeInput(req.Category),
		Month:        month,
		Target:       req.Target,
		Forecast:     req.Forecast,
		CurrentMonth: s.engine.Current(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(mut))
}

func (s *Server) handleConceptEdit(w http.ResponseWriter, r *http.Request) {
	var req conceptEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	kind, month, err := parseCellTarget(req.Kind, req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Note != nil {
		clean := sanitizeInput(*req.Note)
		req.Note = &clean
	}

	mut, err := s.resolver.ApplyConceptEdit(r.Context(), editor.ConceptEdit{
		Kind:         kind,
		Category:     sanitizeInput(req.Category),
		Concept:      sanitizeInput(req.Concept),
		Month:        month,
		Mode:         editor.Mode(req.Mode),
		Value:        req.Value,
		Note:         req.Note,
		Forecast:     req.Forecast,
		CurrentMonth: s.engine.Current(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(mut))
}

func parseCellTarget(kind, month string) (core.Kind, core.YearMonth, error) {
	k := core.Kind(kind)
	if k != core.KindExpense && k != core.KindIncome {
		return "", core.YearMonth{}, core.ErrInvalidKind
	}
	m, ok := core.ParseKey(month)
	if !ok {
		return "", core.YearMonth{}, core.ErrInvalidMonth
	}
	return k, m, nil
}

func toMutationResponse(mut editor.Mutation) mutationResponse {
	resp := mutationResponse{Op: mut.Op}
	if mut.Op != editor.OpNone {
		resp.Record = &mut.Record
	}
	return resp
}
