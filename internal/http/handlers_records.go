package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

type createRecordRequest struct {
	Category    string          `json:"category"`
	CategoryID  string          `json:"category_id"`
	Concept     string          `json:"concept"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"` // anything ParseYearMonth accepts
	Note        string          `json:"note"`
	Status      string          `json:"status"`
	ExpenseType string          `json:"expense_type"`
	IsRecurring bool            `json:"is_recurring"`
	Currency    string          `json:"currency"`
}

type updateRecordRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Note        *string          `json:"note"`
	Status      *string          `json:"status"`
	ExpenseType *string          `json:"expense_type"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.store.ListRecords(r.Context(), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req createRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// Dates normalize to the month slot: first day, noon UTC.
	month, ok := core.ParseYearMonth(req.Date)
	if !ok {
		writeError(w, r, core.ErrEmptyDate)
		return
	}

	rec := core.Record{
		Kind:        kind,
		CategoryID:  req.CategoryID,
		Category:    sanitizeInput(req.Category),
		Concept:     sanitizeInput(req.Concept),
		Amount:      req.Amount,
		Date:        month.Date(),
		Note:        sanitizeInput(req.Note),
		Status:      core.DeriveStatus(core.RecordStatus(req.Status), req.Note),
		IsRecurring: req.IsRecurring,
		Currency:    req.Currency,
	}
	if kind == core.KindExpense {
		rec.ExpenseType = core.NormalizeExpenseType(core.ExpenseType(req.ExpenseType))
	}
	if err := rec.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.store.CreateRecord(r.Context(), rec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.store.GetRecord(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req updateRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Amount != nil && req.Amount.IsNegative() {
		writeError(w, r, core.ErrInvalidAmount)
		return
	}

	patch := storage.RecordPatch{Amount: req.Amount, Note: req.Note}
	if req.Status != nil {
		status := core.RecordStatus(*req.Status)
		if status != core.StatusActual && status != core.StatusForecast {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid status"})
			return
		}
		patch.Status = &status
	}
	if req.ExpenseType != nil {
		et := core.NormalizeExpenseType(core.ExpenseType(*req.ExpenseType))
		patch.ExpenseType = &et
	}

	updated, err := s.store.UpdateRecord(r.Context(), kind, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.DeleteRecord(r.Context(), kind, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
