package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cuentas/internal/core"
	"cuentas/internal/storage"
	"cuentas/internal/transition"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrEmptyDate),
		errors.Is(err, transition.ErrInvalidTarget):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, transition.ErrBackwardNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, transition.ErrConfirmationRequired):
		status = http.StatusConflict
	}

	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
	} else {
		slog.WarnContext(r.Context(), "Request rejected", "error", err, "path", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// kindFromPath resolves the record kind from the route, e.g. /api/expenses.
func kindFromPath(r *http.Request) (core.Kind, error) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/expenses"):
		return core.KindExpense, nil
	case strings.HasPrefix(r.URL.Path, "/api/income"):
		return core.KindIncome, nil
	default:
		return "", core.ErrInvalidKind
	}
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
