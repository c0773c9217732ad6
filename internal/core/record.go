package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

const (
	StatusActual   RecordStatus = "actual"
	StatusForecast RecordStatus = "forecast"
)

const (
	Mensual     ExpenseType = "MENSUAL"
	Semestral   ExpenseType = "SEMESTRAL"
	Anual       ExpenseType = "ANUAL"
	Excepcional ExpenseType = "EXCEPCIONAL"
)

// FallbackCategory is the row label for records without a usable category,
// concept or note.
const FallbackCategory = "Sin categoría"

type (
	// Kind distinguishes expense records from income records. The shape is
	// shared; sign is a presentation concern elsewhere.
	Kind string

	// RecordStatus partitions a record into the actual or the forecast bucket
	// of its month. It replaces the legacy convention of tagging forecasts
	// through a "forecast" substring in the free-text note.
	RecordStatus string

	// ExpenseType governs how a December baseline is spread across a
	// projected year.
	ExpenseType string

	Category struct {
		ID   string
		Name string
		Kind Kind
	}

	// Record is a single transaction, expense or income. Date is normalized
	// to the first day of its month at noon UTC so the month key never
	// drifts across timezones.
	Record struct {
		ID          string
		Kind        Kind
		CategoryID  string
		Category    string
		Concept     string
		Amount      decimal.Decimal
		Date        time.Time
		Note        string
		Status      RecordStatus
		ExpenseType ExpenseType // expenses only
		IsRecurring bool        // income only
		Currency    string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidKind   = errors.New("invalid record kind")
	ErrEmptyDate     = errors.New("record date cannot be zero")
)

// IsForecast reports whether the record is a forecast placeholder rather
// than a committed actual.
func (r Record) IsForecast() bool {
	return r.Status == StatusForecast
}

// Month returns the record's month key, ok=false when the date is unusable.
// Records with an unusable date are excluded from aggregation, never fatal.
func (r Record) Month() (YearMonth, bool) {
	if r.Date.IsZero() {
		return YearMonth{}, false
	}
	return FromTime(r.Date), true
}

// RowLabel resolves the grid row a record belongs to: category name, then
// concept, then note, then the generic fallback label.
func (r Record) RowLabel() string {
	if s := strings.TrimSpace(r.Category); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Concept); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Note); s != "" {
		return s
	}
	return FallbackCategory
}

// ConceptLabel resolves the sub-item label within a row, with the same
// fallback chain the row label uses below the category level.
func (r Record) ConceptLabel() string {
	if s := strings.TrimSpace(r.Concept); s != "" {
		return s
	}
	if s := strings.TrimSpace(r.Note); s != "" {
		return s
	}
	return FallbackCategory
}

func (r Record) Validate() error {
	if r.Kind != KindExpense && r.Kind != KindIncome {
		return ErrInvalidKind
	}
	if r.Date.IsZero() {
		return ErrEmptyDate
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// DeriveStatus resolves a record's status from stored data. Rows written
// before the explicit status column existed carry the convention of a
// "forecast" substring (any case) in the note; they normalize to
// StatusForecast on load so the grid's bucket invariant self-heals.
func DeriveStatus(status RecordStatus, note string) RecordStatus {
	switch status {
	case StatusActual, StatusForecast:
		return status
	}
	if strings.Contains(strings.ToLower(note), "forecast") {
		return StatusForecast
	}
	return StatusActual
}

// NormalizeExpenseType defaults absent recurrence types to MENSUAL.
func NormalizeExpenseType(t ExpenseType) ExpenseType {
	switch t {
	case Mensual, Semestral, Anual, Excepcional:
		return t
	}
	return Mensual
}
