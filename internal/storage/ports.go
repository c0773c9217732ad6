// Package storage owns persistence for transaction records, categories and
// the audit trail. Two implementations exist: SQLite (the default backend)
// and an in-memory store used by tests and the zero-config backend.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordPatch is a partial update. The resolver and the transition engine
// adjust amount, note or status; they never rewrite a date to move a record
// between months.
type RecordPatch struct {
	Amount      *decimal.Decimal
	Note        *string
	Status      *core.RecordStatus
	ExpenseType *core.ExpenseType
}

// RecordStore is the port the derived-data engines mutate records through.
type RecordStore interface {
	ListRecords(ctx context.Context, kind core.Kind) ([]core.Record, error)
	GetRecord(ctx context.Context, kind core.Kind, id string) (core.Record, error)
	CreateRecord(ctx context.Context, rec core.Record) (core.Record, error)
	UpdateRecord(ctx context.Context, kind core.Kind, id string, patch RecordPatch) (core.Record, error)
	DeleteRecord(ctx context.Context, kind core.Kind, id string) error

	ListCategories(ctx context.Context) ([]core.Category, error)

	// Version is a monotonically increasing counter bumped on every
	// mutation. Derived grid/forecast snapshots are memoized against it.
	Version(ctx context.Context) (int64, error)
}

// AuditEntry is one row of the mutation audit trail fed by the worker.
type AuditEntry struct {
	ID       string
	Op       string
	Kind     core.Kind
	RecordID string
	Detail   string
	At       time.Time
}

// AuditWriter persists audit entries.
type AuditWriter interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}
