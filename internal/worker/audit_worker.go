// Package worker turns record mutation events into audit trail entries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cuentas/internal/amqp"
	applog "cuentas/internal/log"
	"cuentas/internal/storage"
)

// AuditWorker consumes record events and appends one audit entry per event.
// Deletes arrive after the record is gone (or soft deleted), so the detail
// line degrades gracefully when the fetch misses.
type AuditWorker struct {
	store storage.RecordStore
	audit storage.AuditWriter
}

func NewAuditWorker(store storage.RecordStore, audit storage.AuditWriter) *AuditWorker {
	return &AuditWorker{store: store, audit: audit}
}

// HandleEvent processes a single record event. Returning an error requeues
// the delivery, so only persistent failures should propagate.
func (w *AuditWorker) HandleEvent(ctx context.Context, event *amqp.RecordEvent) error {
	entry := storage.AuditEntry{
		Op:       event.Op,
		Kind:     event.Kind,
		RecordID: event.RecordID,
		At:       event.Timestamp,
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	fields := applog.NewFields().WithOperation(event.Op)

	rec, err := w.store.GetRecord(ctx, event.Kind, event.RecordID)
	switch {
	case err == nil:
		entry.Detail = fmt.Sprintf("%s %s %s (%s)",
			rec.RowLabel(), rec.Amount.String(),
			rec.Date.UTC().Format("2006-01"), rec.Status)
		fields = fields.WithRecord(string(event.Kind), event.RecordID, rec.RowLabel(), rec.Amount.String())
	case errors.Is(err, storage.ErrRecordNotFound):
		entry.Detail = "record no longer present"
		fields[applog.FieldKind] = string(event.Kind)
		fields[applog.FieldRecordID] = event.RecordID
	default:
		slog.WarnContext(ctx, "Audit record fetch failed, requeueing", fields.WithError(err).ToSlice()...)
		return fmt.Errorf("fetch record %s: %w", event.RecordID, err)
	}

	if err := w.audit.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	slog.InfoContext(ctx, "Audit entry recorded", fields.ToSlice()...)
	return nil
}
