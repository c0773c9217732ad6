// Package services composes the record store with the event pipeline. The
// store is the source of truth; event publishing is best effort and never
// fails the originating request.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	applog "cuentas/internal/log"
	"cuentas/internal/storage"
)

// EventPublisher is the slice of the AMQP client the service needs.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, event *amqp.RecordEvent) error
}

// RecordService decorates a RecordStore with mutation events. Reads pass
// straight through.
type RecordService struct {
	store     storage.RecordStore
	publisher EventPublisher
}

var _ storage.RecordStore = (*RecordService)(nil)

func NewRecordService(store storage.RecordStore, publisher EventPublisher) *RecordService {
	return &RecordService{store: store, publisher: publisher}
}

func (s *RecordService) ListRecords(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	return s.store.ListRecords(ctx, kind)
}

func (s *RecordService) GetRecord(ctx context.Context, kind core.Kind, id string) (core.Record, error) {
	return s.store.GetRecord(ctx, kind, id)
}

func (s *RecordService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *RecordService) Version(ctx context.Context) (int64, error) {
	return s.store.Version(ctx)
}

func (s *RecordService) CreateRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	created, err := s.store.CreateRecord(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}
	s.publish(ctx, applog.OpCreate, created.Kind, created.ID)
	return created, nil
}

func (s *RecordService) UpdateRecord(ctx context.Context, kind core.Kind, id string, patch storage.RecordPatch) (core.Record, error) {
	updated, err := s.store.UpdateRecord(ctx, kind, id, patch)
	if err != nil {
		return core.Record{}, err
	}
	s.publish(ctx, applog.OpUpdate, kind, id)
	return updated, nil
}

func (s *RecordService) DeleteRecord(ctx context.Context, kind core.Kind, id string) error {
	if err := s.store.DeleteRecord(ctx, kind, id); err != nil {
		return err
	}
	s.publish(ctx, applog.OpDelete, kind, id)
	return nil
}

// publish sends the mutation event. The record is already persisted, so a
// broker failure is logged and swallowed.
func (s *RecordService) publish(ctx context.Context, op string, kind core.Kind, id string) {
	if s.publisher == nil {
		return
	}
	version, err := s.store.Version(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read store version for event", "error", err)
	}
	event := amqp.NewRecordEvent(op, kind, id, version)
	if err := s.publisher.PublishRecordEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"op", op,
			"record_id", id,
			"error", err)
	}
}

// Close releases the store and publisher when they hold connections.
func (s *RecordService) Close() error {
	var errs []error
	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close record service: %v", errs)
	}
	return nil
}
