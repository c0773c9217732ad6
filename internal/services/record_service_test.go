package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"cuentas/internal/amqp"
	"cuentas/internal/core"
	"cuentas/internal/storage"
)

type fakePublisher struct {
	events []*amqp.RecordEvent
	err    error
}

func (f *fakePublisher) PublishRecordEvent(ctx context.Context, event *amqp.RecordEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func testRecord() core.Record {
	return core.Record{
		Kind:     core.KindExpense,
		Category: "Casa",
		Amount:   decimal.NewFromInt(100),
		Date:     core.YearMonth{Year: 2025, Month: 3}.Date(),
	}
}

func TestRecordServicePublishesMutationEvents(t *testing.T) {
	ctx := context.Background()
	publisher := &fakePublisher{}
	svc := NewRecordService(storage.NewMemoryStore(nil), publisher)

	created, err := svc.CreateRecord(ctx, testRecord())
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}

	amount := decimal.NewFromInt(150)
	if _, err := svc.UpdateRecord(ctx, core.KindExpense, created.ID, storage.RecordPatch{Amount: &amount}); err != nil {
		t.Fatalf("UpdateRecord: %v", err)
	}
	if err := svc.DeleteRecord(ctx, core.KindExpense, created.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}

	if len(publisher.events) != 3 {
		t.Fatalf("events = %d, want 3", len(publisher.events))
	}
	ops := []string{publisher.events[0].Op, publisher.events[1].Op, publisher.events[2].Op}
	want := []string{"create", "update", "delete"}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("event %d op = %q, want %q", i, ops[i], want[i])
		}
	}
	for _, event := range publisher.events {
		if event.RecordID != created.ID {
			t.Errorf("event record id = %q, want %q", event.RecordID, created.ID)
		}
		if event.Version == 0 {
			t.Error("event should carry the store revision")
		}
	}
}

func TestRecordServiceSwallowsPublishFailures(t *testing.T) {
	ctx := context.Background()
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewRecordService(storage.NewMemoryStore(nil), publisher)

	created, err := svc.CreateRecord(ctx, testRecord())
	if err != nil {
		t.Fatalf("CreateRecord must not fail on a publish error: %v", err)
	}
	if _, err := svc.GetRecord(ctx, core.KindExpense, created.ID); err != nil {
		t.Error("record should be persisted despite the broker outage")
	}
}

func TestRecordServiceWithoutPublisher(t *testing.T) {
	svc := NewRecordService(storage.NewMemoryStore(nil), nil)
	if _, err := svc.CreateRecord(context.Background(), testRecord()); err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
}

func TestRecordServiceDoesNotPublishFailedMutations(t *testing.T) {
	ctx := context.Background()
	publisher := &fakePublisher{}
	svc := NewRecordService(storage.NewMemoryStore(nil), publisher)

	if err := svc.DeleteRecord(ctx, core.KindExpense, "missing"); err != storage.ErrRecordNotFound {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
	if len(publisher.events) != 0 {
		t.Errorf("failed delete published %d events", len(publisher.events))
	}
}
