package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cuentas/internal/core"
)

// MemoryStore is an in-process RecordStore. It backs tests and the
// zero-config "memory" backend.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[core.Kind]map[string]core.Record
	categories []core.Category
	version    int64
	audit      []AuditEntry
}

func NewMemoryStore(categories []core.Category) *MemoryStore {
	return &MemoryStore{
		records: map[core.Kind]map[string]core.Record{
			core.KindExpense: {},
			core.KindIncome:  {},
		},
		categories: append([]core.Category(nil), categories...),
	}
}

func (s *MemoryStore) ListRecords(_ context.Context, kind core.Kind) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.records[kind]
	out := make([]core.Record, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetRecord(_ context.Context, kind core.Kind, id string) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[kind][id]
	if !ok {
		return core.Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) CreateRecord(_ context.Context, rec core.Record) (core.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = core.DeriveStatus(rec.Status, rec.Note)
	if rec.Kind == core.KindExpense {
		rec.ExpenseType = core.NormalizeExpenseType(rec.ExpenseType)
	}
	if err := rec.Validate(); err != nil {
		return core.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Kind][rec.ID] = rec
	s.version++
	return rec, nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, kind core.Kind, id string, patch RecordPatch) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[kind][id]
	if !ok {
		return core.Record{}, ErrRecordNotFound
	}
	if patch.Amount != nil {
		rec.Amount = *patch.Amount
	}
	if patch.Note != nil {
		rec.Note = *patch.Note
	}
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.ExpenseType != nil {
		rec.ExpenseType = core.NormalizeExpenseType(*patch.ExpenseType)
	}
	s.records[kind][id] = rec
	s.version++
	return rec, nil
}

func (s *MemoryStore) DeleteRecord(_ context.Context, kind core.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[kind][id]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records[kind], id)
	s.version++
	return nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

func (s *MemoryStore) Version(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	s.audit = append(s.audit, entry)
	return nil
}

// AuditEntries returns a copy of the audit trail, oldest first.
func (s *MemoryStore) AuditEntries() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEntry(nil), s.audit...)
}
