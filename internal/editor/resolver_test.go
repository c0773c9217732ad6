package editor

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

var (
	mar = core.YearMonth{Year: 2025, Month: 3}
	nov = core.YearMonth{Year: 2025, Month: 11}
)

func seedCell(t *testing.T, store *storage.MemoryStore, kind core.Kind, category, concept string, amount float64, month core.YearMonth, status core.RecordStatus) core.Record {
	t.Helper()
	rec, err := store.CreateRecord(context.Background(), core.Record{
		Kind:     kind,
		Category: category,
		Concept:  concept,
		Amount:   decimal.NewFromFloat(amount),
		Date:     month.Date(),
		Status:   status,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestQuickEditAdjustsFirstRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	first := seedCell(t, store, core.KindExpense, "Casa", "Alquiler", 600, mar, core.StatusActual)
	second := seedCell(t, store, core.KindExpense, "Casa", "Luz", 80, mar, core.StatusActual)

	resolver := NewResolver(store, nil)
	mut, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        mar,
		Target:       decimal.NewFromInt(700),
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}
	if mut.Op != OpUpdated {
		t.Fatalf("op = %q, want updated", mut.Op)
	}

	// 700 - 680 = 20 lands on the first record; the second is untouched.
	got, _ := store.GetRecord(ctx, core.KindExpense, first.ID)
	if !got.Amount.Equal(decimal.NewFromInt(620)) {
		t.Errorf("first record amount = %s, want 620", got.Amount)
	}
	other, _ := store.GetRecord(ctx, core.KindExpense, second.ID)
	if !other.Amount.Equal(decimal.NewFromInt(80)) {
		t.Errorf("second record amount = %s, want 80", other.Amount)
	}
}

func TestQuickEditNoOpWithinEpsilon(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	seedCell(t, store, core.KindExpense, "Casa", "", 600, mar, core.StatusActual)
	seedCell(t, store, core.KindExpense, "Casa", "", 80.004, mar, core.StatusActual)

	before, _ := store.Version(ctx)
	resolver := NewResolver(store, nil)
	mut, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        mar,
		Target:       decimal.NewFromInt(680),
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}
	if mut.Op != OpNone {
		t.Errorf("op = %q, want none", mut.Op)
	}
	after, _ := store.Version(ctx)
	if before != after {
		t.Error("a no-op edit must not mutate the store")
	}
}

func TestQuickEditCreatesWhenCellEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore([]core.Category{{ID: "c7", Name: "Casa", Kind: core.KindExpense}})

	resolver := NewResolver(store, nil)
	mut, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        core.YearMonth{Year: 2026, Month: 2},
		Target:       decimal.NewFromInt(250),
		Forecast:     true,
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}
	if mut.Op != OpCreated {
		t.Fatalf("op = %q, want created", mut.Op)
	}
	if mut.Record.CategoryID != "c7" {
		t.Errorf("category id = %q, want c7", mut.Record.CategoryID)
	}
	if !mut.Record.IsForecast() {
		t.Error("forecast-column create should carry forecast status")
	}
	if !strings.Contains(mut.Record.Note, "Forecast 2026") {
		t.Errorf("note = %q, want forecast tag", mut.Record.Note)
	}
	if got := mut.Record.Date; got.Day() != 1 || got.Month() != 2 {
		t.Errorf("created record dated %v, want first of February", got)
	}
}

func TestQuickEditEmptyCellZeroTargetDoesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)

	resolver := NewResolver(store, nil)
	mut, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        mar,
		Target:       decimal.Zero,
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}
	if mut.Op != OpNone {
		t.Errorf("op = %q, want none", mut.Op)
	}
}

func TestQuickEditRejectsNegativeTarget(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	var sunk []error
	resolver := NewResolver(store, func(err error) { sunk = append(sunk, err) })

	_, err := resolver.ApplyQuickEdit(context.Background(), QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        mar,
		Target:       decimal.NewFromInt(-10),
		CurrentMonth: nov,
	})
	if err != core.ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestQuickEditCurrentMonthBuckets(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	actual := seedCell(t, store, core.KindExpense, "Casa", "", 900, nov, core.StatusActual)
	forecast := seedCell(t, store, core.KindExpense, "Casa", "", 80, nov, core.StatusForecast)

	resolver := NewResolver(store, nil)
	_, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        nov,
		Target:       decimal.NewFromInt(120),
		Forecast:     true,
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}

	// Only the forecast bucket moves; the committed record stays at 900.
	gotForecast, _ := store.GetRecord(ctx, core.KindExpense, forecast.ID)
	if !gotForecast.Amount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("forecast bucket = %s, want 120", gotForecast.Amount)
	}
	gotActual, _ := store.GetRecord(ctx, core.KindExpense, actual.ID)
	if !gotActual.Amount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("actual bucket = %s, want 900", gotActual.Amount)
	}
}

func TestConceptEditModes(t *testing.T) {
	cases := []struct {
		name  string
		mode  Mode
		value int64
		want  int64
	}{
		{"edit sets the total", ModeEdit, 75, 75},
		{"add increments", ModeAdd, 25, 125},
		{"subtract decrements", ModeSubtract, 40, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore(nil)
			rec := seedCell(t, store, core.KindExpense, "Casa", "Luz", 100, mar, core.StatusActual)

			resolver := NewResolver(store, nil)
			mut, err := resolver.ApplyConceptEdit(ctx, ConceptEdit{
				Kind:         core.KindExpense,
				Category:     "Casa",
				Concept:      "Luz",
				Month:        mar,
				Mode:         tc.mode,
				Value:        decimal.NewFromInt(tc.value),
				CurrentMonth: nov,
			})
			if err != nil {
				t.Fatalf("ApplyConceptEdit: %v", err)
			}
			if mut.Op != OpUpdated {
				t.Fatalf("op = %q, want updated", mut.Op)
			}
			got, _ := store.GetRecord(ctx, core.KindExpense, rec.ID)
			if !got.Amount.Equal(decimal.NewFromInt(tc.want)) {
				t.Errorf("amount = %s, want %d", got.Amount, tc.want)
			}
		})
	}
}

func TestConceptEditScopedByConcept(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	luz := seedCell(t, store, core.KindExpense, "Casa", "Luz", 80, mar, core.StatusActual)
	agua := seedCell(t, store, core.KindExpense, "Casa", "Agua", 30, mar, core.StatusActual)

	resolver := NewResolver(store, nil)
	if _, err := resolver.ApplyConceptEdit(ctx, ConceptEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Concept:      "Luz",
		Month:        mar,
		Mode:         ModeEdit,
		Value:        decimal.NewFromInt(95),
		CurrentMonth: nov,
	}); err != nil {
		t.Fatalf("ApplyConceptEdit: %v", err)
	}

	got, _ := store.GetRecord(ctx, core.KindExpense, luz.ID)
	if !got.Amount.Equal(decimal.NewFromInt(95)) {
		t.Errorf("Luz amount = %s, want 95", got.Amount)
	}
	other, _ := store.GetRecord(ctx, core.KindExpense, agua.ID)
	if !other.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Agua amount = %s, want 30", other.Amount)
	}
}

func TestConceptEditRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	seedCell(t, store, core.KindExpense, "Casa", "Luz", 50, mar, core.StatusActual)

	resolver := NewResolver(store, nil)
	_, err := resolver.ApplyConceptEdit(ctx, ConceptEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Concept:      "Luz",
		Month:        mar,
		Mode:         ModeSubtract,
		Value:        decimal.NewFromInt(80),
		CurrentMonth: nov,
	})
	if err != core.ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestConceptEditNotePersistedOnlyIfChanged(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	rec := seedCell(t, store, core.KindExpense, "Casa", "Luz", 80, mar, core.StatusActual)

	resolver := NewResolver(store, nil)

	t.Run("unchanged note with matching amount is a no-op", func(t *testing.T) {
		before, _ := store.Version(ctx)
		same := rec.Note
		mut, err := resolver.ApplyConceptEdit(ctx, ConceptEdit{
			Kind:         core.KindExpense,
			Category:     "Casa",
			Concept:      "Luz",
			Month:        mar,
			Mode:         ModeEdit,
			Value:        decimal.NewFromInt(80),
			Note:         &same,
			CurrentMonth: nov,
		})
		if err != nil {
			t.Fatalf("ApplyConceptEdit: %v", err)
		}
		if mut.Op != OpNone {
			t.Errorf("op = %q, want none", mut.Op)
		}
		after, _ := store.Version(ctx)
		if before != after {
			t.Error("store mutated on a no-op edit")
		}
	})

	t.Run("changed note persists even without an amount change", func(t *testing.T) {
		note := "revisado en marzo"
		mut, err := resolver.ApplyConceptEdit(ctx, ConceptEdit{
			Kind:         core.KindExpense,
			Category:     "Casa",
			Concept:      "Luz",
			Month:        mar,
			Mode:         ModeEdit,
			Value:        decimal.NewFromInt(80),
			Note:         &note,
			CurrentMonth: nov,
		})
		if err != nil {
			t.Fatalf("ApplyConceptEdit: %v", err)
		}
		if mut.Op != OpUpdated {
			t.Fatalf("op = %q, want updated", mut.Op)
		}
		got, _ := store.GetRecord(ctx, core.KindExpense, rec.ID)
		if got.Note != note {
			t.Errorf("note = %q, want %q", got.Note, note)
		}
		if !got.Amount.Equal(decimal.NewFromInt(80)) {
			t.Errorf("amount = %s, want 80 unchanged", got.Amount)
		}
	})
}

func TestQuickEditForecastColumnRetagsActualRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	// A future-month record that lost its tag somehow still gets retagged
	// when edited through the forecast column.
	future := core.YearMonth{Year: 2026, Month: 4}
	rec := seedCell(t, store, core.KindExpense, "Casa", "", 200, future, core.StatusActual)

	resolver := NewResolver(store, nil)
	mut, err := resolver.ApplyQuickEdit(ctx, QuickEdit{
		Kind:         core.KindExpense,
		Category:     "Casa",
		Month:        future,
		Target:       decimal.NewFromInt(230),
		Forecast:     true,
		CurrentMonth: nov,
	})
	if err != nil {
		t.Fatalf("ApplyQuickEdit: %v", err)
	}
	if mut.Op != OpUpdated {
		t.Fatalf("op = %q, want updated", mut.Op)
	}
	got, _ := store.GetRecord(ctx, core.KindExpense, rec.ID)
	if !got.IsForecast() {
		t.Error("forecast-column edit should retag the record")
	}
	if !got.Amount.Equal(decimal.NewFromInt(230)) {
		t.Errorf("amount = %s, want 230", got.Amount)
	}
}
