package forecast

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

func seedDecember(t *testing.T, store *storage.MemoryStore, kind core.Kind, category, concept string, amount int64, expenseType core.ExpenseType) core.Record {
	t.Helper()
	rec, err := store.CreateRecord(context.Background(), core.Record{
		Kind:        kind,
		Category:    category,
		Concept:     concept,
		Amount:      decimal.NewFromInt(amount),
		Date:        core.YearMonth{Year: 2025, Month: 12}.Date(),
		ExpenseType: expenseType,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func buildOne(t *testing.T, store *storage.MemoryStore, expenseRates Rates, overrides Overrides) *Series {
	t.Helper()
	engine := NewEngine(store)
	proj, err := engine.Build(context.Background(), 2025, expenseRates, Rates{}, overrides)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(proj.Expenses) != 1 {
		t.Fatalf("expense series = %d, want 1", len(proj.Expenses))
	}
	return proj.Expenses[0]
}

func wantMonth(t *testing.T, s *Series, month int, want string) {
	t.Helper()
	expected, _ := decimal.NewFromString(want)
	if !s.Months[month-1].Equal(expected) {
		t.Errorf("month %d = %s, want %s", month, s.Months[month-1], want)
	}
}

func TestMensualCompounding(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Alquiler", 1000, core.Mensual)

	var rates Rates
	rates[0] = decimal.NewFromInt(5)
	rates[1] = decimal.NewFromInt(5)

	s := buildOne(t, store, rates, Overrides{})
	wantMonth(t, s, 1, "1050")
	wantMonth(t, s, 2, "1100")
	// The cumulative rate freezes at 10% once the monthly rates stop.
	for m := 3; m <= 12; m++ {
		wantMonth(t, s, m, "1100")
	}
}

func TestSemestralPlacement(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Seguros", "Coche", 600, core.Semestral)

	s := buildOne(t, store, Rates{}, Overrides{})
	for m := 1; m <= 12; m++ {
		want := "0"
		if m == 6 || m == 12 {
			want = "600"
		}
		wantMonth(t, s, m, want)
	}
}

func TestAnualPlacement(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Impuestos", "IBI", 400, core.Anual)

	s := buildOne(t, store, Rates{}, Overrides{})
	for m := 1; m <= 11; m++ {
		wantMonth(t, s, m, "0")
	}
	wantMonth(t, s, 12, "400")
}

func TestExcepcionalAmortizesOverTwelveMonths(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Obras", 1200, core.Excepcional)

	s := buildOne(t, store, Rates{}, Overrides{})
	for m := 1; m <= 12; m++ {
		wantMonth(t, s, m, "100")
	}
}

func TestIncomeProjectsEveryMonth(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindIncome, "Nómina", "Empresa", 2000, "")

	var incomeRates Rates
	incomeRates[0] = decimal.NewFromInt(2)

	engine := NewEngine(store)
	proj, err := engine.Build(context.Background(), 2025, Rates{}, incomeRates, Overrides{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(proj.Income) != 1 {
		t.Fatalf("income series = %d, want 1", len(proj.Income))
	}
	s := proj.Income[0]
	wantMonth(t, s, 1, "2040")
	for m := 2; m <= 12; m++ {
		wantMonth(t, s, m, "2040")
	}
}

func TestExpenseTotalsExcludeIncome(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Alquiler", 1000, core.Mensual)
	seedDecember(t, store, core.KindIncome, "Nómina", "Empresa", 2000, "")

	engine := NewEngine(store)
	proj, err := engine.Build(context.Background(), 2025, Rates{}, Rates{}, Overrides{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i, total := range proj.ExpenseColumnTotals {
		if !total.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("month %d expense total = %s, want 1000", i+1, total)
		}
	}
	if !proj.ExpenseGrandTotal.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("expense grand total = %s, want 12000", proj.ExpenseGrandTotal)
	}
}

func TestDecemberAmountsSumIntoOneBaseline(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Luz", 60, core.Mensual)
	seedDecember(t, store, core.KindExpense, "Casa", "Luz", 40, core.Mensual)

	s := buildOne(t, store, Rates{}, Overrides{})
	if !s.Base.Equal(decimal.NewFromInt(100)) {
		t.Errorf("base = %s, want 100", s.Base)
	}
	wantMonth(t, s, 1, "100")
}

func TestOverrideForwardFill(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Alquiler", 1000, core.Mensual)

	key := KeyFor("Casa", "Alquiler")
	overrides := Overrides{}
	overrides.Set(key, 4, decimal.NewFromInt(2000))

	s := buildOne(t, store, Rates{}, overrides)
	for m := 1; m <= 3; m++ {
		wantMonth(t, s, m, "1000")
	}
	for m := 4; m <= 12; m++ {
		wantMonth(t, s, m, "2000")
	}

	t.Run("zero reverts the tail to the computed series", func(t *testing.T) {
		overrides.Set(key, 4, decimal.Zero)
		s := buildOne(t, store, Rates{}, overrides)
		for m := 1; m <= 12; m++ {
			wantMonth(t, s, m, "1000")
		}
	})
}

func TestLastYearComparator(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Luz", 100, core.Mensual)

	// Committed records across the whole base year feed the comparator,
	// not just December.
	if _, err := store.CreateRecord(ctx, core.Record{
		Kind:     core.KindExpense,
		Category: "Casa",
		Concept:  "Luz",
		Amount:   decimal.NewFromInt(500),
		Date:     core.YearMonth{Year: 2025, Month: 3}.Date(),
	}); err != nil {
		t.Fatal(err)
	}

	s := buildOne(t, store, Rates{}, Overrides{})
	if !s.HasComparison {
		t.Fatal("comparator should be available")
	}
	if !s.LastYear.Equal(decimal.NewFromInt(600)) {
		t.Errorf("last year total = %s, want 600", s.LastYear)
	}
	// Projection totals 1200 against last year's 600: +100%.
	if !s.DiffPercent.Equal(decimal.NewFromInt(100)) {
		t.Errorf("diff = %s%%, want 100%%", s.DiffPercent)
	}
}

func TestLastYearComparatorSkipsForecastRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Casa", "Luz", 100, core.Mensual)

	if _, err := store.CreateRecord(ctx, core.Record{
		Kind:     core.KindExpense,
		Category: "Casa",
		Concept:  "Luz",
		Amount:   decimal.NewFromInt(999),
		Date:     core.YearMonth{Year: 2025, Month: 5}.Date(),
		Status:   core.StatusForecast,
	}); err != nil {
		t.Fatal(err)
	}

	s := buildOne(t, store, Rates{}, Overrides{})
	if !s.LastYear.Equal(decimal.NewFromInt(100)) {
		t.Errorf("last year total = %s, want 100 (forecasts excluded)", s.LastYear)
	}
}

func TestNoComparisonWhenLastYearIsZero(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	rec := seedDecember(t, store, core.KindExpense, "Casa", "Luz", 100, core.Mensual)

	// Retag the only base record as forecast so the committed total is zero.
	forecast := core.StatusForecast
	if _, err := store.UpdateRecord(context.Background(), core.KindExpense, rec.ID, storage.RecordPatch{Status: &forecast}); err != nil {
		t.Fatal(err)
	}

	s := buildOne(t, store, Rates{}, Overrides{})
	if s.HasComparison {
		t.Error("zero last-year total must yield no comparison, not a division")
	}
}

func TestCommitCreatesForecastRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(nil)
	seedDecember(t, store, core.KindExpense, "Seguros", "Coche", 600, core.Semestral)
	seedDecember(t, store, core.KindIncome, "Nómina", "Empresa", 2000, "")

	engine := NewEngine(store)
	proj, err := engine.Build(ctx, 2025, Rates{}, Rates{}, Overrides{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	created, failures := engine.Commit(ctx, proj)
	if len(failures) != 0 {
		t.Fatalf("failures: %v", failures)
	}
	// Semestral expense lands twice, income lands twelve times.
	if created != 14 {
		t.Errorf("created = %d, want 14", created)
	}

	expenses, _ := store.ListRecords(ctx, core.KindExpense)
	var committed []core.Record
	for _, rec := range expenses {
		m, _ := rec.Month()
		if m.Year == 2026 {
			committed = append(committed, rec)
		}
	}
	if len(committed) != 2 {
		t.Fatalf("2026 expense records = %d, want 2", len(committed))
	}
	for _, rec := range committed {
		if !rec.IsForecast() {
			t.Error("committed cell must carry forecast status")
		}
		if rec.Note != "Forecast 2026" {
			t.Errorf("note = %q, want Forecast 2026", rec.Note)
		}
		if rec.ExpenseType != core.Semestral {
			t.Errorf("expense type = %q, want SEMESTRAL carried over", rec.ExpenseType)
		}
		if rec.Date.Day() != 1 {
			t.Errorf("record dated day %d, want first of month", rec.Date.Day())
		}
	}
}
