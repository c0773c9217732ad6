// Package forecast projects next year's budget from December actuals. Every
// December record folds into a per-concept baseline, which a recurrence
// strategy spreads across the target year under per-month compounding
// inflation. Manual overrides replace computed values and carry forward to
// the end of the series.
package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// ConceptKey identifies one projected series: "Category::Concept".
type ConceptKey string

func KeyFor(category, concept string) ConceptKey {
	return ConceptKey(category + "::" + concept)
}

// Rates holds one inflation percentage per target month, index 0 = January.
// Expense and income rates are independent.
type Rates [12]decimal.Decimal

// cumulativeFactor returns 1 + (sum of rates through month m)/100. The sum
// starts from zero each projection; rates do not compound on each other.
func (r Rates) cumulativeFactor(m int) decimal.Decimal {
	cum := decimal.Zero
	for i := 0; i < m && i < 12; i++ {
		cum = cum.Add(r[i])
	}
	return decimal.NewFromInt(1).Add(cum.Div(decimal.NewFromInt(100)))
}

// Overrides stores manual per-cell edits keyed by concept and month (1-12).
// An edit is a new baseline the user expects to persist, so Set fills the
// value forward through December; setting zero clears the tail instead.
type Overrides map[ConceptKey]map[int]decimal.Decimal

func (o Overrides) Set(key ConceptKey, month int, value decimal.Decimal) {
	if month < 1 || month > 12 {
		return
	}
	if value.IsZero() {
		for m := month; m <= 12; m++ {
			delete(o[key], m)
		}
		if len(o[key]) == 0 {
			delete(o, key)
		}
		return
	}
	if o[key] == nil {
		o[key] = make(map[int]decimal.Decimal)
	}
	for m := month; m <= 12; m++ {
		o[key][m] = value
	}
}

func (o Overrides) get(key ConceptKey, month int) (decimal.Decimal, bool) {
	v, ok := o[key][month]
	return v, ok
}

// Series is one concept's projected year. Months index 0 = January of the
// forecast year; months outside the recurrence placement stay zero.
type Series struct {
	Key         ConceptKey
	Kind        core.Kind
	Category    string
	Concept     string
	Base        decimal.Decimal
	ExpenseType core.ExpenseType
	Months      [12]decimal.Decimal

	// LastYear sums the concept's committed records across the whole base
	// year, for the percentage comparator. HasComparison is false when that
	// sum is zero and no meaningful percentage exists.
	LastYear      decimal.Decimal
	DiffPercent   decimal.Decimal
	HasComparison bool
}

func (s *Series) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range s.Months {
		total = total.Add(v)
	}
	return total
}

// Projection is a full computed budget for Year. The totals cover the
// expense side only; income series keep their own per-series totals.
type Projection struct {
	Year                int
	Expenses            []*Series
	Income              []*Series
	ExpenseColumnTotals [12]decimal.Decimal
	ExpenseGrandTotal   decimal.Decimal
}

type Engine struct {
	store storage.RecordStore
}

func NewEngine(store storage.RecordStore) *Engine {
	return &Engine{store: store}
}

// Build computes the projection for the year after baseYear. December of
// baseYear provides the baselines; committed records of the whole baseYear
// feed the last-year comparator.
func (e *Engine) Build(ctx context.Context, baseYear int, expenseRates, incomeRates Rates, overrides Overrides) (*Projection, error) {
	proj := &Projection{Year: baseYear + 1}

	expenses, err := e.buildSide(ctx, core.KindExpense, baseYear, expenseRates, overrides)
	if err != nil {
		return nil, err
	}
	income, err := e.buildSide(ctx, core.KindIncome, baseYear, incomeRates, overrides)
	if err != nil {
		return nil, err
	}
	proj.Expenses = expenses
	proj.Income = income

	for _, s := range expenses {
		for i, v := range s.Months {
			proj.ExpenseColumnTotals[i] = proj.ExpenseColumnTotals[i].Add(v)
		}
	}
	for _, total := range proj.ExpenseColumnTotals {
		proj.ExpenseGrandTotal = proj.ExpenseGrandTotal.Add(total)
	}

	slog.InfoContext(ctx, "Forecast projection built",
		"year", proj.Year,
		"expense_concepts", len(expenses),
		"income_concepts", len(income))
	return proj, nil
}

func (e *Engine) buildSide(ctx context.Context, kind core.Kind, baseYear int, rates Rates, overrides Overrides) ([]*Series, error) {
	records, err := e.store.ListRecords(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}

	december := core.YearMonth{Year: baseYear, Month: 12}
	byKey := make(map[ConceptKey]*Series)
	for _, rec := range records {
		month, ok := rec.Month()
		if !ok || month != december {
			continue
		}
		key := KeyFor(rec.RowLabel(), rec.ConceptLabel())
		s, ok := byKey[key]
		if !ok {
			s = &Series{
				Key:      key,
				Kind:     kind,
				Category: rec.RowLabel(),
				Concept:  rec.ConceptLabel(),
			}
			byKey[key] = s
		}
		s.Base = s.Base.Add(rec.Amount)
		if kind == core.KindExpense && s.ExpenseType == "" && rec.ExpenseType != "" {
			s.ExpenseType = rec.ExpenseType
		}
	}

	lastYear := lastYearTotals(records, baseYear)

	out := make([]*Series, 0, len(byKey))
	for _, s := range byKey {
		e.project(s, kind, rates, overrides)
		s.LastYear = lastYear[s.Key]
		if !s.LastYear.IsZero() {
			s.HasComparison = true
			s.DiffPercent = s.Total().Sub(s.LastYear).
				Div(s.LastYear).
				Mul(decimal.NewFromInt(100))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// project fills the series' months from the placement strategy, the
// cumulative inflation factor, and any manual overrides.
func (e *Engine) project(s *Series, kind core.Kind, rates Rates, overrides Overrides) {
	var place placement = mensualPlacement{}
	if kind == core.KindExpense {
		place = placementFor(s.ExpenseType)
		s.ExpenseType = core.NormalizeExpenseType(s.ExpenseType)
	}
	share := place.BaseShare(s.Base)
	for _, m := range place.TargetMonths() {
		s.Months[m-1] = share.Mul(rates.cumulativeFactor(m))
	}
	for m := 1; m <= 12; m++ {
		if v, ok := overrides.get(s.Key, m); ok {
			s.Months[m-1] = v
		}
	}
}

// lastYearTotals sums committed (non-forecast) amounts per concept across the
// entire base year, every month, not just December.
func lastYearTotals(records []core.Record, baseYear int) map[ConceptKey]decimal.Decimal {
	totals := make(map[ConceptKey]decimal.Decimal)
	for _, rec := range records {
		month, ok := rec.Month()
		if !ok || month.Year != baseYear || rec.IsForecast() {
			continue
		}
		key := KeyFor(rec.RowLabel(), rec.ConceptLabel())
		totals[key] = totals[key].Add(rec.Amount)
	}
	return totals
}

// Commit materializes every non-zero projected cell as a forecast record
// dated the first of its target month. Failures are reported and skipped so
// one bad cell does not abort the whole save.
func (e *Engine) Commit(ctx context.Context, proj *Projection) (int, []error) {
	created := 0
	var failures []error
	note := fmt.Sprintf("Forecast %d", proj.Year)

	commit := func(s *Series) {
		for i, v := range s.Months {
			if v.IsZero() {
				continue
			}
			rec := core.Record{
				Kind:     s.Kind,
				Category: s.Category,
				Concept:  s.Concept,
				Amount:   v,
				Date:     core.YearMonth{Year: proj.Year, Month: i + 1}.Date(),
				Status:   core.StatusForecast,
				Note:     note,
			}
			if s.Kind == core.KindExpense {
				rec.ExpenseType = s.ExpenseType
			}
			if _, err := e.store.CreateRecord(ctx, rec); err != nil {
				failures = append(failures, fmt.Errorf("commit %s month %d: %w", s.Key, i+1, err))
				slog.WarnContext(ctx, "Forecast commit failure", "concept", s.Key, "month", i+1, "error", err)
				continue
			}
			created++
		}
	}

	for _, s := range proj.Expenses {
		commit(s)
	}
	for _, s := range proj.Income {
		commit(s)
	}

	slog.InfoContext(ctx, "Forecast committed", "year", proj.Year, "records", created, "failures", len(failures))
	return created, failures
}
