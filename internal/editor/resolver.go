// Package editor translates a user-entered target total for a grid cell into
// a single create-or-update against the record store. Existing records are
// adjusted by delta on the first record of the cell rather than overwritten,
// so unrelated fields survive the edit.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

// Amounts closer to the target than this are considered already equal; the
// edit becomes a no-op instead of a churn update.
var epsilon = decimal.New(5, -3) // 0.005

type Op string

const (
	OpNone    Op = "none"
	OpCreated Op = "created"
	OpUpdated Op = "updated"
)

// Mode selects how the entered value combines with the current cell total in
// a detailed edit. Every mode reduces to a target total before resolution.
type Mode string

const (
	ModeEdit     Mode = "edit"
	ModeAdd      Mode = "add"
	ModeSubtract Mode = "subtract"
)

// Mutation reports what the resolver did, for callers that surface feedback.
type Mutation struct {
	Op     Op
	Record core.Record
}

// QuickEdit targets a category×month cell with an absolute total.
type QuickEdit struct {
	Kind         core.Kind
	Category     string
	Month        core.YearMonth
	Target       decimal.Decimal
	Forecast     bool // edit the current month's forecast column
	CurrentMonth core.YearMonth
}

// ConceptEdit targets a category+concept×month cell through one of the three
// operator modes. Note, when set, is persisted independently of the amount
// and only if it actually changed.
type ConceptEdit struct {
	Kind         core.Kind
	Category     string
	Concept      string
	Month        core.YearMonth
	Mode         Mode
	Value        decimal.Decimal
	Note         *string
	Forecast     bool
	CurrentMonth core.YearMonth
}

type Resolver struct {
	store storage.RecordStore
	sink  func(error)
}

func NewResolver(store storage.RecordStore, sink func(error)) *Resolver {
	return &Resolver{store: store, sink: sink}
}

// ApplyQuickEdit resolves an absolute cell total. Validation failures and
// store errors are returned (and sent to the sink); the caller decides how
// visible to make them — the grid's next recompute remains the source of
// truth either way.
func (r *Resolver) ApplyQuickEdit(ctx context.Context, edit QuickEdit) (Mutation, error) {
	if edit.Target.IsNegative() {
		return Mutation{}, core.ErrInvalidAmount
	}
	cell, err := r.cellRecords(ctx, edit.Kind, edit.Category, "", edit.Month, edit.Forecast, edit.CurrentMonth)
	if err != nil {
		return Mutation{}, r.report(ctx, err)
	}
	return r.resolve(ctx, cellEdit{
		kind:     edit.Kind,
		category: edit.Category,
		month:    edit.Month,
		forecast: edit.Forecast,
		target:   edit.Target,
	}, cell)
}

// ApplyConceptEdit resolves a detailed modal edit. The chosen mode converts
// the entered value into a target total, then the same delta-to-first-record
// logic applies, scoped by concept.
func (r *Resolver) ApplyConceptEdit(ctx context.Context, edit ConceptEdit) (Mutation, error) {
	if edit.Value.IsNegative() {
		return Mutation{}, core.ErrInvalidAmount
	}
	cell, err := r.cellRecords(ctx, edit.Kind, edit.Category, edit.Concept, edit.Month, edit.Forecast, edit.CurrentMonth)
	if err != nil {
		return Mutation{}, r.report(ctx, err)
	}

	current := sumAmounts(cell)
	var target decimal.Decimal
	switch edit.Mode {
	case ModeAdd:
		target = current.Add(edit.Value)
	case ModeSubtract:
		target = current.Sub(edit.Value)
	case ModeEdit, "":
		target = edit.Value
	default:
		return Mutation{}, fmt.Errorf("unknown edit mode %q", edit.Mode)
	}
	if target.IsNegative() {
		return Mutation{}, core.ErrInvalidAmount
	}

	return r.resolve(ctx, cellEdit{
		kind:     edit.Kind,
		category: edit.Category,
		concept:  edit.Concept,
		month:    edit.Month,
		forecast: edit.Forecast,
		target:   target,
		note:     edit.Note,
	}, cell)
}

type cellEdit struct {
	kind     core.Kind
	category string
	concept  string
	month    core.YearMonth
	forecast bool
	target   decimal.Decimal
	note     *string
}

func (r *Resolver) resolve(ctx context.Context, edit cellEdit, cell []core.Record) (Mutation, error) {
	current := sumAmounts(cell)
	delta := edit.target.Sub(current)

	if len(cell) > 0 {
		first := cell[0]
		patch := storage.RecordPatch{}
		if delta.Abs().GreaterThanOrEqual(epsilon) {
			newAmount := first.Amount.Add(delta)
			patch.Amount = &newAmount
		}
		if edit.forecast && !first.IsForecast() {
			forecast := core.StatusForecast
			patch.Status = &forecast
		}
		if edit.note != nil && *edit.note != first.Note {
			patch.Note = edit.note
		}
		if patch.Amount == nil && patch.Status == nil && patch.Note == nil {
			return Mutation{Op: OpNone}, nil
		}
		updated, err := r.store.UpdateRecord(ctx, edit.kind, first.ID, patch)
		if err != nil {
			return Mutation{}, r.report(ctx, err)
		}
		return Mutation{Op: OpUpdated, Record: updated}, nil
	}

	if edit.target.Abs().LessThan(epsilon) {
		return Mutation{Op: OpNone}, nil
	}

	rec := core.Record{
		Kind:     edit.kind,
		Category: edit.category,
		Concept:  edit.concept,
		Amount:   edit.target,
		Date:     edit.month.Date(),
	}
	if edit.note != nil {
		rec.Note = *edit.note
	}
	if edit.forecast {
		rec.Status = core.StatusForecast
		if rec.Note == "" {
			rec.Note = fmt.Sprintf("Forecast %d", edit.month.Year)
		}
	}
	if id, ok := r.lookupCategoryID(ctx, edit.kind, edit.category); ok {
		rec.CategoryID = id
	}
	created, err := r.store.CreateRecord(ctx, rec)
	if err != nil {
		return Mutation{}, r.report(ctx, err)
	}
	return Mutation{Op: OpCreated, Record: created}, nil
}

// cellRecords fetches the records currently occupying a cell. For the
// current month the forecast flag selects between the two buckets; every
// other month has a single bucket regardless of status.
func (r *Resolver) cellRecords(ctx context.Context, kind core.Kind, category, concept string, month core.YearMonth, forecast bool, current core.YearMonth) ([]core.Record, error) {
	records, err := r.store.ListRecords(ctx, kind)
	if err != nil {
		return nil, err
	}
	var cell []core.Record
	for _, rec := range records {
		m, ok := rec.Month()
		if !ok || m != month {
			continue
		}
		if rec.RowLabel() != category {
			continue
		}
		if concept != "" && rec.ConceptLabel() != concept {
			continue
		}
		if month == current && rec.IsForecast() != forecast {
			continue
		}
		cell = append(cell, rec)
	}
	return cell, nil
}

func (r *Resolver) lookupCategoryID(ctx context.Context, kind core.Kind, name string) (string, bool) {
	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		// The record is still created, just without the category link.
		slog.WarnContext(ctx, "Category lookup failed", "error", err, "category", name)
		return "", false
	}
	for _, c := range categories {
		if c.Kind == kind && strings.EqualFold(c.Name, name) {
			return c.ID, true
		}
	}
	return "", false
}

func (r *Resolver) report(ctx context.Context, err error) error {
	slog.WarnContext(ctx, "Cell edit failed", "error", err)
	if r.sink != nil {
		r.sink(err)
	}
	return err
}

func sumAmounts(records []core.Record) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}
	return total
}
