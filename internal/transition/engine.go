// Package transition owns the current-month pointer and the state machine
// that fires when the user advances it: stale forecast placeholders of the
// month that just elapsed are purged, and records entered ahead of time into
// the month that just became current are promoted into its forecast bucket.
//
// Only record status is touched. Dates are never rewritten to move a record
// between months, and a backward move mutates nothing: reversals must not
// destructively alter history.
package transition

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cuentas/internal/core"
	"cuentas/internal/storage"
)

var (
	ErrBackwardNotAllowed   = errors.New("backward month change requires admin mode")
	ErrConfirmationRequired = errors.New("forward month change requires confirmation")
	ErrInvalidTarget        = errors.New("invalid target month")
)

// Options gate a pointer move. Admin mode may rewind freely and advances
// without confirmation (and without purging); normal mode needs an explicit
// confirmation because forward motion deletes records.
type Options struct {
	Admin     bool
	Confirmed bool
}

// Result summarizes one accepted transition. Failures holds every store
// error encountered during the sweep; the sweep itself never aborts.
type Result struct {
	From     core.YearMonth
	To       core.YearMonth
	Purged   int
	Promoted int
	Failures []error
}

// Engine is the single owner of the current-month pointer. The sink, when
// set, receives every store failure as it happens; failures are additionally
// collected on the Result. The next aggregation pass reflects whatever state
// the store ended up in.
type Engine struct {
	mu      sync.Mutex
	current core.YearMonth
	store   storage.RecordStore
	sink    func(error)
}

func NewEngine(store storage.RecordStore, initial core.YearMonth, sink func(error)) *Engine {
	return &Engine{store: store, current: initial, sink: sink}
}

// Current returns the pointer value.
func (e *Engine) Current() core.YearMonth {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Advance moves the pointer to the target month, applying the transition
// rules. The returned Result describes the record sweep of an accepted
// forward move; backward moves and no-ops carry zero counts.
func (e *Engine) Advance(ctx context.Context, to core.YearMonth, opts Options) (Result, error) {
	if to.IsZero() {
		return Result{}, ErrInvalidTarget
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.current
	res := Result{From: from, To: to}

	switch to.Compare(from) {
	case 0:
		return res, nil
	case -1:
		if !opts.Admin {
			return res, ErrBackwardNotAllowed
		}
		// Rewind moves the pointer only; no record is touched.
		e.current = to
		slog.InfoContext(ctx, "Current month rewound", "from", from.Key(), "to", to.Key())
		return res, nil
	}

	if !opts.Admin && !opts.Confirmed {
		return res, ErrConfirmationRequired
	}

	if !opts.Admin {
		res.Purged = e.purgeElapsedForecasts(ctx, from, &res)
	}
	if from.Next() == to {
		res.Promoted = e.promoteNewCurrent(ctx, to, &res)
	}

	e.current = to
	slog.InfoContext(ctx, "Current month advanced",
		"from", from.Key(),
		"to", to.Key(),
		"purged", res.Purged,
		"promoted", res.Promoted,
		"failures", len(res.Failures))
	return res, nil
}

// purgeElapsedForecasts deletes every forecast placeholder dated in the
// month that just elapsed. Best effort: each failure is reported and the
// sweep continues with the next record.
func (e *Engine) purgeElapsedForecasts(ctx context.Context, elapsed core.YearMonth, res *Result) int {
	purged := 0
	for _, kind := range []core.Kind{core.KindExpense, core.KindIncome} {
		records, err := e.store.ListRecords(ctx, kind)
		if err != nil {
			e.report(ctx, res, err)
			continue
		}
		for _, rec := range records {
			month, ok := rec.Month()
			if !ok || month != elapsed || !rec.IsForecast() {
				continue
			}
			if err := e.store.DeleteRecord(ctx, kind, rec.ID); err != nil {
				e.report(ctx, res, err)
				continue
			}
			purged++
		}
	}
	return purged
}

// promoteNewCurrent flips every record dated in the new current month to
// forecast status. They were entered ahead of time while the month was still
// in the future, so they keep rendering in the forecast column now that the
// month classifier no longer marks them. Amount, date and note stay as they
// are. Records created more than one month ahead are promoted all the same
// when their month finally becomes current.
func (e *Engine) promoteNewCurrent(ctx context.Context, current core.YearMonth, res *Result) int {
	promoted := 0
	forecast := core.StatusForecast
	for _, kind := range []core.Kind{core.KindExpense, core.KindIncome} {
		records, err := e.store.ListRecords(ctx, kind)
		if err != nil {
			e.report(ctx, res, err)
			continue
		}
		for _, rec := range records {
			month, ok := rec.Month()
			if !ok || month != current || rec.IsForecast() {
				continue
			}
			if _, err := e.store.UpdateRecord(ctx, kind, rec.ID, storage.RecordPatch{Status: &forecast}); err != nil {
				e.report(ctx, res, err)
				continue
			}
			promoted++
		}
	}
	return promoted
}

func (e *Engine) report(ctx context.Context, res *Result, err error) {
	res.Failures = append(res.Failures, err)
	slog.WarnContext(ctx, "Transition sweep failure", "error", err)
	if e.sink != nil {
		e.sink(err)
	}
}
