// Package grid partitions transaction records into the real-vs-forecast
// matrix the spreadsheet view renders: one row per category, one column per
// month, with the current month split into an actual and a forecast bucket.
//
// The grid is derived data. It is rebuilt from scratch on every call and
// holds no identity across recomputations; the record store stays the single
// owner of the records.
package grid

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cuentas/internal/core"
)

// Options select which records enter the grid and where the actual/forecast
// boundary sits. CurrentMonth is the user-controlled pointer, independent of
// the wall clock; Now only anchors the forecast horizon when no year filter
// is set (zero means time.Now).
type Options struct {
	Year         *int
	CurrentMonth core.YearMonth
	ShowForecast bool
	Now          time.Time
}

// Column is a rendering slot. The current month appears twice, once per
// bucket, when forecast display is enabled for its year.
type Column struct {
	Month    core.YearMonth
	Forecast bool
}

// Row groups the records of one category. MonthData buckets records by month
// key; ForecastData is the parallel bucket the current month alone carries.
type Row struct {
	Category     string
	Records      []core.Record
	MonthData    map[string][]core.Record
	ForecastData []core.Record
	Total        decimal.Decimal
}

// Grid is the derived matrix over one aggregation pass.
type Grid struct {
	Rows         []*Row
	Months       []core.YearMonth
	Columns      []Column
	ColumnTotals map[string]decimal.Decimal
	GrandTotal   decimal.Decimal
	CurrentMonth core.YearMonth
}

// Build aggregates expense and income records into the grid. Records whose
// date does not resolve to a month are excluded, never fatal.
func Build(expenses, income []core.Record, opts Options) *Grid {
	current := opts.CurrentMonth
	if current.IsZero() {
		current = core.CurrentYearMonth(time.Now())
	}

	records := make([]core.Record, 0, len(expenses)+len(income))
	records = append(records, expenses...)
	records = append(records, income...)

	g := &Grid{
		ColumnTotals: make(map[string]decimal.Decimal),
		CurrentMonth: current,
	}

	rowsByCategory := make(map[string]*Row)
	seenMonths := make(map[string]core.YearMonth)

	for _, rec := range records {
		month, ok := rec.Month()
		if !ok {
			continue
		}
		if opts.Year != nil && month.Year != *opts.Year {
			continue
		}

		label := rec.RowLabel()
		row := rowsByCategory[label]
		if row == nil {
			row = &Row{
				Category:  label,
				MonthData: make(map[string][]core.Record),
				Total:     decimal.Zero,
			}
			rowsByCategory[label] = row
		}
		row.Records = append(row.Records, rec)
		seenMonths[month.Key()] = month

		if month == current && rec.IsForecast() {
			row.ForecastData = append(row.ForecastData, rec)
			continue
		}
		row.MonthData[month.Key()] = append(row.MonthData[month.Key()], rec)
	}

	// Safety pass: a record updated to forecast after bucketing must not
	// linger in the current month's actual bucket. Re-partitioning on every
	// build lets the bucket invariant self-heal instead of being enforced
	// at write time.
	currentKey := current.Key()
	for _, row := range rowsByCategory {
		actual := row.MonthData[currentKey]
		if len(actual) == 0 {
			continue
		}
		kept := actual[:0]
		for _, rec := range actual {
			if rec.IsForecast() {
				row.ForecastData = append(row.ForecastData, rec)
				continue
			}
			kept = append(kept, rec)
		}
		if len(kept) == 0 {
			delete(row.MonthData, currentKey)
		} else {
			row.MonthData[currentKey] = kept
		}
	}

	g.Months = collectMonths(seenMonths, current, opts)
	g.Rows = sortedRows(rowsByCategory)

	for _, month := range g.Months {
		key := month.Key()
		columnTotal := decimal.Zero
		for _, row := range g.Rows {
			columnTotal = columnTotal.Add(row.CellTotal(month, current))
		}
		g.ColumnTotals[key] = columnTotal
		g.GrandTotal = g.GrandTotal.Add(columnTotal)
	}
	for _, row := range g.Rows {
		for _, month := range g.Months {
			row.Total = row.Total.Add(row.CellTotal(month, current))
		}
	}

	g.Columns = buildColumns(g.Months, current, opts)
	return g
}

// CellRecords returns the bucket of a cell. The forecast flag only selects a
// distinct bucket on the current month.
func (r *Row) CellRecords(month, current core.YearMonth, forecast bool) []core.Record {
	if forecast && month == current {
		return r.ForecastData
	}
	return r.MonthData[month.Key()]
}

// CellTotal sums a row's cell for one month. The current month includes both
// the actual and the forecast bucket, keeping row, column and grand totals
// consistent with the dual-column rendering.
func (r *Row) CellTotal(month, current core.YearMonth) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range r.MonthData[month.Key()] {
		total = total.Add(rec.Amount)
	}
	if month == current {
		for _, rec := range r.ForecastData {
			total = total.Add(rec.Amount)
		}
	}
	return total
}

// DividerIndex returns the index of the last non-forecast column month, for
// placing the past/future divider. -1 when every month is in the future.
func (g *Grid) DividerIndex() int {
	return core.LastPastMonthIndex(g.Months, g.CurrentMonth)
}

func collectMonths(seen map[string]core.YearMonth, current core.YearMonth, opts Options) []core.YearMonth {
	union := make(map[string]core.YearMonth, len(seen)+1)
	for k, v := range seen {
		union[k] = v
	}
	// The current month column always renders, data or not.
	union[current.Key()] = current

	if opts.ShowForecast {
		if opts.Year != nil {
			for m := 1; m <= 12; m++ {
				ym := core.YearMonth{Year: *opts.Year, Month: m}
				union[ym.Key()] = ym
			}
		} else {
			now := opts.Now
			if now.IsZero() {
				now = time.Now()
			}
			start := earliestMonth(union)
			end := core.YearMonth{Year: now.UTC().Year() + 1, Month: 12}
			for ym := start; !ym.After(end); ym = ym.Next() {
				union[ym.Key()] = ym
			}
		}
	}

	months := make([]core.YearMonth, 0, len(union))
	for _, ym := range union {
		months = append(months, ym)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

func earliestMonth(union map[string]core.YearMonth) core.YearMonth {
	var earliest core.YearMonth
	for _, ym := range union {
		if earliest.IsZero() || ym.Before(earliest) {
			earliest = ym
		}
	}
	return earliest
}

func sortedRows(byCategory map[string]*Row) []*Row {
	rows := make([]*Row, 0, len(byCategory))
	for _, row := range byCategory {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Category < rows[j].Category })
	return rows
}

func buildColumns(months []core.YearMonth, current core.YearMonth, opts Options) []Column {
	split := opts.ShowForecast && (opts.Year == nil || *opts.Year == current.Year)
	columns := make([]Column, 0, len(months)+1)
	for _, month := range months {
		columns = append(columns, Column{Month: month})
		if split && month == current {
			columns = append(columns, Column{Month: month, Forecast: true})
		}
	}
	return columns
}
