// Package core holds the domain types of the finance grid: transaction
// records, month keys and the classification predicates the aggregation
// engines are built on.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// YearMonth is the temporal key of the grid: a calendar month without a day
// component. The zero value is "no month".
type YearMonth struct {
	Year  int
	Month int
}

var (
	isoPrefixRe = regexp.MustCompile(`^(\d{4})-(\d{2})`)
	dmyRe       = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// Spanish 3-letter month abbreviations, capitalized.
var monthLabels = [12]string{
	"Ene", "Feb", "Mar", "Abr", "May", "Jun",
	"Jul", "Ago", "Sep", "Oct", "Nov", "Dic",
}

// ParseYearMonth extracts the month key from a heterogeneous date string.
// The ISO prefix is matched first so a trailing timezone can never shift the
// month, then DD/MM/YYYY, then a full RFC 3339 parse read in UTC. Returns
// ok=false when nothing parses or the month is out of range.
func ParseYearMonth(value string) (YearMonth, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return YearMonth{}, false
	}
	if m := isoPrefixRe.FindStringSubmatch(value); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		return makeYearMonth(year, month)
	}
	if m := dmyRe.FindStringSubmatch(value); m != nil {
		year, _ := strconv.Atoi(m[3])
		month, _ := strconv.Atoi(m[2])
		return makeYearMonth(year, month)
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		u := t.UTC()
		return makeYearMonth(u.Year(), int(u.Month()))
	}
	return YearMonth{}, false
}

// FromTime reads the month key of a date in UTC.
func FromTime(t time.Time) YearMonth {
	u := t.UTC()
	return YearMonth{Year: u.Year(), Month: int(u.Month())}
}

func makeYearMonth(year, month int) (YearMonth, bool) {
	if month < 1 || month > 12 || year <= 0 {
		return YearMonth{}, false
	}
	return YearMonth{Year: year, Month: month}, true
}

// Key formats the month as a sortable "YYYY-MM" string.
func (ym YearMonth) Key() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (YearMonth, bool) {
	parts := strings.SplitN(key, "-", 2)
	if len(parts) != 2 {
		return YearMonth{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return YearMonth{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return YearMonth{}, false
	}
	return makeYearMonth(year, month)
}

// Label returns the localized 3-letter month abbreviation, e.g. "Ene".
func (ym YearMonth) Label() string {
	if ym.Month < 1 || ym.Month > 12 {
		return ""
	}
	return monthLabels[ym.Month-1]
}

// Date returns the first day of the month at noon UTC, the canonical record
// date for this month slot.
func (ym YearMonth) Date() time.Time {
	return time.Date(ym.Year, time.Month(ym.Month), 1, 12, 0, 0, 0, time.UTC)
}

func (ym YearMonth) IsZero() bool { return ym.Year == 0 && ym.Month == 0 }

func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

func (ym YearMonth) Prev() YearMonth {
	if ym.Month == 1 {
		return YearMonth{Year: ym.Year - 1, Month: 12}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

// Compare orders two month keys chronologically: -1, 0 or +1.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year < other.Year:
		return -1
	case ym.Year > other.Year:
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	}
	return 0
}

func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }
func (ym YearMonth) After(other YearMonth) bool  { return ym.Compare(other) > 0 }

// CurrentYearMonth reads the wall-clock month in UTC.
func CurrentYearMonth(now time.Time) YearMonth {
	return FromTime(now)
}

// IsForecastMonth classifies a month against the current-month pointer:
// strictly after the pointer means forecast. The pointer month itself is not
// a forecast month; its forecast bucket is carried by record status instead.
// A zero pointer falls back to the wall clock.
func IsForecastMonth(month, current YearMonth) bool {
	if current.IsZero() {
		current = CurrentYearMonth(time.Now())
	}
	return month.After(current)
}

// LastPastMonthIndex scans months from the end for the last one not
// classified as forecast. Returns -1 when every month is in the future.
// Used to place the visual divider between past and future columns.
func LastPastMonthIndex(months []YearMonth, current YearMonth) int {
	for i := len(months) - 1; i >= 0; i-- {
		if !IsForecastMonth(months[i], current) {
			return i
		}
	}
	return -1
}
