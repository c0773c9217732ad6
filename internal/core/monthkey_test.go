package core

import (
	"testing"
	"time"
)

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  YearMonth
		ok    bool
	}{
		{
			name:  "ISO date",
			value: "2025-11-01",
			want:  YearMonth{2025, 11},
			ok:    true,
		},
		{
			name:  "ISO datetime with timezone keeps the written month",
			value: "2025-01-01T00:30:00+02:00",
			want:  YearMonth{2025, 1},
			ok:    true,
		},
		{
			name:  "DD/MM/YYYY",
			value: "15/03/2024",
			want:  YearMonth{2024, 3},
			ok:    true,
		},
		{
			name:  "month out of range",
			value: "2025-13-01",
			ok:    false,
		},
		{
			name:  "garbage",
			value: "not a date",
			ok:    false,
		},
		{
			name:  "empty",
			value: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseYearMonth(tt.value)
			if ok != tt.ok {
				t.Fatalf("ParseYearMonth(%q) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ParseYearMonth(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
		})
	}
}

func TestYearMonthKeyRoundTrip(t *testing.T) {
	ym := YearMonth{Year: 2025, Month: 7}
	key := ym.Key()
	if key != "2025-07" {
		t.Fatalf("Key() = %q, want %q", key, "2025-07")
	}
	back, ok := ParseKey(key)
	if !ok || back != ym {
		t.Errorf("ParseKey(%q) = %+v, %v", key, back, ok)
	}
	if _, ok := ParseKey("2025"); ok {
		t.Error("ParseKey should reject a key without a month part")
	}
	if _, ok := ParseKey("2025-00"); ok {
		t.Error("ParseKey should reject month 0")
	}
}

func TestYearMonthLabel(t *testing.T) {
	if got := (YearMonth{2025, 1}).Label(); got != "Ene" {
		t.Errorf("Label() = %q, want Ene", got)
	}
	if got := (YearMonth{2025, 11}).Label(); got != "Nov" {
		t.Errorf("Label() = %q, want Nov", got)
	}
	if got := (YearMonth{}).Label(); got != "" {
		t.Errorf("zero YearMonth Label() = %q, want empty", got)
	}
}

func TestYearMonthDate(t *testing.T) {
	d := YearMonth{2025, 6}.Date()
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Errorf("Date() = %v, want %v", d, want)
	}
}

func TestYearMonthNavigation(t *testing.T) {
	dec := YearMonth{2025, 12}
	if next := dec.Next(); next != (YearMonth{2026, 1}) {
		t.Errorf("Next() across year = %+v", next)
	}
	jan := YearMonth{2026, 1}
	if prev := jan.Prev(); prev != dec {
		t.Errorf("Prev() across year = %+v", prev)
	}
}

func TestIsForecastMonth(t *testing.T) {
	current := YearMonth{2025, 6}
	tests := []struct {
		name  string
		month YearMonth
		want  bool
	}{
		{"next year", YearMonth{2026, 1}, true},
		{"previous year", YearMonth{2024, 12}, false},
		{"later month same year", YearMonth{2025, 7}, true},
		{"earlier month same year", YearMonth{2025, 5}, false},
		{"the current month itself", YearMonth{2025, 6}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsForecastMonth(tt.month, current); got != tt.want {
				t.Errorf("IsForecastMonth(%v, %v) = %v, want %v", tt.month, current, got, tt.want)
			}
		})
	}
}

func TestLastPastMonthIndex(t *testing.T) {
	months := []YearMonth{
		{2025, 4}, {2025, 5}, {2025, 6}, {2025, 7}, {2025, 8},
	}
	current := YearMonth{2025, 6}
	if got := LastPastMonthIndex(months, current); got != 2 {
		t.Errorf("LastPastMonthIndex = %d, want 2", got)
	}

	allFuture := []YearMonth{{2026, 1}, {2026, 2}}
	if got := LastPastMonthIndex(allFuture, current); got != -1 {
		t.Errorf("LastPastMonthIndex all-forecast = %d, want -1", got)
	}
}
