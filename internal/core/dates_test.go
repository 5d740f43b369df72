package core

import "testing"

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-03-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if got := d.ISODay(); got != "2024-03-15" {
		t.Fatalf("round trip: got %s", got)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 15 {
		t.Fatalf("fields: %d-%d-%d", d.Year(), d.Month(), d.Day())
	}

	for _, bad := range []string{"", "2024-3-15", "15/03/2024", "2024-03-15T00:00:00Z"} {
		if _, err := ParseDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name string
		from Date
		n    int
		want string
	}{
		{"plain add", NewDate(2024, 1, 15), 1, "2024-02-15"},
		{"jan 31 to leap february", NewDate(2024, 1, 31), 1, "2024-02-29"},
		{"jan 31 to non-leap february", NewDate(2023, 1, 31), 1, "2023-02-28"},
		{"anchored day returns in march", NewDate(2024, 1, 31), 2, "2024-03-31"},
		{"april clamp from 31", NewDate(2024, 1, 31), 3, "2024-04-30"},
		{"year rollover", NewDate(2024, 11, 30), 3, "2025-02-28"},
		{"multi year", NewDate(2024, 6, 10), 25, "2026-07-10"},
		{"zero months", NewDate(2024, 2, 29), 0, "2024-02-29"},
		{"negative across year", NewDate(2024, 1, 31), -2, "2023-11-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.AddMonthsClamped(tt.n).ISODay(); got != tt.want {
				t.Errorf("AddMonthsClamped(%s, %d) = %s, want %s", tt.from.ISODay(), tt.n, got, tt.want)
			}
		})
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		a, b Date
		want int
	}{
		{NewDate(2024, 1, 1), NewDate(2024, 1, 31), 0},
		{NewDate(2024, 1, 31), NewDate(2024, 2, 1), 1}, // partial months count as a whole month boundary crossing
		{NewDate(2023, 3, 15), NewDate(2024, 3, 15), 12},
		{NewDate(2024, 3, 15), NewDate(2023, 3, 15), -12},
		{NewDate(2023, 11, 2), NewDate(2024, 2, 28), 3},
	}
	for i, tt := range tests {
		if got := MonthsBetween(tt.a, tt.b); got != tt.want {
			t.Errorf("case %d: MonthsBetween(%s, %s) = %d, want %d", i, tt.a.ISODay(), tt.b.ISODay(), got, tt.want)
		}
	}
}

func TestISOMonth(t *testing.T) {
	if got := NewDate(2024, 3, 7).ISOMonth(); got != "2024-03" {
		t.Fatalf("got %s", got)
	}
}
