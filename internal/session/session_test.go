package session

import (
	"testing"
	"time"
)

func TestIsWithinSession(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		start  int
		end    int
		offset int
		want   bool
	}{
		{name: "inside plain window", hour: 10, start: 8, end: 17, want: true},
		{name: "start is inclusive", hour: 8, start: 8, end: 17, want: true},
		{name: "end is exclusive", hour: 17, start: 8, end: 17, want: false},
		{name: "before plain window", hour: 7, start: 8, end: 17, want: false},
		{name: "overnight late evening", hour: 23, start: 22, end: 5, want: true},
		{name: "overnight after midnight", hour: 3, start: 22, end: 5, want: true},
		{name: "overnight midday", hour: 12, start: 22, end: 5, want: false},
		{name: "overnight end exclusive", hour: 5, start: 22, end: 5, want: false},
		{name: "region offset shifts hour in", hour: 21, start: 23, end: 5, offset: 2, want: true},
		{name: "region offset shifts hour out", hour: 4, start: 22, end: 5, offset: 2, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 3, 10, tt.hour, 30, 0, 0, time.UTC)
			got := IsWithinSession(now, tt.start, tt.end, tt.offset)
			if got != tt.want {
				t.Fatalf("IsWithinSession(hour=%d, %d->%d, offset=%d) = %v, want %v",
					tt.hour, tt.start, tt.end, tt.offset, got, tt.want)
			}
		})
	}
}

func TestIsWithinSessionOvernightScenario(t *testing.T) {
	// Window 22 -> 05 region-local: 23:30 trades, 12:00 does not.
	if !IsWithinSession(time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC), 22, 5, 0) {
		t.Fatal("23:30 should be inside the 22->05 window")
	}
	if IsWithinSession(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), 22, 5, 0) {
		t.Fatal("12:00 should be outside the 22->05 window")
	}
}

func TestDayKeyRollsWithRegionOffset(t *testing.T) {
	// 23:00 UTC with +3 region offset is already the next local day.
	now := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	if got := DayKey(now, 0); got != "2025-03-10" {
		t.Fatalf("DayKey offset 0 = %s, want 2025-03-10", got)
	}
	if got := DayKey(now, 3); got != "2025-03-11" {
		t.Fatalf("DayKey offset 3 = %s, want 2025-03-11", got)
	}
}

func TestPastWeeklyCutoff(t *testing.T) {
	friday2130 := time.Date(2025, 3, 14, 21, 30, 0, 0, time.UTC)
	if !PastWeeklyCutoff(friday2130, time.Friday, 21, 0) {
		t.Fatal("21:30 Friday should be past a Friday 21:00 cutoff")
	}
	if PastWeeklyCutoff(friday2130, time.Friday, 22, 0) {
		t.Fatal("21:30 Friday should not be past a Friday 22:00 cutoff")
	}
	thursday := time.Date(2025, 3, 13, 23, 0, 0, 0, time.UTC)
	if PastWeeklyCutoff(thursday, time.Friday, 21, 0) {
		t.Fatal("Thursday should never hit a Friday cutoff")
	}
}

func TestValidateWindow(t *testing.T) {
	if err := ValidateWindow(0, 24); err != nil {
		t.Fatalf("ValidateWindow(0,24) = %v, want nil", err)
	}
	if err := ValidateWindow(-1, 10); err == nil {
		t.Fatal("ValidateWindow(-1,10) should fail")
	}
	if err := ValidateWindow(8, 25); err == nil {
		t.Fatal("ValidateWindow(8,25) should fail")
	}
}
