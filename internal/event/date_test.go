package event

import (
	"testing"
	"time"
)

func mustZone(t *testing.T) *time.Location {
	t.Helper()
	zone, err := LoadZone("")
	if err != nil {
		t.Fatalf("LoadZone() error = %v", err)
	}
	return zone
}

func TestParseTimestamp(t *testing.T) {
	zone := mustZone(t)

	tests := []struct {
		name     string
		value    string
		want     string // RFC3339 in zone
		wantFail bool
	}{
		{
			name:  "naive date-time assumed local",
			value: "2025-06-01T20:00:00",
			want:  "2025-06-01T20:00:00+02:00",
		},
		{
			name:  "naive with space separator",
			value: "2025-06-01 20:00",
			want:  "2025-06-01T20:00:00+02:00",
		},
		{
			name:  "UTC designator converted to local",
			value: "2025-06-01T18:00:00Z",
			want:  "2025-06-01T20:00:00+02:00",
		},
		{
			name:  "explicit offset converted to local",
			value: "2025-01-10T12:00:00-05:00",
			want:  "2025-01-10T18:00:00+01:00",
		},
		{
			name:  "compact offset",
			value: "2025-01-10T12:00:00+0100",
			want:  "2025-01-10T12:00:00+01:00",
		},
		{
			name:  "fractional seconds truncated",
			value: "2025-06-01T20:00:00.987654",
			want:  "2025-06-01T20:00:00+02:00",
		},
		{
			name:  "bare date is local midnight",
			value: "2025-06-01",
			want:  "2025-06-01T00:00:00+02:00",
		},
		{
			name:  "surrounding whitespace",
			value: "  2025-06-01T20:00  ",
			want:  "2025-06-01T20:00:00+02:00",
		},
		{
			name:     "empty",
			value:    "",
			wantFail: true,
		},
		{
			name:     "free text",
			value:    "Friday night",
			wantFail: true,
		},
		{
			name:     "impossible date",
			value:    "2025-02-30T10:00:00",
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.value, zone)
			if tt.wantFail {
				if ok {
					t.Errorf("ParseTimestamp(%q) = %v, want failure", tt.value, got)
				}
				return
			}
			if !ok {
				t.Fatalf("ParseTimestamp(%q) failed", tt.value)
			}
			if s := got.Format(time.RFC3339); s != tt.want {
				t.Errorf("ParseTimestamp(%q) = %s, want %s", tt.value, s, tt.want)
			}
			if got.Location() != zone {
				t.Errorf("ParseTimestamp(%q) location = %v, want %v", tt.value, got.Location(), zone)
			}
			if got.Nanosecond() != 0 {
				t.Errorf("ParseTimestamp(%q) kept sub-second component %d", tt.value, got.Nanosecond())
			}
		})
	}
}

func TestParseNow(t *testing.T) {
	zone := mustZone(t)

	t.Run("naive override", func(t *testing.T) {
		got, err := ParseNow("2025-06-02T02:00:00", zone)
		if err != nil {
			t.Fatalf("ParseNow() error = %v", err)
		}
		if got.Hour() != 2 || got.Day() != 2 {
			t.Errorf("ParseNow() = %v, want 2025-06-02 02:00 local", got)
		}
	})

	t.Run("invalid override", func(t *testing.T) {
		if _, err := ParseNow("yesterday", zone); err == nil {
			t.Error("ParseNow() expected error, got nil")
		}
	})

	t.Run("empty uses current time", func(t *testing.T) {
		before := time.Now().Add(-time.Second)
		got, err := ParseNow("", zone)
		if err != nil {
			t.Fatalf("ParseNow() error = %v", err)
		}
		if got.Before(before.Truncate(time.Second)) {
			t.Errorf("ParseNow(\"\") = %v, want around %v", got, before)
		}
	})
}

func TestWeekdayLabel(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-06-02", "Mon"},
		{"2025-06-04", "Wed"},
		{"2025-06-07", "Sat"},
		{"2025-06-08", "Sun"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			if err != nil {
				t.Fatal(err)
			}
			if got := WeekdayLabel(d); got != tt.want {
				t.Errorf("WeekdayLabel(%s) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
}

func TestHumanWhen(t *testing.T) {
	zone := mustZone(t)
	ts, _ := ParseTimestamp("2025-06-06T20:30:00", zone)
	if got := HumanWhen(ts); got != "Fri 20:30" {
		t.Errorf("HumanWhen() = %q, want %q", got, "Fri 20:30")
	}
}
