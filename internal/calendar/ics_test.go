package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

func pinNow(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func oslo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := event.LoadZone("")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestGenerateICS(t *testing.T) {
	pinNow(t)
	zone := oslo(t)
	start := time.Date(2025, 3, 14, 20, 0, 0, 0, zone)
	evt := &event.Event{
		Source:   "USF Verftet",
		Title:    "Jazz Night",
		URL:      "https://example.com/jazz",
		City:     "Bergen",
		Venue:    "USF Verftet",
		StartsAt: &start,
		Tags:     []string{"jazz", "music"},
		Sources:  []string{"USF Verftet"},
	}

	ics := GenerateICS([]*event.Event{evt}, zone)

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Spontis//spontis//EN",
		"X-WR-TIMEZONE:Europe/Oslo",
		"BEGIN:VEVENT",
		"UID:" + event.GenerateID(evt) + "@spontis",
		"DTSTAMP:20250301T120000Z",
		"DTSTART:20250314T190000Z",
		"DTEND:20250314T210000Z",
		"SUMMARY:Jazz Night",
		"LOCATION:USF Verftet\\, Bergen",
		"URL:https://example.com/jazz",
		"DESCRIPTION:Fri 20:00\\nSource: USF Verftet",
		"CATEGORIES:jazz,music",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	for _, field := range requiredFields {
		if !strings.Contains(ics, field) {
			t.Errorf("ICS missing required field: %s", field)
		}
	}

	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("ICS should use \\r\\n line endings")
	}
}

func TestGenerateICS_SkipsUntimed(t *testing.T) {
	pinNow(t)
	zone := oslo(t)
	start := time.Date(2025, 3, 14, 20, 0, 0, 0, zone)
	events := []*event.Event{
		{Source: "a", Title: "Timed", URL: "https://a/1", City: "Bergen", StartsAt: &start},
		{Source: "a", Title: "Untimed", URL: "https://a/2", City: "Bergen", When: "Soon"},
	}

	ics := GenerateICS(events, zone)

	if got := strings.Count(ics, "BEGIN:VEVENT"); got != 1 {
		t.Errorf("got %d VEVENTs, want 1", got)
	}
	if strings.Contains(ics, "Untimed") {
		t.Error("untimed event should be skipped")
	}
}

func TestGenerateICS_EndsAt(t *testing.T) {
	pinNow(t)
	start := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	evt := &event.Event{Source: "a", Title: "Long", URL: "https://a/1", City: "Bergen", StartsAt: &start, EndsAt: &end}

	ics := GenerateICS([]*event.Event{evt}, time.UTC)

	if !strings.Contains(ics, "DTEND:20250314T230000Z") {
		t.Errorf("expected DTEND from ends_at, got:\n%s", ics)
	}
}

func TestGenerateICS_Empty(t *testing.T) {
	pinNow(t)
	ics := GenerateICS(nil, time.UTC)

	if strings.Contains(ics, "BEGIN:VEVENT") {
		t.Error("empty feed should have no VEVENT")
	}
	if !strings.Contains(ics, "BEGIN:VCALENDAR") || !strings.Contains(ics, "END:VCALENDAR") {
		t.Error("empty feed should still be a calendar")
	}
}

func TestEscapeICS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a, b", "a\\, b"},
		{"a; b", "a\\; b"},
		{"back\\slash", "back\\\\slash"},
		{"two\nlines", "two\\nlines"},
		{"crlf\r\nlines", "crlf\\nlines"},
		{"bare\rreturn", "bare\\nreturn"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := escapeICS(tt.in); got != tt.want {
				t.Errorf("escapeICS(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateICS_NoBareCarriageReturn(t *testing.T) {
	pinNow(t)
	start := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	evt := &event.Event{Source: "a", Title: "Split\rTitle", URL: "https://a/1", City: "Bergen",
		Description: "one\rtwo", StartsAt: &start}

	ics := GenerateICS([]*event.Event{evt}, time.UTC)

	if strings.Contains(strings.ReplaceAll(ics, "\r\n", ""), "\r") {
		t.Errorf("ICS contains a bare carriage return:\n%q", ics)
	}
	if !strings.Contains(ics, "SUMMARY:Split\\nTitle") {
		t.Errorf("SUMMARY not escaped:\n%s", ics)
	}
}

func TestWriteLine_Folds(t *testing.T) {
	var b strings.Builder
	writeLine(&b, "DESCRIPTION", strings.Repeat("æ", 60))

	lines := strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n")
	if len(lines) < 2 {
		t.Fatalf("expected folded output, got %q", b.String())
	}
	for i, line := range lines {
		if len(line) > 75 {
			t.Errorf("line %d is %d octets", i, len(line))
		}
		if i > 0 && !strings.HasPrefix(line, " ") {
			t.Errorf("continuation line %d should start with a space", i)
		}
	}
	unfolded := strings.ReplaceAll(strings.TrimSuffix(b.String(), "\r\n"), "\r\n ", "")
	if unfolded != "DESCRIPTION:"+strings.Repeat("æ", 60) {
		t.Errorf("unfolded = %q", unfolded)
	}
}
