package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

// DefaultDuration is assumed for events without an end.
const DefaultDuration = 2 * time.Hour

// CalendarName is the X-WR-CALNAME of the exported feed.
const CalendarName = "Spontis"

// now is swapped in tests to pin DTSTAMP.
var now = time.Now

// GenerateICS renders events as a single VCALENDAR. Events without a start
// are skipped since a VEVENT needs DTSTART.
func GenerateICS(events []*event.Event, zone *time.Location) string {
	if zone == nil {
		zone = time.UTC
	}
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Spontis//spontis//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	writeLine(&ics, "X-WR-CALNAME", CalendarName)
	writeLine(&ics, "X-WR-TIMEZONE", zone.String())

	stamp := formatICSTime(now())
	for _, e := range events {
		if e == nil || e.StartsAt == nil {
			continue
		}
		writeEvent(&ics, e, zone, stamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, e *event.Event, zone *time.Location, stamp string) {
	start := *e.StartsAt
	end := start.Add(DefaultDuration)
	if e.EndsAt != nil && e.EndsAt.After(start) {
		end = *e.EndsAt
	}

	ics.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(ics, "UID:%s@spontis\r\n", event.GenerateID(e))
	fmt.Fprintf(ics, "DTSTAMP:%s\r\n", stamp)
	fmt.Fprintf(ics, "DTSTART:%s\r\n", formatICSTime(start))
	fmt.Fprintf(ics, "DTEND:%s\r\n", formatICSTime(end))
	writeLine(ics, "SUMMARY", escapeICS(e.Title))

	if loc := location(e); loc != "" {
		writeLine(ics, "LOCATION", escapeICS(loc))
	}
	if e.URL != "" {
		writeLine(ics, "URL", e.URL)
	}
	writeLine(ics, "DESCRIPTION", escapeICS(description(e, zone)))
	if len(e.Tags) > 0 {
		cats := make([]string, len(e.Tags))
		for i, tag := range e.Tags {
			cats[i] = escapeICS(tag)
		}
		writeLine(ics, "CATEGORIES", strings.Join(cats, ","))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
}

func location(e *event.Event) string {
	place := e.Location()
	switch {
	case place == "":
		return e.City
	case e.City == "" || strings.Contains(strings.ToLower(place), strings.ToLower(e.City)):
		return place
	default:
		return place + ", " + e.City
	}
}

func description(e *event.Event, zone *time.Location) string {
	var lines []string
	lines = append(lines, event.HumanWhen(e.StartsAt.In(zone)))
	if e.Price != "" {
		lines = append(lines, e.Price)
	}
	if text := strings.TrimSpace(e.Description); text != "" {
		lines = append(lines, text)
	}
	sources := e.Sources
	if len(sources) == 0 {
		sources = []string{e.Source}
	}
	lines = append(lines, "Source: "+strings.Join(sources, ", "))
	return strings.Join(lines, "\n")
}

// writeLine emits a content line folded at 75 octets.
func writeLine(ics *strings.Builder, name, value string) {
	line := name + ":" + value
	const limit = 75
	first := true
	for len(line) > 0 {
		width := limit
		if !first {
			width = limit - 1
		}
		if len(line) <= width {
			if !first {
				ics.WriteString(" ")
			}
			ics.WriteString(line)
			break
		}
		cut := width
		// keep multi-byte runes whole
		for cut > 0 && line[cut]&0xC0 == 0x80 {
			cut--
		}
		if !first {
			ics.WriteString(" ")
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	ics.WriteString("\r\n")
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes special characters for iCalendar text values
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
