// Package views projects the canonical feed into time-windowed views.
//
// All windows are computed from an event's start time only. The evening window
// starts at local 18:00, or at now once the evening has begun, and treats the
// hours before 04:00 as a continuation of the previous night.
package views

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

const (
	// Window is the half-width of the today view and the length of the
	// evening window.
	Window = 6 * time.Hour

	eveningHour  = 18
	nightEndHour = 4
)

// Heatmap counts events per weekday, Monday first.
type Heatmap map[string]int

// NewHeatmap returns a heatmap with all seven weekdays at zero.
func NewHeatmap() Heatmap {
	h := make(Heatmap, len(event.Weekdays))
	for _, d := range event.Weekdays {
		h[d] = 0
	}
	return h
}

// MarshalJSON writes the weekdays in Mon..Sun order.
func (h Heatmap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range event.Weekdays {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%d", d, h[d])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Set groups the three derived views.
type Set struct {
	Today   []*event.Event `json:"today"`
	Tonight []*event.Event `json:"tonight"`
	Heatmap Heatmap        `json:"heatmap"`
}

// Today returns events starting within six hours either side of now.
func Today(events []*event.Event, now time.Time) []*event.Event {
	return between(events, now.Add(-Window), now.Add(Window))
}

// EveningStart returns the start of the evening window for now.
func EveningStart(now time.Time) time.Time {
	y, m, d := now.Date()
	switch h := now.Hour(); {
	case h >= eveningHour:
		return now
	case h < nightEndHour:
		return time.Date(y, m, d-1, eveningHour, 0, 0, 0, now.Location())
	default:
		return time.Date(y, m, d, eveningHour, 0, 0, 0, now.Location())
	}
}

// Tonight returns events starting inside the evening window.
func Tonight(events []*event.Event, now time.Time) []*event.Event {
	start := EveningStart(now)
	return between(events, start, start.Add(Window))
}

// BuildHeatmap counts events by the weekday of their start.
func BuildHeatmap(events []*event.Event) Heatmap {
	h := NewHeatmap()
	for _, e := range events {
		if e.StartsAt == nil {
			continue
		}
		h[event.WeekdayLabel(*e.StartsAt)]++
	}
	return h
}

// Build computes all views. now should already be in the feed's zone.
func Build(events []*event.Event, now time.Time) Set {
	return Set{
		Today:   Today(events, now),
		Tonight: Tonight(events, now),
		Heatmap: BuildHeatmap(events),
	}
}

// between returns events starting in [from, to], ascending by start.
func between(events []*event.Event, from, to time.Time) []*event.Event {
	out := []*event.Event{}
	for _, e := range events {
		if e.StartsAt == nil {
			continue
		}
		if e.StartsAt.Before(from) || e.StartsAt.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt.Before(*out[j].StartsAt)
	})
	return out
}

// compile-time check
var _ json.Marshaler = Heatmap(nil)
