// Package filter narrows the published feed for API consumers.
//
// A Filter combines criteria with AND; list criteria match when any entry
// matches. An empty filter matches every event.
//
//	f := filter.NewFilter()
//	f.WeekendsOnly = true
//	f.Tags = []string{"jazz"}
//	filtered := f.Apply(events)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	// Date range over starts_at, inclusive
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Case-insensitive substring matches
	Cities []string `json:"cities,omitempty"`
	Venues []string `json:"venues,omitempty"`

	// Case-insensitive exact matches
	Tags    []string `json:"tags,omitempty"`
	Sources []string `json:"sources,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`
	FreeOnly     bool `json:"free_only,omitempty"`

	// Free text over title, venue, where and description
	Text string `json:"text,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
func NewFilter() *Filter {
	return &Filter{}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Cities) == 0 &&
		len(f.Venues) == 0 &&
		len(f.Tags) == 0 &&
		len(f.Sources) == 0 &&
		!f.WeekendsOnly &&
		!f.FreeOnly &&
		strings.TrimSpace(f.Text) == ""
}

// needsStart reports whether any criterion depends on starts_at.
func (f *Filter) needsStart() bool {
	return f.DateFrom != nil || f.DateTo != nil || f.WeekendsOnly
}

// Matches checks if an event matches all active filter criteria.
// Untimed events never match a date or weekend criterion.
func (f *Filter) Matches(evt *event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	if f.needsStart() {
		if evt.StartsAt == nil {
			return false
		}
		start := *evt.StartsAt
		if f.DateFrom != nil && start.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && start.After(*f.DateTo) {
			return false
		}
		if f.WeekendsOnly {
			weekday := start.Weekday()
			if weekday != time.Saturday && weekday != time.Sunday {
				return false
			}
		}
	}

	if f.FreeOnly && (evt.Free == nil || !*evt.Free) {
		return false
	}

	if len(f.Cities) > 0 && !containsAny(evt.City, f.Cities) {
		return false
	}

	if len(f.Venues) > 0 && !containsAny(evt.Location(), f.Venues) {
		return false
	}

	if len(f.Tags) > 0 && !equalsAny(evt.Tags, f.Tags) {
		return false
	}

	if len(f.Sources) > 0 {
		names := append([]string{evt.Source}, evt.Sources...)
		if !equalsAny(names, f.Sources) {
			return false
		}
	}

	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		haystack := strings.ToLower(strings.Join([]string{evt.Title, evt.Venue, evt.Where, evt.Description}, " "))
		if !strings.Contains(haystack, text) {
			return false
		}
	}

	return true
}

// Apply returns the matching events in their original order. The result is
// never nil.
func (f *Filter) Apply(events []*event.Event) []*event.Event {
	filtered := make([]*event.Event, 0, len(events))
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format("Jan 2, 2006")))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format("Jan 2, 2006")))
	}
	if len(f.Cities) > 0 {
		parts = append(parts, fmt.Sprintf("Cities: %s", strings.Join(f.Cities, ", ")))
	}
	if len(f.Venues) > 0 {
		parts = append(parts, fmt.Sprintf("Venues: %s", strings.Join(f.Venues, ", ")))
	}
	if len(f.Tags) > 0 {
		parts = append(parts, fmt.Sprintf("Tags: %s", strings.Join(f.Tags, ", ")))
	}
	if len(f.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %s", strings.Join(f.Sources, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}
	if f.FreeOnly {
		parts = append(parts, "Free only")
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		parts = append(parts, fmt.Sprintf("Text: %q", text))
	}

	return strings.Join(parts, " | ")
}

// Clone creates a deep copy of the filter.
func (f *Filter) Clone() *Filter {
	clone := &Filter{
		WeekendsOnly: f.WeekendsOnly,
		FreeOnly:     f.FreeOnly,
		Text:         f.Text,
		Cities:       append([]string(nil), f.Cities...),
		Venues:       append([]string(nil), f.Venues...),
		Tags:         append([]string(nil), f.Tags...),
		Sources:      append([]string(nil), f.Sources...),
	}
	if f.DateFrom != nil {
		df := *f.DateFrom
		clone.DateFrom = &df
	}
	if f.DateTo != nil {
		dt := *f.DateTo
		clone.DateTo = &dt
	}
	return clone
}

func containsAny(value string, needles []string) bool {
	value = strings.ToLower(value)
	for _, n := range needles {
		if strings.Contains(value, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func equalsAny(values, wanted []string) bool {
	for _, v := range values {
		for _, w := range wanted {
			if strings.EqualFold(v, w) {
				return true
			}
		}
	}
	return false
}
