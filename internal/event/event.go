package event

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

// DefaultCity is used when a record carries no city of its own.
const DefaultCity = "Bergen"

// Raw is an untyped record as produced by a source. Extra keys are tolerated.
type Raw map[string]any

// SourceLink is an alternate attribution for an event.
type SourceLink struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

// Event is the canonical shape of a listing after sanitizing.
type Event struct {
	Source      string       `json:"source"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	City        string       `json:"city"`
	Venue       string       `json:"venue,omitempty"`
	When        string       `json:"when,omitempty"`
	Where       string       `json:"where,omitempty"`
	StartsAt    *time.Time   `json:"starts_at,omitempty"`
	EndsAt      *time.Time   `json:"ends_at,omitempty"`
	Description string       `json:"description,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Image       string       `json:"image,omitempty"`
	Price       string       `json:"price,omitempty"`
	Category    string       `json:"category,omitempty"`
	Series      string       `json:"series,omitempty"`
	Region      string       `json:"region,omitempty"`
	TicketURL   string       `json:"ticket_url,omitempty"`
	Timezone    string       `json:"timezone,omitempty"`
	URLOriginal string       `json:"url_original,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Sources     []string     `json:"sources,omitempty"`
	SourceLinks []SourceLink `json:"sourceLinks,omitempty"`
	URLHash     string       `json:"urlHash,omitempty"`
	Free        *bool        `json:"free,omitempty"`
	URLStatus   *int         `json:"url_status,omitempty"`
}

// Identity returns the upstream identity hint if present, otherwise the URL.
func (e *Event) Identity() string {
	if e.URLHash != "" {
		return e.URLHash
	}
	return e.URL
}

// Location returns venue, falling back to where.
func (e *Event) Location() string {
	if e.Venue != "" {
		return e.Venue
	}
	return e.Where
}

// StartDate returns the local calendar date of StartsAt as YYYY-MM-DD,
// or "" when the event has no start.
func (e *Event) StartDate() string {
	if e.StartsAt == nil {
		return ""
	}
	return e.StartsAt.Format("2006-01-02")
}

// Clone returns a deep copy so merges never alias the input slices.
func (e *Event) Clone() *Event {
	c := *e
	if e.StartsAt != nil {
		t := *e.StartsAt
		c.StartsAt = &t
	}
	if e.EndsAt != nil {
		t := *e.EndsAt
		c.EndsAt = &t
	}
	if e.Free != nil {
		v := *e.Free
		c.Free = &v
	}
	if e.URLStatus != nil {
		v := *e.URLStatus
		c.URLStatus = &v
	}
	c.Tags = append([]string(nil), e.Tags...)
	c.Sources = append([]string(nil), e.Sources...)
	c.SourceLinks = append([]SourceLink(nil), e.SourceLinks...)
	if len(c.Tags) == 0 {
		c.Tags = nil
	}
	if len(c.Sources) == 0 {
		c.Sources = nil
	}
	if len(c.SourceLinks) == 0 {
		c.SourceLinks = nil
	}
	return &c
}

// GenerateID creates a deterministic ID for an event from its identity token
// and start date. Used for calendar UIDs.
func GenerateID(e *Event) string {
	h := sha1.New()
	h.Write([]byte(strings.ToLower(e.Identity()) + "|" + strings.ToLower(strings.TrimSpace(e.Title)) + "|" + e.StartDate()))
	return fmt.Sprintf("%x", h.Sum(nil))
}
