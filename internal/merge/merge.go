// Package merge folds listings of the same event from different sources into
// one representative.
//
// Matching is greedy and order dependent: each incoming event is compared to
// the representatives collected so far, in insertion order, and absorbed by the
// first one that starts on the same local calendar day with a similar title.
package merge

import (
	"time"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/tags"
)

// Merge infers tags for every event and merges cross-source duplicates.
// It returns the representatives in first-seen order and the number of
// events absorbed. Input events are not modified.
func Merge(events []*event.Event, zone *time.Location) ([]*event.Event, int) {
	var reps []*event.Event
	merges := 0

	for _, in := range events {
		incoming := in.Clone()
		tags.Infer(incoming, zone)

		matched := false
		for _, rep := range reps {
			if !sameDay(rep, incoming, zone) {
				continue
			}
			if !TitlesMatch(rep.Title, incoming.Title) {
				continue
			}
			absorb(rep, incoming)
			merges++
			matched = true
			break
		}

		if !matched {
			incoming.Sources = appendUnique(nil, incoming.Source)
			reps = append(reps, incoming)
		}
	}

	for _, rep := range reps {
		rep.Tags = tags.Normalize(rep.Tags)
	}

	return reps, merges
}

func sameDay(a, b *event.Event, zone *time.Location) bool {
	if a.StartsAt == nil || b.StartsAt == nil {
		return false
	}
	if zone == nil {
		zone = time.UTC
	}
	return a.StartsAt.In(zone).Format("2006-01-02") == b.StartsAt.In(zone).Format("2006-01-02")
}

func absorb(rep, incoming *event.Event) {
	rep.Sources = appendUnique(rep.Sources, rep.Source)
	rep.Sources = appendUnique(rep.Sources, incoming.Source)
	for _, s := range incoming.Sources {
		rep.Sources = appendUnique(rep.Sources, s)
	}

	if len(rep.Tags) > 0 || len(incoming.Tags) > 0 {
		rep.Tags = tags.Normalize(append(append([]string(nil), rep.Tags...), incoming.Tags...))
	}

	if rep.StartsAt == nil && incoming.StartsAt != nil {
		t := *incoming.StartsAt
		rep.StartsAt = &t
	}
	if rep.EndsAt == nil && incoming.EndsAt != nil {
		t := *incoming.EndsAt
		rep.EndsAt = &t
	}
	fill(&rep.Venue, incoming.Venue)
	fill(&rep.City, incoming.City)
	fill(&rep.When, incoming.When)
	fill(&rep.Where, incoming.Where)

	for _, link := range incoming.SourceLinks {
		if !hasLink(rep.SourceLinks, link) {
			rep.SourceLinks = append(rep.SourceLinks, link)
		}
	}
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func hasLink(links []event.SourceLink, l event.SourceLink) bool {
	for _, existing := range links {
		if existing == l {
			return true
		}
	}
	return false
}

func appendUnique(values []string, v string) []string {
	if v == "" {
		return values
	}
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}
