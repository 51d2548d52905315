// Package dedupe drops repeated listings within a single batch.
//
// Two events are duplicates when they share a composite key. The key prefers
// the most specific information available: an exact start time, then a free
// text "when", then the URL. Events with none of these cannot be keyed and are
// always kept.
package dedupe

import (
	"strings"

	"github.com/spontis-app/spontis/internal/event"
)

// Stats reports how many events were dropped and how many could not be keyed.
type Stats struct {
	Merged     int `json:"merged"`
	SkippedKey int `json:"skipped_key"`
}

const sep = "\x1f"

// Key derives the deduplication key for e. The boolean is false when no key
// can be built.
func Key(e *event.Event) (string, bool) {
	title := lowerTrim(e.Title)
	place := lowerTrim(e.Location())
	identity := e.Identity()

	switch {
	case e.StartsAt != nil:
		return strings.Join([]string{"starts", title, e.StartDate(), place, identity}, sep), true
	case strings.TrimSpace(e.When) != "":
		parts := []string{"when", title, lowerTrim(e.When), place}
		if identity != "" {
			parts = append(parts, identity)
		}
		return strings.Join(parts, sep), true
	case identity != "":
		return strings.Join([]string{"url", title, place, identity}, sep), true
	default:
		return "", false
	}
}

// Dedupe keeps the first event seen for every key and preserves input order.
func Dedupe(events []*event.Event) ([]*event.Event, Stats) {
	var stats Stats
	seen := make(map[string]struct{}, len(events))
	out := make([]*event.Event, 0, len(events))

	for _, e := range events {
		key, ok := Key(e)
		if !ok {
			stats.SkippedKey++
			out = append(out, e)
			continue
		}
		if _, dup := seen[key]; dup {
			stats.Merged++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	return out, stats
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
