package pipeline

import (
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

// FilterStale drops events whose end, or start when no end is known, lies
// before now minus the retention window. Events with neither are kept.
// retentionHours <= 0 disables the filter.
func FilterStale(events []*event.Event, now time.Time, retentionHours int) ([]*event.Event, int) {
	if retentionHours <= 0 {
		return events, 0
	}
	threshold := now.Add(-time.Duration(retentionHours) * time.Hour)

	kept := make([]*event.Event, 0, len(events))
	dropped := 0
	for _, e := range events {
		if isStale(e, threshold) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	return kept, dropped
}

func isStale(e *event.Event, threshold time.Time) bool {
	switch {
	case e.EndsAt != nil:
		return e.EndsAt.Before(threshold)
	case e.StartsAt != nil:
		return e.StartsAt.Before(threshold)
	default:
		return false
	}
}
