package pipeline

import (
	"sort"
	"strings"

	"github.com/spontis-app/spontis/internal/event"
)

// Sort orders events in place: timed events first by start, then untimed
// events by their "when" label. Ties break on lowercased title and then on
// the identity token.
func Sort(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return less(events[i], events[j])
	})
}

func less(a, b *event.Event) bool {
	aTimed, bTimed := a.StartsAt != nil, b.StartsAt != nil
	if aTimed != bTimed {
		return aTimed
	}

	if aTimed {
		if !a.StartsAt.Equal(*b.StartsAt) {
			return a.StartsAt.Before(*b.StartsAt)
		}
	} else {
		aw, bw := strings.ToLower(a.When), strings.ToLower(b.When)
		if aw != bw {
			return aw < bw
		}
	}

	at, bt := strings.ToLower(a.Title), strings.ToLower(b.Title)
	if at != bt {
		return at < bt
	}
	return a.Identity() < b.Identity()
}
