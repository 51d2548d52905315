// Package tags infers category tags from an event's title and venue.
package tags

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spontis-app/spontis/internal/event"
)

// LateNight is added for late keywords or a start between 22:00 and 05:00.
const LateNight = "late-night"

type category struct {
	tag     string
	pattern *regexp.Regexp
}

// wordPattern matches any keyword as a whole word. \b in RE2 is ASCII only,
// so boundaries are spelled out with Unicode classes.
func wordPattern(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN_])(?:` + strings.Join(quoted, "|") + `)(?:[^\pL\pN_]|$)`)
}

var categories = []category{
	{"techno", wordPattern("dj", "club", "techno", "rave", "house", "electro", "afterparty", "warehouse", "disco")},
	{"jazz", wordPattern("jazz")},
	{"lecture", wordPattern("lecture", "talk", "seminar", "conference", "panel", "debate", "foredrag", "samtale")},
	{"festival", wordPattern("festival", "weekender")},
	{"underground", wordPattern("underground", "basement", "secret", "warehouse")},
	{"family", wordPattern("family", "familie", "kids", "children", "barn", "ungdom")},
	{"culture", wordPattern("art", "kunsthall", "museum", "culture", "utstilling", "performance", "kunst",
		"lecture", "talk", "seminar", "conference", "panel", "debate", "foredrag", "samtale")},
}

var lateNightKeywords = wordPattern("late night", "afterparty", "after-hours", "night session")

// Infer adds inferred tags to e.Tags in place. Existing tags are kept; the
// result is sorted and unique, or nil when empty.
func Infer(e *event.Event, zone *time.Location) {
	set := make(map[string]struct{}, len(e.Tags)+2)
	for _, t := range e.Tags {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}

	var parts []string
	for _, p := range []string{e.Title, e.Venue} {
		if p != "" {
			parts = append(parts, strings.ToLower(p))
		}
	}
	haystack := strings.Join(parts, " ")

	for _, c := range categories {
		if c.pattern.MatchString(haystack) {
			set[c.tag] = struct{}{}
		}
	}
	if lateNightKeywords.MatchString(haystack) {
		set[LateNight] = struct{}{}
	}
	if e.StartsAt != nil {
		start := *e.StartsAt
		if zone != nil {
			start = start.In(zone)
		}
		if h := start.Hour(); h >= 22 || h < 5 {
			set[LateNight] = struct{}{}
		}
	}

	e.Tags = Normalize(keys(set))
}

// Normalize trims, de-duplicates and sorts tags. Returns nil when empty.
func Normalize(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
