// Package pipeline wires the feed stages together.
//
// Run takes raw records from every source and produces the canonical feed:
// sanitize, validate, dedupe, infer tags and merge across sources, drop stale
// events and sort. Every stage is deterministic so identical input and now
// give identical output.
package pipeline

import (
	"sort"
	"time"

	"github.com/spontis-app/spontis/internal/dedupe"
	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/merge"
	"github.com/spontis-app/spontis/internal/normalize"
)

// DefaultRetentionHours is how long an event stays in the feed after it ended
// (or started, when no end is known).
const DefaultRetentionHours = 6

// Validator checks a sanitized event. A non-nil error drops the event.
type Validator func(*event.Event) error

// Options configures a pipeline run.
type Options struct {
	Zone           *time.Location
	DefaultCity    string
	RetentionHours int
	Now            time.Time
	Validate       Validator
}

// Stats holds per-stage counts for a run.
type Stats struct {
	Raw          int `json:"raw"`
	Rejected     int `json:"rejected"`
	Invalid      int `json:"invalid"`
	DedupeMerged int `json:"dedupe_merged"`
	SkippedKey   int `json:"skipped_key"`
	Merged       int `json:"cross_source_merged"`
	Stale        int `json:"stale_dropped"`
	Output       int `json:"output"`
}

// Result is the canonical feed plus diagnostics.
type Result struct {
	Events     []*event.Event
	Rejections []normalize.Rejection
	Stats      Stats
}

// Run executes every stage over raws.
func Run(raws []event.Raw, opts Options) Result {
	zone := opts.Zone
	if zone == nil {
		zone = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = event.Normalize(now, zone)

	var res Result
	res.Stats.Raw = len(raws)

	sanitizer := normalize.New(zone, opts.DefaultCity)
	events, rejected := sanitizer.SanitizeAll(raws)
	res.Rejections = rejected
	res.Stats.Rejected = len(rejected)

	if opts.Validate != nil {
		valid := events[:0:0]
		for _, e := range events {
			if err := opts.Validate(e); err != nil {
				logger.Warn("dropping invalid event", logger.Fields{
					"title":  e.Title,
					"source": e.Source,
					"error":  err.Error(),
				})
				res.Stats.Invalid++
				continue
			}
			valid = append(valid, e)
		}
		events = valid
	}

	events, dstats := dedupe.Dedupe(events)
	res.Stats.DedupeMerged = dstats.Merged
	res.Stats.SkippedKey = dstats.SkippedKey

	events, merges := merge.Merge(events, zone)
	res.Stats.Merged = merges

	events, stale := FilterStale(events, now, opts.RetentionHours)
	res.Stats.Stale = stale
	if stale > 0 {
		logger.Info("removed past events", logger.Fields{
			"dropped":   stale,
			"threshold": now.Add(-time.Duration(opts.RetentionHours) * time.Hour).Format(time.RFC3339),
		})
	}

	Sort(events)
	if events == nil {
		events = []*event.Event{}
	}
	res.Events = events
	res.Stats.Output = len(events)

	logger.Info("pipeline complete", logger.Fields{
		"raw":                 res.Stats.Raw,
		"rejected":            res.Stats.Rejected,
		"invalid":             res.Stats.Invalid,
		"dedupe_merged":       res.Stats.DedupeMerged,
		"skipped_key":         res.Stats.SkippedKey,
		"cross_source_merged": res.Stats.Merged,
		"stale_dropped":       res.Stats.Stale,
		"output":              res.Stats.Output,
	})
	return res
}

// SourceCount is the number of feed events attributed to a source.
type SourceCount struct {
	Source string `json:"source"`
	Events int    `json:"events"`
}

// Summarize counts events per source, crediting every entry in Sources (or
// Source when the list is empty). Sorted by count descending, then name.
func Summarize(events []*event.Event) []SourceCount {
	counts := make(map[string]int)
	for _, e := range events {
		names := e.Sources
		if len(names) == 0 {
			names = []string{e.Source}
		}
		for _, n := range names {
			if n != "" {
				counts[n]++
			}
		}
	}

	out := make([]SourceCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, SourceCount{Source: name, Events: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Events != out[j].Events {
			return out[i].Events > out[j].Events
		}
		return out[i].Source < out[j].Source
	})
	return out
}
