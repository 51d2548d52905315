// Package report records run metadata and summarizes source health.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/pipeline"
	"github.com/spontis-app/spontis/internal/source"
)

// Meta is persisted after every run as generated/meta.json.
type Meta struct {
	RunID          string                 `json:"run_id"`
	LastUpdated    time.Time              `json:"last_updated"`
	TotalEvents    int                    `json:"total_events"`
	SourceCount    int                    `json:"source_count"`
	Sources        []pipeline.SourceCount `json:"sources"`
	SourceStats    []source.SourceStat    `json:"source_stats"`
	SourceFailures []string               `json:"source_failures"`
	Pipeline       pipeline.Stats         `json:"pipeline"`
}

// NewMeta assembles metadata for a finished run.
func NewMeta(now time.Time, events []*event.Event, stats []source.SourceStat, ps pipeline.Stats) *Meta {
	counts := pipeline.Summarize(events)
	m := &Meta{
		RunID:          uuid.NewString(),
		LastUpdated:    now,
		TotalEvents:    len(events),
		SourceCount:    len(counts),
		Sources:        counts,
		SourceStats:    append([]source.SourceStat{}, stats...),
		SourceFailures: []string{},
		Pipeline:       ps,
	}
	for _, s := range stats {
		if s.Status == source.StatusFailed {
			m.SourceFailures = append(m.SourceFailures, s.Name)
		}
	}
	return m
}

// Failure is a source that errored in the last run.
type Failure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Report is the human-facing summary of a Meta.
type Report struct {
	RunID        string                 `json:"run_id"`
	LastUpdated  time.Time              `json:"last_updated"`
	TotalEvents  int                    `json:"total_events"`
	SourceCount  int                    `json:"source_count"`
	TopSources   []pipeline.SourceCount `json:"top_sources"`
	Failing      []Failure              `json:"failing"`
	Inactive     []string               `json:"inactive"`
	StatusGroups map[string][]string    `json:"status_groups"`
	Pipeline     pipeline.Stats         `json:"pipeline"`
}

// TopSourceLimit caps TopSources.
const TopSourceLimit = 10

// Build summarizes m. Inactive sources fetched fine but produced no events.
func Build(m *Meta) Report {
	r := Report{
		RunID:        m.RunID,
		LastUpdated:  m.LastUpdated,
		TotalEvents:  m.TotalEvents,
		SourceCount:  m.SourceCount,
		Failing:      []Failure{},
		Inactive:     []string{},
		StatusGroups: map[string][]string{},
		Pipeline:     m.Pipeline,
	}

	r.TopSources = append([]pipeline.SourceCount{}, m.Sources...)
	if len(r.TopSources) > TopSourceLimit {
		r.TopSources = r.TopSources[:TopSourceLimit]
	}

	for _, s := range m.SourceStats {
		r.StatusGroups[s.Status] = append(r.StatusGroups[s.Status], s.Name)
		switch s.Status {
		case source.StatusFailed:
			r.Failing = append(r.Failing, Failure{Name: s.Name, Error: s.Error})
		case source.StatusEmpty:
			r.Inactive = append(r.Inactive, s.Name)
		}
	}

	sort.Slice(r.Failing, func(i, j int) bool { return r.Failing[i].Name < r.Failing[j].Name })
	sort.Strings(r.Inactive)
	for status := range r.StatusGroups {
		sort.Strings(r.StatusGroups[status])
	}
	return r
}

// Healthy reports whether no source failed.
func (r Report) Healthy() bool {
	return len(r.Failing) == 0
}

// WriteJSON writes r as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteText writes r as a human-readable summary.
func (r Report) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s\n", r.RunID)
	fmt.Fprintf(&b, "Updated: %s\n", r.LastUpdated.Format(time.RFC3339))
	fmt.Fprintf(&b, "Events: %d from %d sources\n", r.TotalEvents, r.SourceCount)
	p := r.Pipeline
	fmt.Fprintf(&b, "Pipeline: raw=%d rejected=%d invalid=%d deduped=%d merged=%d stale=%d output=%d\n",
		p.Raw, p.Rejected, p.Invalid, p.DedupeMerged, p.Merged, p.Stale, p.Output)

	if len(r.TopSources) > 0 {
		b.WriteString("\nTop sources:\n")
		for _, s := range r.TopSources {
			fmt.Fprintf(&b, "  %-30s %d\n", s.Source, s.Events)
		}
	}

	if len(r.StatusGroups) > 0 {
		b.WriteString("\nStatus:\n")
		statuses := make([]string, 0, len(r.StatusGroups))
		for status := range r.StatusGroups {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Fprintf(&b, "  %s (%d): %s\n", status, len(r.StatusGroups[status]), strings.Join(r.StatusGroups[status], ", "))
		}
	}

	if len(r.Failing) > 0 {
		b.WriteString("\nFailing:\n")
		for _, f := range r.Failing {
			fmt.Fprintf(&b, "  %s: %s\n", f.Name, f.Error)
		}
	}

	if len(r.Inactive) > 0 {
		fmt.Fprintf(&b, "\nInactive: %s\n", strings.Join(r.Inactive, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}
