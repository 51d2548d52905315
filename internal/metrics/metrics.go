// Package metrics exposes pipeline and API metrics in Prometheus format.
//
// A batch run writes a node_exporter textfile; the API server exposes the same
// registry at /metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spontis-app/spontis/internal/pipeline"
	"github.com/spontis-app/spontis/internal/source"
	"github.com/spontis-app/spontis/internal/views"
)

const namespace = "spontis"

// Metrics owns a private registry so tests and commands never share state.
type Metrics struct {
	registry *prometheus.Registry

	sourceEvents   *prometheus.GaugeVec
	sourceUp       *prometheus.GaugeVec
	sourceFailures *prometheus.CounterVec
	fetchDuration  *prometheus.SummaryVec
	stage          *prometheus.GaugeVec
	viewSize       *prometheus.GaugeVec
	lastRun        prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourceEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_raw_events",
			Help:      "Raw records returned by a source in the last run.",
		}, []string{"source"}),
		sourceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_up",
			Help:      "Whether the last fetch of a source succeeded (1) or failed (0).",
		}, []string{"source"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Source fetches that failed.",
		}, []string{"source"}),
		fetchDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Time spent fetching a source.",
		}, []string{"source"}),
		stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_events",
			Help:      "Event counts per pipeline stage in the last run.",
		}, []string{"stage"}),
		viewSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_events",
			Help:      "Events in each derived view.",
		}, []string{"view"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.sourceEvents,
		m.sourceUp,
		m.sourceFailures,
		m.fetchDuration,
		m.stage,
		m.viewSize,
		m.lastRun,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCollection records per-source outcomes.
func (m *Metrics) ObserveCollection(stats []source.SourceStat) {
	for _, s := range stats {
		m.sourceEvents.WithLabelValues(s.Name).Set(float64(s.Events))
		m.fetchDuration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
		if s.Status == source.StatusFailed {
			m.sourceUp.WithLabelValues(s.Name).Set(0)
			m.sourceFailures.WithLabelValues(s.Name).Inc()
			continue
		}
		m.sourceUp.WithLabelValues(s.Name).Set(1)
	}
}

// ObservePipeline records stage counts.
func (m *Metrics) ObservePipeline(stats pipeline.Stats) {
	m.stage.WithLabelValues("raw").Set(float64(stats.Raw))
	m.stage.WithLabelValues("rejected").Set(float64(stats.Rejected))
	m.stage.WithLabelValues("invalid").Set(float64(stats.Invalid))
	m.stage.WithLabelValues("dedupe_merged").Set(float64(stats.DedupeMerged))
	m.stage.WithLabelValues("skipped_key").Set(float64(stats.SkippedKey))
	m.stage.WithLabelValues("cross_source_merged").Set(float64(stats.Merged))
	m.stage.WithLabelValues("stale_dropped").Set(float64(stats.Stale))
	m.stage.WithLabelValues("output").Set(float64(stats.Output))
}

// ObserveViews records view sizes.
func (m *Metrics) ObserveViews(set views.Set) {
	m.viewSize.WithLabelValues("today").Set(float64(len(set.Today)))
	m.viewSize.WithLabelValues("tonight").Set(float64(len(set.Tonight)))
}

// MarkRun stamps the completion time of a run.
func (m *Metrics) MarkRun(at time.Time) {
	m.lastRun.Set(float64(at.Unix()))
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// WriteFile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
