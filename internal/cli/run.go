package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spontis-app/spontis/internal/calendar"
	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/httpclient"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/metrics"
	"github.com/spontis-app/spontis/internal/pipeline"
	"github.com/spontis-app/spontis/internal/report"
	"github.com/spontis-app/spontis/internal/schema"
	"github.com/spontis-app/spontis/internal/source"
	"github.com/spontis-app/spontis/internal/storage"
	"github.com/spontis-app/spontis/internal/views"
)

// errAllSourcesFailed keeps the previous feed in place when nothing could
// be fetched.
var errAllSourcesFailed = errors.New("all sources failed")

type runOptions struct {
	sources        string
	out            string
	retentionHours int
	now            string
	collectTimeout time.Duration
	views          bool
	ics            bool
	metricsFile    string
	input          string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect sources, run the pipeline and write the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sources, "sources", "", "Source registry file (default from SPONTIS_SOURCES_FILE)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Feed output path (default <data-dir>/events.json)")
	cmd.Flags().IntVar(&opts.retentionHours, "retention-hours", 0, "Hours an event is kept after it ended (default from SCRAPER_RETENTION_HOURS)")
	cmd.Flags().StringVar(&opts.now, "now", "", "Reference time as ISO 8601 (naive values use the configured zone)")
	cmd.Flags().DurationVar(&opts.collectTimeout, "collect-timeout", 5*time.Minute, "Overall deadline for fetching sources")
	cmd.Flags().BoolVar(&opts.views, "views", true, "Write today, tonight and heatmap views next to the feed")
	cmd.Flags().BoolVar(&opts.ics, "ics", false, "Also write an events.ics calendar next to the feed")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path (default from SPONTIS_METRICS_FILE)")
	cmd.Flags().StringVar(&opts.input, "input", "", "Read raw records from a JSON file instead of the source registry")

	return cmd
}

func (a *app) run(ctx context.Context, cmd *cobra.Command, opts *runOptions) error {
	now, err := event.ParseNow(opts.now, a.zone)
	if err != nil {
		return &usageError{err: err}
	}

	retention := a.cfg.RetentionHours
	if cmd.Flags().Changed("retention-hours") {
		if opts.retentionHours < 0 {
			return usagef("--retention-hours must be >= 0")
		}
		retention = opts.retentionHours
	}

	store, err := a.storage()
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = store.Path(storage.FeedFile)
	}
	outDir := filepath.Dir(out)

	records, stats, err := a.collect(ctx, opts)
	if err != nil {
		return err
	}

	res := pipeline.Run(records, pipeline.Options{
		Zone:           a.zone,
		DefaultCity:    a.cfg.DefaultCity,
		RetentionHours: retention,
		Now:            now,
		Validate:       schema.ValidateEvent,
	})

	for _, sc := range pipeline.Summarize(res.Events) {
		logger.Info("Source contribution", logger.Fields{"source": sc.Source, "events": sc.Events})
	}

	if err := storage.WriteFeed(out, res.Events); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}

	set := views.Build(res.Events, now)
	if opts.views {
		if err := storage.WriteViews(outDir, set); err != nil {
			return fmt.Errorf("writing views: %w", err)
		}
	}

	if opts.ics {
		ics := calendar.GenerateICS(res.Events, a.zone)
		if err := storage.WriteFileAtomic(filepath.Join(outDir, storage.CalendarFile), []byte(ics)); err != nil {
			return fmt.Errorf("writing calendar: %w", err)
		}
	}

	meta := report.NewMeta(now, res.Events, stats, res.Stats)
	if err := store.SaveMeta(meta); err != nil {
		return fmt.Errorf("writing run metadata: %w", err)
	}

	metricsFile := opts.metricsFile
	if metricsFile == "" {
		metricsFile = a.cfg.MetricsFile
	}
	if metricsFile != "" {
		m := metrics.New()
		m.ObserveCollection(stats)
		m.ObservePipeline(res.Stats)
		m.ObserveViews(set)
		m.MarkRun(now)
		if err := m.WriteFile(metricsFile); err != nil {
			return err
		}
	}

	logger.Info("Run complete", logger.Fields{
		"run_id":  meta.RunID,
		"events":  len(res.Events),
		"today":   len(set.Today),
		"tonight": len(set.Tonight),
		"out":     out,
	})

	return writeRunSummary(a.stdout, meta, out)
}

// collect returns raw records and per-source stats, either from --input or
// from every enabled registry source.
func (a *app) collect(ctx context.Context, opts *runOptions) ([]event.Raw, []source.SourceStat, error) {
	if opts.input != "" {
		records, err := source.ReadRawFile(opts.input)
		if err != nil {
			return nil, nil, fmt.Errorf("reading input: %w", err)
		}
		logger.Info("Loaded raw records", logger.Fields{"path": opts.input, "records": len(records)})
		return records, nil, nil
	}

	path := opts.sources
	if path == "" {
		path = a.cfg.SourcesFile
	}
	cfgs, err := source.LoadRegistry(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading source registry: %w", err)
	}

	client := httpclient.New(httpclient.Options{
		Timeout:   a.cfg.HTTPTimeout,
		Retries:   a.cfg.HTTPRetries,
		Backoff:   a.cfg.HTTPBackoff,
		UserAgent: a.cfg.HTTPUserAgent,
		Language:  a.cfg.HTTPLanguage,
	})
	sources, err := source.Build(cfgs, source.Deps{Client: client, Zone: a.zone}, os.LookupEnv)
	if err != nil {
		return nil, nil, fmt.Errorf("building sources: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.collectTimeout)
	defer cancel()

	coll := source.Collect(ctx, sources, a.cfg.FetchConcurrency)
	if len(sources) > 0 && len(coll.Failures()) == len(sources) {
		return nil, coll.Stats, errAllSourcesFailed
	}
	return coll.Records, coll.Stats, nil
}
