package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/metrics"
	"github.com/spontis-app/spontis/internal/report"
	"github.com/spontis-app/spontis/internal/schema"
	"github.com/spontis-app/spontis/internal/server"
	"github.com/spontis-app/spontis/internal/source"
	"github.com/spontis-app/spontis/internal/storage"
	"github.com/spontis-app/spontis/internal/views"
)

func newViewsCmd(a *app) *cobra.Command {
	var eventsPath, outDir, now string
	cmd := &cobra.Command{
		Use:   "views",
		Short: "Rebuild today, tonight and heatmap from an existing feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := event.ParseNow(now, a.zone)
			if err != nil {
				return &usageError{err: err}
			}
			if eventsPath == "" {
				store, err := a.storage()
				if err != nil {
					return err
				}
				eventsPath = store.Path(storage.FeedFile)
			}
			if outDir == "" {
				outDir = filepath.Dir(eventsPath)
			}

			events, err := storage.ReadFeed(eventsPath)
			if err != nil {
				return err
			}
			set := views.Build(events, at)
			if err := storage.WriteViews(outDir, set); err != nil {
				return fmt.Errorf("writing views: %w", err)
			}

			logger.Info("Views rebuilt", logger.Fields{
				"events":  len(events),
				"today":   len(set.Today),
				"tonight": len(set.Tonight),
				"out_dir": outDir,
			})
			fmt.Fprintf(a.stdout, "Wrote views for %d events to %s (today: %d, tonight: %d)\n",
				len(events), outDir, len(set.Today), len(set.Tonight))
			return nil
		},
	}
	cmd.Flags().StringVar(&eventsPath, "events", "", "Feed to read (default <data-dir>/events.json)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the view files (default: the feed's directory)")
	cmd.Flags().StringVar(&now, "now", "", "Reference time as ISO 8601 (naive values use the configured zone)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate [feed.json]",
		Short: "Check a feed against the event schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				store, err := a.storage()
				if err != nil {
					return err
				}
				path = store.Path(storage.FeedFile)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading feed: %w", err)
			}
			rep, err := schema.ValidateFeed(data)
			if err != nil {
				return err
			}
			if err := writeValidation(a.stdout, path, rep, f); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if !rep.OK() {
				return fmt.Errorf("%d of %d events failed validation", len(rep.Problems), rep.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newSourcesCmd(a *app) *cobra.Command {
	var path, format, sortBy string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List registry sources and whether they are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			order, err := parseSortOrder(sortBy)
			if err != nil {
				return err
			}
			if path == "" {
				path = a.cfg.SourcesFile
			}
			cfgs, err := source.LoadRegistry(path)
			if err != nil {
				return fmt.Errorf("loading source registry: %w", err)
			}

			rows := make([]sourceRow, 0, len(cfgs))
			for i := range cfgs {
				c := &cfgs[i]
				rows = append(rows, sourceRow{
					Name:    c.Name,
					Type:    c.Type,
					EnvFlag: c.EnvFlag,
					Enabled: c.Enabled(os.LookupEnv),
					Target:  target(c),
				})
			}
			sortSources(rows, order)
			return writeSources(a.stdout, rows, f)
		},
	}
	cmd.Flags().StringVar(&path, "sources", "", "Source registry file (default from SPONTIS_SOURCES_FILE)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&sortBy, "sort", string(SortByRegistry), "Sort order: registry, name, type or status")
	return cmd
}

// target describes where a source fetches from.
func target(c *source.Config) string {
	switch {
	case c.TicketCo != nil:
		return "ticketco:" + strings.Join(c.TicketCo.Slugs, ",")
	case c.HTML != nil:
		return c.HTML.URL
	case c.File != nil:
		return c.File.Path
	}
	return ""
}

func newReportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the last run from generated/meta.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(format)
			if err != nil {
				return err
			}
			store, err := a.storage()
			if err != nil {
				return err
			}
			meta, err := store.LoadMeta()
			if err != nil {
				return err
			}
			rep := report.Build(meta)
			if f == FormatJSON {
				return rep.WriteJSON(a.stdout)
			}
			return rep.WriteText(a.stdout)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed and views over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			store, err := a.storage()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(store, metrics.New(), server.Options{
				Addr:           addr,
				Zone:           a.zone,
				RetentionHours: a.cfg.RetentionHours,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from SPONTIS_SERVE_ADDR)")
	return cmd
}
