package source

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
)

// Source produces raw event records.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]event.Raw, error)
}

// Getter fetches a URL body. *httpclient.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Status values for SourceStat.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// SourceStat records the outcome of fetching one source.
type SourceStat struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Events   int           `json:"events"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Collection is the combined output of all sources.
type Collection struct {
	Records []event.Raw
	Stats   []SourceStat
}

// Failures returns the stats of sources that failed.
func (c Collection) Failures() []SourceStat {
	var out []SourceStat
	for _, s := range c.Stats {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// Collect fetches every source with at most concurrency fetches in flight.
// A failing, panicking or timed-out source contributes no records and never
// stops the others. Records are concatenated in the order of sources.
func Collect(ctx context.Context, sources []Source, concurrency int) Collection {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([][]event.Raw, len(sources))
	stats := make([]SourceStat, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			records, stat := fetchOne(gctx, src)
			results[i] = records
			stats[i] = stat
			return nil
		})
	}
	g.Wait() // nolint:errcheck

	var col Collection
	col.Stats = stats
	for _, records := range results {
		col.Records = append(col.Records, records...)
	}

	logger.Info("collected raw events", logger.Fields{
		"sources":  len(sources),
		"records":  len(col.Records),
		"failures": len(col.Failures()),
	})
	return col
}

func fetchOne(ctx context.Context, src Source) (records []event.Raw, stat SourceStat) {
	start := time.Now()
	stat.Name = src.Name()

	defer func() {
		if r := recover(); r != nil {
			records = nil
			stat.Status = StatusFailed
			stat.Error = fmt.Sprintf("panic: %v", r)
			stat.Events = 0
			logger.Error("source panicked", logger.Fields{
				"source": stat.Name,
				"stack":  string(debug.Stack()),
			}, fmt.Errorf("%v", r))
		}
		stat.Duration = time.Since(start)
	}()

	records, err := src.Fetch(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Warn("source failed", logger.Fields{
			"source": stat.Name,
			"error":  err.Error(),
		})
		stat.Status = StatusFailed
		stat.Error = err.Error()
		return nil, stat
	}

	stat.Events = len(records)
	if len(records) == 0 {
		stat.Status = StatusEmpty
	} else {
		stat.Status = StatusOK
	}
	logger.Info("source fetched", logger.Fields{
		"source": stat.Name,
		"events": stat.Events,
	})
	return records, stat
}
