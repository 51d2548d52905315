// Package server exposes the generated feed over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spontis-app/spontis/internal/calendar"
	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/filter"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/metrics"
	"github.com/spontis-app/spontis/internal/pipeline"
	"github.com/spontis-app/spontis/internal/storage"
	"github.com/spontis-app/spontis/internal/views"
)

// Options configures the API server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Zone            *time.Location
	// RetentionHours applies to ?now= on the heatmap; <= 0 keeps every event.
	RetentionHours int
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Server serves feed data read from storage on every request.
type Server struct {
	store   *storage.Storage
	metrics *metrics.Metrics
	opts    Options
	echo    *echo.Echo
}

// New builds the router. m may be nil.
func New(store *storage.Storage, m *metrics.Metrics, opts Options) *Server {
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{store: store, metrics: m, opts: opts}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := logger.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			}
			if v.Error != nil {
				logger.Error("HTTP request failed", fields, v.Error)
				return nil
			}
			logger.Debug("HTTP request", fields)
			return nil
		},
	}))
	if s.metrics != nil {
		e.Use(s.observe)
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := e.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/events", s.handleEvents)
	api.GET("/today", s.handleToday)
	api.GET("/tonight", s.handleTonight)
	api.GET("/heatmap", s.handleHeatmap)
	e.GET("/events.ics", s.handleCalendar)

	return e
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.echo,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", nil, err)
		}
	}()

	logger.Info("API server started", logger.Fields{"addr": s.opts.Addr, "data_dir": s.store.Dir()})

	if err := s.echo.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("API server stopped", nil)
	return nil
}

func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, status, time.Since(start))
		return err
	}
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if v, ok := he.Message.(string); ok && strings.TrimSpace(v) != "" {
			message = v
		} else if text := http.StatusText(status); text != "" {
			message = text
		}
	}

	if status >= 500 {
		logger.Error("Request failed", logger.Fields{"path": c.Request().URL.Path}, err)
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message)
}

// now resolves the request's reference time from ?now=, falling back to
// the server clock.
func (s *Server) now(c echo.Context) (time.Time, error) {
	if v := strings.TrimSpace(c.QueryParam("now")); v != "" {
		return event.ParseNow(v, s.opts.Zone)
	}
	return event.Normalize(s.opts.Now(), s.opts.Zone), nil
}

func (s *Server) loadFeed(c echo.Context) ([]*event.Event, bool) {
	events, err := s.store.LoadFeed()
	if err != nil {
		logger.Error("Loading feed failed", nil, err)
		_ = internalError(c, "Failed to load events")
		return nil, false
	}
	return events, true
}

type eventList struct {
	Items  []*event.Event `json:"items"`
	Count  int            `json:"count"`
	Filter string         `json:"filter,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	data := map[string]any{
		"service": "spontis",
		"time":    time.Now().UTC(),
	}
	if meta, err := s.store.LoadMeta(); err == nil {
		data["run_id"] = meta.RunID
		data["last_updated"] = meta.LastUpdated
		data["total_events"] = meta.TotalEvents
		data["source_failures"] = meta.SourceFailures
	}
	return success(c, data)
}

func (s *Server) handleEvents(c echo.Context) error {
	now, err := s.now(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	f, err := filter.FromQuery(c.QueryParams(), now, s.opts.Zone)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	events, ok := s.loadFeed(c)
	if !ok {
		return nil
	}
	items := f.Apply(events)
	list := eventList{Items: items, Count: len(items)}
	if !f.IsEmpty() {
		list.Filter = f.String()
	}
	return success(c, list)
}

func (s *Server) handleToday(c echo.Context) error {
	return s.window(c, views.Today)
}

func (s *Server) handleTonight(c echo.Context) error {
	return s.window(c, views.Tonight)
}

func (s *Server) window(c echo.Context, build func([]*event.Event, time.Time) []*event.Event) error {
	now, err := s.now(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error())
	}
	events, ok := s.loadFeed(c)
	if !ok {
		return nil
	}
	items := build(events, now)
	return success(c, eventList{Items: items, Count: len(items)})
}

// handleHeatmap counts the stored feed per weekday. With ?now= the feed is
// first aged against that instant, as a run at that time would have done.
func (s *Server) handleHeatmap(c echo.Context) error {
	events, ok := s.loadFeed(c)
	if !ok {
		return nil
	}
	if v := strings.TrimSpace(c.QueryParam("now")); v != "" {
		now, err := event.ParseNow(v, s.opts.Zone)
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}
		events, _ = pipeline.FilterStale(events, now, s.opts.RetentionHours)
	}
	return success(c, views.BuildHeatmap(events))
}

func (s *Server) handleCalendar(c echo.Context) error {
	events, ok := s.loadFeed(c)
	if !ok {
		return nil
	}
	ics := calendar.GenerateICS(events, s.opts.Zone)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}
