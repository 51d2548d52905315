package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/metrics"
	"github.com/spontis-app/spontis/internal/pipeline"
	"github.com/spontis-app/spontis/internal/report"
	"github.com/spontis-app/spontis/internal/storage"
)

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type list struct {
	Items []*event.Event `json:"items"`
	Count int            `json:"count"`
}

func newTestServer(t *testing.T) (*Server, *storage.Storage, *time.Location) {
	t.Helper()
	zone, err := event.LoadZone("")
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	at := func(d, h int) *time.Time {
		v := time.Date(2025, 3, d, h, 0, 0, 0, zone)
		return &v
	}
	feed := []*event.Event{
		{Source: "usf", Title: "Jazz Night", URL: "https://a/1", City: "Bergen", Venue: "USF Verftet",
			StartsAt: at(14, 20), Tags: []string{"jazz", "music"}, Sources: []string{"usf"}},
		{Source: "grieghallen", Title: "Symphony", URL: "https://a/2", City: "Bergen",
			StartsAt: at(15, 19), Tags: []string{"classical"}, Sources: []string{"grieghallen"}},
		{Source: "usf", Title: "Workshop", URL: "https://a/3", City: "Bergen", When: "Soon", Sources: []string{"usf"}},
	}
	if err := store.SaveFeed(feed); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 3, 14, 17, 0, 0, 0, zone)
	s := New(store, metrics.New(), Options{
		Zone:           zone,
		RetentionHours: pipeline.DefaultRetentionHours,
		Now:            func() time.Time { return now },
	})
	return s, store, zone
}

func get(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decoding %s: %v\n%s", target, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeList(t *testing.T, env envelope) list {
	t.Helper()
	var l list
	if err := json.Unmarshal(env.Data, &l); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	return l
}

func TestHealth(t *testing.T) {
	s, store, _ := newTestServer(t)
	meta := report.NewMeta(time.Now(), nil, nil, pipeline.Stats{})
	if err := store.SaveMeta(meta); err != nil {
		t.Fatal(err)
	}

	rec, env := get(t, s, "/api/health")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("status = %d %q", rec.Code, env.Status)
	}
	if !strings.Contains(string(env.Data), meta.RunID) {
		t.Errorf("health should report run id: %s", env.Data)
	}
}

func TestEvents(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantCount int
	}{
		{name: "all", target: "/api/events", wantCode: http.StatusOK, wantCount: 3},
		{name: "by tag", target: "/api/events?tag=jazz", wantCode: http.StatusOK, wantCount: 1},
		{name: "weekends", target: "/api/events?weekends=true", wantCode: http.StatusOK, wantCount: 1},
		{name: "by source", target: "/api/events?source=usf", wantCode: http.StatusOK, wantCount: 2},
		{name: "text", target: "/api/events?q=symph", wantCode: http.StatusOK, wantCount: 1},
		{name: "bad range", target: "/api/events?range=someday", wantCode: http.StatusBadRequest},
		{name: "bad now", target: "/api/events?now=yesterday", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := get(t, s, tt.target)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if env.Status != "fail" || env.Message == "" {
					t.Errorf("expected fail envelope, got %+v", env)
				}
				return
			}
			if got := decodeList(t, env).Count; got != tt.wantCount {
				t.Errorf("count = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestTodayAndTonight(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "today from clock", target: "/api/today", want: "Jazz Night"},
		{name: "tonight from clock", target: "/api/tonight", want: "Jazz Night"},
		{name: "tonight with now", target: "/api/tonight?now=2025-03-15T12:00:00", want: "Symphony"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := get(t, s, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
			}
			l := decodeList(t, env)
			if l.Count != 1 || l.Items[0].Title != tt.want {
				t.Errorf("items = %+v, want only %q", l.Items, tt.want)
			}
		})
	}
}

func TestHeatmap(t *testing.T) {
	s, _, _ := newTestServer(t)

	_, env := get(t, s, "/api/heatmap")
	var heat map[string]int
	if err := json.Unmarshal(env.Data, &heat); err != nil {
		t.Fatal(err)
	}
	if heat["Fri"] != 1 || heat["Sat"] != 1 || heat["Mon"] != 0 {
		t.Errorf("heatmap = %v", heat)
	}

	_, env = get(t, s, "/api/heatmap?now=2025-03-15T12:00:00")
	heat = nil
	if err := json.Unmarshal(env.Data, &heat); err != nil {
		t.Fatal(err)
	}
	if heat["Fri"] != 0 || heat["Sat"] != 1 {
		t.Errorf("heatmap with now = %v, want Friday aged out", heat)
	}
}

func TestHeatmap_RetentionDisabled(t *testing.T) {
	_, store, zone := newTestServer(t)
	s := New(store, nil, Options{Zone: zone, RetentionHours: 0})

	_, env := get(t, s, "/api/heatmap?now=2025-03-20T12:00:00")
	var heat map[string]int
	if err := json.Unmarshal(env.Data, &heat); err != nil {
		t.Fatal(err)
	}
	if heat["Fri"] != 1 || heat["Sat"] != 1 {
		t.Errorf("heatmap = %v, want past events kept when retention is 0", heat)
	}
}

func TestCalendar(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, _ := get(t, s, "/events.ics")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if got := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); got != 2 {
		t.Errorf("got %d VEVENTs, want 2", got)
	}
}

func TestNotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec, env := get(t, s, "/api/nope")
	if rec.Code != http.StatusNotFound || env.Status != "fail" {
		t.Errorf("code = %d, envelope = %+v", rec.Code, env)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	get(t, s, "/api/heatmap")

	rec, _ := get(t, s, "/metrics")
	if !strings.Contains(rec.Body.String(), `spontis_http_requests_total{route="/api/heatmap",status="200"} 1`) {
		t.Errorf("metrics missing heatmap request:\n%s", rec.Body.String())
	}
}
