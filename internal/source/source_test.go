package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/httpclient"
)

type fakeSource struct {
	name    string
	records []event.Raw
	err     error
	panics  bool
	delay   time.Duration
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]event.Raw, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panics {
		panic("boom")
	}
	return f.records, f.err
}

type fakeGetter struct {
	bodies map[string]string
	errs   map[string]error
	calls  []string
}

func (g *fakeGetter) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	g.calls = append(g.calls, url)
	if err := g.errs[url]; err != nil {
		return nil, err
	}
	body, ok := g.bodies[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return []byte(body), nil
}

func testZone(t *testing.T) *time.Location {
	t.Helper()
	zone, err := event.LoadZone("")
	if err != nil {
		t.Fatal(err)
	}
	return zone
}

func TestCollect(t *testing.T) {
	sources := []Source{
		&fakeSource{name: "slow", delay: 20 * time.Millisecond, records: []event.Raw{{"title": "s1"}, {"title": "s2"}}},
		&fakeSource{name: "broken", err: errors.New("connection refused")},
		&fakeSource{name: "panicky", panics: true},
		&fakeSource{name: "empty"},
		&fakeSource{name: "fast", records: []event.Raw{{"title": "f1"}}},
	}

	col := Collect(context.Background(), sources, 3)

	var titles []string
	for _, r := range col.Records {
		titles = append(titles, r["title"].(string))
	}
	if got := strings.Join(titles, ","); got != "s1,s2,f1" {
		t.Errorf("records = %s, want s1,s2,f1 in source order", got)
	}

	wantStatus := []string{StatusOK, StatusFailed, StatusFailed, StatusEmpty, StatusOK}
	if len(col.Stats) != len(wantStatus) {
		t.Fatalf("stats = %d, want %d", len(col.Stats), len(wantStatus))
	}
	for i, want := range wantStatus {
		if col.Stats[i].Status != want {
			t.Errorf("stats[%d] (%s) status = %q, want %q", i, col.Stats[i].Name, col.Stats[i].Status, want)
		}
	}
	if !strings.Contains(col.Stats[2].Error, "panic") {
		t.Errorf("panic stat error = %q", col.Stats[2].Error)
	}
	if len(col.Failures()) != 2 {
		t.Errorf("Failures() = %d, want 2", len(col.Failures()))
	}
}

func TestCollect_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	col := Collect(ctx, []Source{
		&fakeSource{name: "hangs", delay: time.Second, records: []event.Raw{{"title": "late"}}},
		&fakeSource{name: "quick", records: []event.Raw{{"title": "ok"}}},
	}, 2)

	if len(col.Records) != 1 || col.Records[0]["title"] != "ok" {
		t.Errorf("records = %v, want only the quick source", col.Records)
	}
	if col.Stats[0].Status != StatusFailed {
		t.Errorf("timed out source status = %q, want failed", col.Stats[0].Status)
	}
}

func TestParseRegistry(t *testing.T) {
	data := []byte(`
sources:
  - name: Bergen Kino
    type: ticketco
    ticketco:
      slugs: [bergenkino]
      default_venue: Bergen Kino
  - name: Apollon
    type: HTML
    env_flag: ENABLE_APOLLON
    default_enabled: false
    html:
      url: https://apollon.example/program
      item: article.event
      title: h3
  - name: Export
    type: file
    file:
      path: export.json
`)
	cfgs, err := ParseRegistry(data)
	if err != nil {
		t.Fatalf("ParseRegistry() error = %v", err)
	}
	if len(cfgs) != 3 {
		t.Fatalf("ParseRegistry() = %d entries, want 3", len(cfgs))
	}
	if cfgs[1].Type != KindHTML {
		t.Errorf("type not normalized: %q", cfgs[1].Type)
	}
	if cfgs[0].IsDefaultEnabled() != true || cfgs[1].IsDefaultEnabled() != false {
		t.Error("default_enabled not decoded")
	}
}

func TestParseRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown type", "sources:\n  - name: X\n    type: rss\n"},
		{"missing name", "sources:\n  - type: file\n    file: {path: a.json}\n"},
		{"missing slugs", "sources:\n  - name: X\n    type: ticketco\n"},
		{"missing selectors", "sources:\n  - name: X\n    type: html\n    html: {url: http://x}\n"},
		{"duplicate", "sources:\n  - {name: X, type: file, file: {path: a}}\n  - {name: X, type: file, file: {path: b}}\n"},
		{"not yaml", "sources: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRegistry([]byte(tt.yaml)); err == nil {
				t.Error("ParseRegistry() expected error")
			}
		})
	}
}

func TestLoadRegistry_ResolvesFilePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - {name: X, type: file, file: {path: export.json}}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfgs, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if want := filepath.Join(dir, "export.json"); cfgs[0].File.Path != want {
		t.Errorf("file path = %q, want %q", cfgs[0].File.Path, want)
	}
}

func TestConfig_Enabled(t *testing.T) {
	on, off := true, false

	tests := []struct {
		name string
		cfg  Config
		env  map[string]string
		want bool
	}{
		{"no flag", Config{}, nil, true},
		{"default on, unset", Config{EnvFlag: "F", DefaultEnabled: &on}, nil, true},
		{"default on, zero", Config{EnvFlag: "F", DefaultEnabled: &on}, map[string]string{"F": "0"}, false},
		{"default on, other value", Config{EnvFlag: "F"}, map[string]string{"F": "false"}, true},
		{"default off, unset", Config{EnvFlag: "F", DefaultEnabled: &off}, nil, false},
		{"default off, one", Config{EnvFlag: "F", DefaultEnabled: &off}, map[string]string{"F": "1"}, true},
		{"default off, other value", Config{EnvFlag: "F", DefaultEnabled: &off}, map[string]string{"F": "true"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			}
			if got := tt.cfg.Enabled(lookup); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	off := false
	cfgs := []Config{
		{Name: "A", Type: KindFile, File: &FileConfig{Path: "a.json"}},
		{Name: "B", Type: KindFile, File: &FileConfig{Path: "b.json"}, EnvFlag: "ENABLE_B", DefaultEnabled: &off},
		{Name: "C", Type: KindTicketCo, TicketCo: &TicketCoConfig{Slugs: []string{"c"}}},
	}

	srcs, err := Build(cfgs, Deps{}, func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(srcs) != 2 || srcs[0].Name() != "A" || srcs[1].Name() != "C" {
		t.Errorf("Build() = %v, want A and C", srcs)
	}
}

func TestTicketCo_Fetch(t *testing.T) {
	zone := testZone(t)
	g := &fakeGetter{
		bodies: map[string]string{
			"api/kino": `{"events": [
				{"name": " Mission Impossible ", "urls": {"web": "https://kino.example/mi"},
				 "start_at": "2025-06-01T18:00:00Z", "end_at": "2025-06-01T20:30:00Z",
				 "venue": {"name": "Magnus Barfot"}, "min_price": 150,
				 "image": {"url": "https://img.example/mi.jpg"},
				 "category_list": [{"name": "Film"}, {"name": " Action "}]},
				{"title": "Relative", "url": "/e/relative", "start": "2025-06-02T19:00"},
				{"name": "Dupe", "urls": {"web": "https://kino.example/mi"}},
				{"name": ""},
				"not an object"
			]}`,
			"api/nested": `{"data": {"items": [{"name": "Nested", "link": "e/n"}]}}`,
		},
		errs: map[string]error{"api/down": errors.New("503")},
	}

	src := NewTicketCo("Bergen Kino", TicketCoConfig{
		Slugs:        []string{"kino", "down", "nested", " "},
		DefaultVenue: "Bergen Kino",
		DefaultTags:  []string{"film"},
	}, g, zone)
	src.apiURL = func(slug string) string { return "api/" + slug }
	src.baseURL = func(slug string) string { return "https://" + slug + ".ticketco.events/" }

	records, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Fetch() = %d records, want 3: %v", len(records), records)
	}

	mi := records[0]
	if mi["title"] != "Mission Impossible" || mi["url"] != "https://kino.example/mi" {
		t.Errorf("first record = %v", mi)
	}
	start, ok := mi["starts_at"].(time.Time)
	if !ok || start.Format(time.RFC3339) != "2025-06-01T20:00:00+02:00" {
		t.Errorf("starts_at = %v, want native time 20:00 local", mi["starts_at"])
	}
	if mi["venue"] != "Magnus Barfot" || mi["where"] != "Magnus Barfot" {
		t.Errorf("venue = %v / where = %v", mi["venue"], mi["where"])
	}
	if mi["price"] != "Fra 150 kr" {
		t.Errorf("price = %v, want Fra 150 kr", mi["price"])
	}
	if mi["image"] != "https://img.example/mi.jpg" {
		t.Errorf("image = %v", mi["image"])
	}
	tags, _ := mi["tags"].([]any)
	if len(tags) != 2 || tags[0] != "film" || tags[1] != "action" {
		t.Errorf("tags = %v, want [film action]", tags)
	}

	rel := records[1]
	if rel["url"] != "https://kino.ticketco.events/e/relative" {
		t.Errorf("relative url = %v", rel["url"])
	}
	if rel["venue"] != "Bergen Kino" {
		t.Errorf("default venue = %v", rel["venue"])
	}

	if records[2]["url"] != "https://nested.ticketco.events/e/n" {
		t.Errorf("nested url = %v", records[2]["url"])
	}
}

func TestTicketCo_AllSlugsFail(t *testing.T) {
	g := &fakeGetter{errs: map[string]error{"api/a": errors.New("down")}}
	src := NewTicketCo("X", TicketCoConfig{Slugs: []string{"a"}}, g, nil)
	src.apiURL = func(slug string) string { return "api/" + slug }

	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("Fetch() expected error when every slug fails")
	}
}

func TestExtractEvents(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    int
	}{
		{"list", []any{map[string]any{"a": 1}, 2}, 1},
		{"results key", map[string]any{"results": []any{map[string]any{}}}, 1},
		{"empty first key falls through", map[string]any{"events": []any{}, "items": []any{map[string]any{}, map[string]any{}}}, 2},
		{"nested events", map[string]any{"data": map[string]any{"events": []any{map[string]any{}}}}, 1},
		{"nothing", map[string]any{"meta": 1}, 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractEvents(tt.payload); len(got) != tt.want {
				t.Errorf("extractEvents() = %d items, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHTML_ParseEvents(t *testing.T) {
	f, err := os.Open("testdata/listing.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	defer f.Close() // nolint:errcheck

	h := NewHTML("Kvarteret", HTMLConfig{
		URL:         "https://venue.example/program",
		Item:        "article.event",
		Title:       ".event-title",
		Link:        "a.more",
		Time:        "time",
		Venue:       ".venue",
		DefaultTags: []string{"live"},
	}, nil, testZone(t))

	records, err := h.parseEvents(f, "https://venue.example/program")
	if err != nil {
		t.Fatalf("parseEvents failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(records), records)
	}

	jazz := records[0]
	if jazz["title"] != "Jazz Night" {
		t.Errorf("title = %q, want collapsed whitespace", jazz["title"])
	}
	if jazz["url"] != "https://venue.example/program/jazz-night" {
		t.Errorf("url = %v, want resolved against page", jazz["url"])
	}
	if ts, ok := jazz["starts_at"].(time.Time); !ok || ts.Format(time.RFC3339) != "2025-06-01T20:00:00+02:00" {
		t.Errorf("starts_at = %v", jazz["starts_at"])
	}
	if jazz["venue"] != "Victoria" {
		t.Errorf("venue = %v, want Victoria", jazz["venue"])
	}
	if jazz["source"] != "Kvarteret" {
		t.Errorf("source = %v", jazz["source"])
	}

	quiz := records[1]
	if quiz["when"] != "Hver torsdag" {
		t.Errorf("when = %v, want free-text fallback", quiz["when"])
	}
	if _, ok := quiz["starts_at"]; ok {
		t.Error("quiz should have no starts_at")
	}
}

func TestHTML_Fetch(t *testing.T) {
	tests := []struct {
		name        string
		htmlContent string
		statusCode  int
		wantError   bool
		wantEvents  int
	}{
		{
			name: "successful fetch with events",
			htmlContent: `<html><body>
				<ul><li><a href="/e/1">First</a></li><li><a href="/e/2">Second</a></li></ul>
			</body></html>`,
			statusCode: http.StatusOK,
			wantEvents: 2,
		},
		{
			name:       "HTTP error",
			statusCode: http.StatusNotFound,
			wantError:  true,
		},
		{
			name:        "empty page",
			htmlContent: `<html><body></body></html>`,
			statusCode:  http.StatusOK,
			wantEvents:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.htmlContent)) // nolint:errcheck
			}))
			defer srv.Close()

			client := httpclient.New(httpclient.Options{Retries: 0, Timeout: 5 * time.Second})
			h := NewHTML("Test", HTMLConfig{URL: srv.URL + "/program", Item: "li", Title: "a"}, client, nil)

			records, err := h.Fetch(context.Background())
			if (err != nil) != tt.wantError {
				t.Fatalf("Fetch() error = %v, wantError %v", err, tt.wantError)
			}
			if len(records) != tt.wantEvents {
				t.Errorf("Fetch() = %d records, want %d", len(records), tt.wantEvents)
			}
			if tt.wantEvents > 0 && records[0]["url"] != srv.URL+"/e/1" {
				t.Errorf("url = %v, want %s/e/1", records[0]["url"], srv.URL)
			}
		})
	}
}

func TestFile_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	content := `[{"title": "A", "url": "http://a"}, {"source": "Other", "title": "B", "url": "http://b"}, null]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	records, err := NewFile("Export", path).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Fetch() = %d records, want 2", len(records))
	}
	if records[0]["source"] != "Export" || records[1]["source"] != "Other" {
		t.Errorf("sources = %v, %v", records[0]["source"], records[1]["source"])
	}

	if _, err := NewFile("Missing", filepath.Join(dir, "nope.json")).Fetch(context.Background()); err == nil {
		t.Error("Fetch() on missing file expected error")
	}
}
