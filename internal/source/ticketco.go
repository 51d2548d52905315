package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
)

// TicketCoAPI is the public events endpoint, formatted with an organizer slug.
const TicketCoAPI = "https://ticketco.events/api/public/events/?organizer_slug=%s&timespan=future"

// TicketCo fetches upcoming events for one or more TicketCo organizers.
type TicketCo struct {
	name   string
	cfg    TicketCoConfig
	client Getter
	zone   *time.Location

	// apiURL and baseURL are overridable in tests.
	apiURL  func(slug string) string
	baseURL func(slug string) string
}

// NewTicketCo creates a TicketCo source.
func NewTicketCo(name string, cfg TicketCoConfig, client Getter, zone *time.Location) *TicketCo {
	if zone == nil {
		zone = time.UTC
	}
	return &TicketCo{
		name:   name,
		cfg:    cfg,
		client: client,
		zone:   zone,
		apiURL: func(slug string) string {
			return fmt.Sprintf(TicketCoAPI, url.QueryEscape(slug))
		},
		baseURL: func(slug string) string {
			return fmt.Sprintf("https://%s.ticketco.events/", slug)
		},
	}
}

func (t *TicketCo) Name() string { return t.name }

// Fetch queries every slug. A failing slug is logged and skipped; the source
// only fails when every slug failed.
func (t *TicketCo) Fetch(ctx context.Context) ([]event.Raw, error) {
	if t.client == nil {
		return nil, fmt.Errorf("%s: no http client", t.name)
	}

	var (
		records   []event.Raw
		seen      = make(map[string]bool)
		attempts  int
		succeeded int
		lastErr   error
	)

	for _, slug := range t.cfg.Slugs {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		attempts++

		body, err := t.client.Get(ctx, t.apiURL(slug), map[string]string{"Accept": "application/json"})
		if err != nil {
			logger.Warn("ticketco fetch failed", logger.Fields{"source": t.name, "slug": slug, "error": err.Error()})
			lastErr = err
			continue
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			logger.Warn("ticketco payload not json", logger.Fields{"source": t.name, "slug": slug, "error": err.Error()})
			lastErr = fmt.Errorf("decoding %s: %w", slug, err)
			continue
		}
		succeeded++

		items := extractEvents(payload)
		if len(items) == 0 {
			logger.Info("ticketco returned no events", logger.Fields{"source": t.name, "slug": slug})
			continue
		}

		base := t.baseURL(slug)
		for _, item := range items {
			rec, ok := t.record(item, base)
			if !ok {
				continue
			}
			if u, _ := rec["url"].(string); u != "" {
				if seen[u] {
					continue
				}
				seen[u] = true
			}
			records = append(records, rec)
		}
	}

	if attempts > 0 && succeeded == 0 {
		return nil, lastErr
	}
	return records, nil
}

func (t *TicketCo) record(item map[string]any, base string) (event.Raw, bool) {
	title := firstString(item, "name", "title")
	if title == "" {
		return nil, false
	}

	rec := event.Raw{
		"source": t.name,
		"title":  title,
		"url":    resolveTicketCoURL(item, base),
	}

	if ts, ok := t.timestamp(item, "start_at", "start_time", "start"); ok {
		rec["starts_at"] = ts
	}
	if ts, ok := t.timestamp(item, "end_at", "end_time", "end"); ok {
		rec["ends_at"] = ts
	}

	venue := venueName(item)
	if venue == "" {
		venue = t.cfg.DefaultVenue
	}
	if venue != "" {
		rec["venue"] = venue
		rec["where"] = venue
	}

	if d := firstString(item, "description", "summary"); d != "" {
		rec["description"] = d
	}
	if img := imageURL(item["image"]); img != "" {
		rec["image"] = img
	}
	if p, ok := scalarString(item["min_price"]); ok && p != "" && p != "0" {
		rec["price"] = fmt.Sprintf("Fra %s kr", p)
	}

	if tags := collectTags(item, t.cfg.DefaultTags); len(tags) > 0 {
		list := make([]any, len(tags))
		for i, tag := range tags {
			list[i] = tag
		}
		rec["tags"] = list
	}
	return rec, true
}

func (t *TicketCo) timestamp(item map[string]any, keys ...string) (time.Time, bool) {
	v := firstString(item, keys...)
	if v == "" {
		return time.Time{}, false
	}
	return event.ParseTimestamp(v, t.zone)
}

// extractEvents finds the event list in a payload: a bare list, or a list
// under events/data/results/items, possibly nested one level.
func extractEvents(payload any) []map[string]any {
	switch p := payload.(type) {
	case []any:
		return mappings(p)
	case map[string]any:
		for _, key := range []string{"events", "data", "results", "items"} {
			switch v := p[key].(type) {
			case []any:
				if len(v) > 0 {
					return mappings(v)
				}
			case map[string]any:
				for _, nested := range []string{"events", "items"} {
					if list, ok := v[nested].([]any); ok && len(list) > 0 {
						return mappings(list)
					}
				}
			}
		}
	}
	return nil
}

func mappings(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func resolveTicketCoURL(item map[string]any, base string) string {
	if urls, ok := item["urls"].(map[string]any); ok {
		if u := firstString(urls, "web", "url", "main"); u != "" {
			return u
		}
	}
	if direct := firstString(item, "url", "link"); direct != "" {
		return joinURL(base, direct)
	}
	if s, ok := item["urls"].(string); ok && strings.TrimSpace(s) != "" {
		return joinURL(base, strings.TrimSpace(s))
	}
	return ""
}

func joinURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func venueName(item map[string]any) string {
	for _, key := range []string{"venue", "venue_name", "location"} {
		switch v := item[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := firstString(v, "name", "title"); s != "" {
				return s
			}
		}
	}
	return ""
}

func imageURL(v any) string {
	switch img := v.(type) {
	case string:
		return strings.TrimSpace(img)
	case map[string]any:
		return firstString(img, "url", "main")
	}
	return ""
}

func collectTags(item map[string]any, defaults []string) []string {
	tags := append([]string(nil), defaults...)
	add := func(name string) {
		token := strings.ToLower(strings.TrimSpace(name))
		if token == "" {
			return
		}
		for _, existing := range tags {
			if existing == token {
				return
			}
		}
		tags = append(tags, token)
	}

	var entries []any
	switch c := firstPresent(item, "category_list", "categories").(type) {
	case []any:
		entries = c
	case map[string]any:
		for _, v := range c {
			entries = append(entries, v)
		}
	}
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok {
			add(firstString(m, "name"))
			continue
		}
		if s, ok := scalarString(entry); ok {
			add(s)
		}
	}
	return tags
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalarString(m[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}
