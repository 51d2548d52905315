package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/spontis-app/spontis/internal/event"
)

// DefaultTimeAttribute is read from the time element when no attribute is
// configured.
const DefaultTimeAttribute = "datetime"

// HTML scrapes a listing page using CSS selectors.
type HTML struct {
	name   string
	cfg    HTMLConfig
	client Getter
	zone   *time.Location
}

// NewHTML creates an HTML listing source.
func NewHTML(name string, cfg HTMLConfig, client Getter, zone *time.Location) *HTML {
	if zone == nil {
		zone = time.UTC
	}
	if cfg.TimeAttribute == "" {
		cfg.TimeAttribute = DefaultTimeAttribute
	}
	return &HTML{name: name, cfg: cfg, client: client, zone: zone}
}

func (h *HTML) Name() string { return h.name }

// Fetch downloads the listing page and parses it.
func (h *HTML) Fetch(ctx context.Context) ([]event.Raw, error) {
	if h.client == nil {
		return nil, fmt.Errorf("%s: no http client", h.name)
	}
	body, err := h.client.Get(ctx, h.cfg.URL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	return h.parseEvents(bytes.NewReader(body), h.cfg.URL)
}

// parseEvents extracts one record per item element
func (h *HTML) parseEvents(r io.Reader, pageURL string) ([]event.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}

	records := make([]event.Raw, 0)
	seen := make(map[string]bool)

	doc.Find(h.cfg.Item).Each(func(i int, item *goquery.Selection) {
		title := collapse(item.Find(h.cfg.Title).First().Text())
		if title == "" {
			return
		}

		link := h.link(item, base)
		if link == "" || seen[link+"|"+title] {
			return
		}
		seen[link+"|"+title] = true

		rec := event.Raw{
			"source": h.name,
			"title":  title,
			"url":    link,
		}

		if h.cfg.Time != "" {
			sel := item.Find(h.cfg.Time).First()
			value, ok := sel.Attr(h.cfg.TimeAttribute)
			if !ok {
				value = sel.Text()
			}
			if ts, ok := event.ParseTimestamp(value, h.zone); ok {
				rec["starts_at"] = ts
			} else if when := collapse(sel.Text()); when != "" {
				rec["when"] = when
			}
		}

		venue := ""
		if h.cfg.Venue != "" {
			venue = collapse(item.Find(h.cfg.Venue).First().Text())
		}
		if venue == "" {
			venue = h.cfg.DefaultVenue
		}
		if venue != "" {
			rec["venue"] = venue
		}

		if len(h.cfg.DefaultTags) > 0 {
			tags := make([]any, len(h.cfg.DefaultTags))
			for i, t := range h.cfg.DefaultTags {
				tags[i] = t
			}
			rec["tags"] = tags
		}

		records = append(records, rec)
	})

	return records, nil
}

// link resolves the item's href against the page. Without a link selector
// the first anchor in the item, or the item itself, is used.
func (h *HTML) link(item *goquery.Selection, base *url.URL) string {
	var sel *goquery.Selection
	switch {
	case h.cfg.Link != "":
		sel = item.Find(h.cfg.Link).First()
	case goquery.NodeName(item) == "a":
		sel = item
	default:
		sel = item.Find("a[href]").First()
	}

	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
