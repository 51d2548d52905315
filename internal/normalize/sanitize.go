package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
)

// Rejection describes a raw record that could not become an Event.
type Rejection struct {
	Index  int    `json:"index"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

func (r *Rejection) Error() string {
	if r.Title != "" {
		return fmt.Sprintf("record %d (%q): %s", r.Index, r.Title, r.Reason)
	}
	return fmt.Sprintf("record %d: %s", r.Index, r.Reason)
}

// Sanitizer turns raw source records into canonical events.
type Sanitizer struct {
	Zone        *time.Location
	DefaultCity string
}

// New creates a Sanitizer for the given zone and default city.
func New(zone *time.Location, defaultCity string) *Sanitizer {
	return &Sanitizer{Zone: zone, DefaultCity: defaultCity}
}

func (s *Sanitizer) zone() *time.Location {
	if s.Zone == nil {
		return time.UTC
	}
	return s.Zone
}

func (s *Sanitizer) defaultCity() string {
	if c := strings.TrimSpace(s.DefaultCity); c != "" {
		return c
	}
	return event.DefaultCity
}

// Sanitize validates and coerces a single raw record. index is 1-based and
// only used for diagnostics. The returned error is always a *Rejection.
func (s *Sanitizer) Sanitize(raw event.Raw, index int) (*event.Event, error) {
	source, _ := coerceString(raw["source"])
	title, _ := coerceString(raw["title"])
	link, _ := coerceString(raw["url"])

	switch {
	case source == "":
		return nil, &Rejection{Index: index, Title: title, Reason: "missing source"}
	case title == "":
		return nil, &Rejection{Index: index, Reason: "missing title"}
	case link == "":
		return nil, &Rejection{Index: index, Title: title, Reason: "missing url"}
	}

	e := &event.Event{
		Source: source,
		Title:  title,
		URL:    link,
		City:   stringField(raw, "city"),
	}
	if e.City == "" {
		e.City = s.defaultCity()
	}

	e.Venue = stringField(raw, "venue")
	e.When = stringField(raw, "when")
	e.Where = stringField(raw, "where")
	e.Description = stringField(raw, "description")
	e.Summary = stringField(raw, "summary")
	e.Image = stringField(raw, "image")
	e.Price = stringField(raw, "price")
	e.Category = stringField(raw, "category")
	e.Series = stringField(raw, "series")
	e.Region = stringField(raw, "region")
	e.TicketURL = stringField(raw, "ticket_url")
	e.Timezone = stringField(raw, "timezone")
	e.URLOriginal = stringField(raw, "url_original")

	e.StartsAt = s.timestamp(raw["starts_at"])
	e.EndsAt = s.timestamp(raw["ends_at"])

	e.Tags = cleanList(raw["tags"])

	sources := cleanList(raw["sources"])
	e.Sources = appendUnique(sources, source)

	e.SourceLinks = sourceLinks(raw)

	for _, key := range []string{"urlHash", "url_hash"} {
		if h := stringField(raw, key); h != "" {
			e.URLHash = h
			break
		}
	}

	e.Free = coerceBool(raw["free"])
	e.URLStatus = coerceInt(raw["url_status"])

	return e, nil
}

// SanitizeAll sanitizes every record, keeping input order. Rejected records
// are logged at WARN and returned separately.
func (s *Sanitizer) SanitizeAll(raws []event.Raw) ([]*event.Event, []Rejection) {
	events := make([]*event.Event, 0, len(raws))
	var rejected []Rejection

	for i, raw := range raws {
		e, err := s.Sanitize(raw, i+1)
		if err != nil {
			rej, ok := err.(*Rejection)
			if !ok {
				rej = &Rejection{Index: i + 1, Reason: err.Error()}
			}
			logger.Warn("dropping malformed record", logger.Fields{
				"index":  rej.Index,
				"title":  rej.Title,
				"reason": rej.Reason,
			})
			rejected = append(rejected, *rej)
			continue
		}
		events = append(events, e)
	}

	if len(rejected) > 0 {
		logger.Warn("dropped records missing required fields", logger.Fields{
			"dropped": len(rejected),
		})
	}
	return events, rejected
}

func (s *Sanitizer) timestamp(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		n := event.Normalize(t, s.zone())
		return &n
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		n := event.Normalize(*t, s.zone())
		return &n
	case string:
		parsed, ok := event.ParseTimestamp(t, s.zone())
		if !ok {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

func stringField(raw event.Raw, key string) string {
	v, _ := coerceString(raw[key])
	return v
}

// coerceString converts a scalar to its trimmed string form. Lists, maps
// and nil are not scalars.
func coerceString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return strings.TrimSpace(t.String()), true
	case fmt.Stringer:
		return strings.TrimSpace(t.String()), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		return "", false
	}
}

// listItems returns the elements of any slice or array. ok is false for
// everything else.
func listItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// cleanList returns the sorted, unique, non-empty string forms of a list of
// scalars. Anything that is not a list yields nil.
func cleanList(v any) []string {
	items, ok := listItems(v)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		s, ok := coerceString(item)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func appendUnique(values []string, v string) []string {
	if v == "" {
		return values
	}
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func sourceLinks(raw event.Raw) []event.SourceLink {
	for _, key := range []string{"sourceLinks", "source_links"} {
		items, _ := listItems(raw[key])
		if len(items) == 0 {
			continue
		}

		var links []event.SourceLink
		for _, item := range items {
			u, label := linkFields(item)
			if u == "" {
				continue
			}
			links = append(links, event.SourceLink{URL: u, Source: label})
		}
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

// linkFields extracts url and label from one sourceLinks entry.
func linkFields(item any) (string, string) {
	var get func(string) any
	switch m := item.(type) {
	case event.SourceLink:
		return strings.TrimSpace(m.URL), strings.TrimSpace(m.Source)
	case *event.SourceLink:
		if m == nil {
			return "", ""
		}
		return strings.TrimSpace(m.URL), strings.TrimSpace(m.Source)
	case map[string]any:
		get = func(k string) any { return m[k] }
	case event.Raw:
		get = func(k string) any { return m[k] }
	case map[string]string:
		get = func(k string) any {
			if v, ok := m[k]; ok {
				return v
			}
			return nil
		}
	default:
		return "", ""
	}

	u, _ := coerceString(get("url"))
	label, _ := coerceString(get("source"))
	if label == "" {
		label, _ = coerceString(get("label"))
	}
	return u, label
}

func coerceBool(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			b = true
		case "false", "no", "0":
			b = false
		default:
			return nil
		}
	default:
		n := coerceInt(v)
		if n == nil || (*n != 0 && *n != 1) {
			return nil
		}
		b = *n == 1
	}
	return &b
}

func coerceInt(v any) *int {
	var n int
	switch t := v.(type) {
	case nil:
		return nil
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n = int(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if rv.Uint() > math.MaxInt {
				return nil
			}
			n = int(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil
			}
			n = int(f)
		default:
			return nil
		}
	}
	return &n
}
