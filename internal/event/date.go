package event

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultZoneName is the fixed local zone every timestamp is normalized to.
const DefaultZoneName = "Europe/Oslo"

// Weekdays are the heatmap labels, Monday first.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Layouts carrying an explicit offset. "Z07:00" accepts both "Z" and "+02:00".
var zonedLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04Z07:00",
}

// Naive layouts are interpreted in the fixed zone. Fractional seconds are
// accepted after the seconds field by time.Parse even when not in the layout.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadZone resolves a zone name, defaulting to DefaultZoneName when empty.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZoneName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// ParseTimestamp parses an ISO-8601 timestamp. Naive values are assumed to be
// in zone. The result is converted to zone and truncated to whole seconds.
// Returns the zero time and false when value cannot be parsed.
func ParseTimestamp(value string, zone *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if zone == nil {
		zone = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Normalize(t, zone), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return Normalize(t, zone), true
		}
	}
	return time.Time{}, false
}

// Normalize converts t to zone and drops the sub-second component.
func Normalize(t time.Time, zone *time.Location) time.Time {
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Truncate(time.Second)
}

// ParseNow parses the "now" override. An empty value yields the current
// instant in zone. Unlike ParseTimestamp, invalid input is an error.
func ParseNow(value string, zone *time.Location) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return Normalize(time.Now(), zone), nil
	}
	t, ok := ParseTimestamp(value, zone)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid now value %q: expected ISO 8601", value)
	}
	return t, nil
}

// WeekdayLabel returns the Monday-first label for t.
func WeekdayLabel(t time.Time) string {
	return Weekdays[(int(t.Weekday())+6)%7]
}

// HumanWhen formats t as a short label like "Fri 20:00".
func HumanWhen(t time.Time) string {
	return fmt.Sprintf("%s %s", WeekdayLabel(t), t.Format("15:04"))
}
