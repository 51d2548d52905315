package filter

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthPattern = `(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)`

var (
	sameMonthRange  = regexp.MustCompile(`(?i)^` + monthPattern + `\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`(?i)^` + monthPattern + `\s+(\d{1,2})\s*-\s*` + monthPattern + `\s+(\d{1,2})$`)
	wholeMonth      = regexp.MustCompile(`(?i)^` + monthPattern + `$`)
)

// ParseDateRange parses a date range string into start and end times.
//
// Supported formats:
//   - "Mar 1-15" or "March 1-15" - Same month, different days
//   - "March 1 - April 15" - Different months
//   - "March" - Entire month
//
// Months earlier than now's month are taken to be next year. Bounds are
// local days in zone: start at 00:00:00, end at 23:59:59.
func ParseDateRange(input string, now time.Time, zone *time.Location) (*time.Time, *time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}
	if zone == nil {
		zone = time.UTC
	}
	now = now.In(zone)

	if m := sameMonthRange.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		day1, err := parseDay(m[2])
		if err != nil {
			return nil, nil, err
		}
		day2, err := parseDay(m[3])
		if err != nil {
			return nil, nil, err
		}
		year := yearForMonth(month, now)
		return bounds(time.Date(year, month, day1, 0, 0, 0, 0, zone), time.Date(year, month, day2, 23, 59, 59, 0, zone))
	}

	if m := crossMonthRange.FindStringSubmatch(input); m != nil {
		month1 := parseMonth(m[1])
		day1, err := parseDay(m[2])
		if err != nil {
			return nil, nil, err
		}
		month2 := parseMonth(m[3])
		day2, err := parseDay(m[4])
		if err != nil {
			return nil, nil, err
		}
		year1 := yearForMonth(month1, now)
		year2 := year1
		if month2 < month1 {
			year2++
		}
		return bounds(time.Date(year1, month1, day1, 0, 0, 0, 0, zone), time.Date(year2, month2, day2, 23, 59, 59, 0, zone))
	}

	if m := wholeMonth.FindStringSubmatch(input); m != nil {
		month := parseMonth(m[1])
		year := yearForMonth(month, now)
		from := time.Date(year, month, 1, 0, 0, 0, 0, zone)
		// day 0 of the next month is the last day of this one
		to := time.Date(year, month+1, 0, 23, 59, 59, 0, zone)
		return &from, &to, nil
	}

	return nil, nil, fmt.Errorf("invalid date range format. Use 'Mar 1-15', 'March 1 - April 15', or 'March'")
}

func bounds(from, to time.Time) (*time.Time, *time.Time, error) {
	if from.After(to) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &from, &to, nil
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day: %s", s)
	}
	return day, nil
}

// parseMonth converts a month name to time.Month
func parseMonth(name string) time.Month {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "sept" {
		name = "sep"
	}
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || name == full[:3] {
			return m
		}
	}
	return 0
}

// yearForMonth returns now's year, or the next one if month has passed.
func yearForMonth(month time.Month, now time.Time) int {
	year := now.Year()
	if month < now.Month() {
		year++
	}
	return year
}

// FromQuery builds a filter from API query parameters:
//
//	range=March 1-15  from=2025-03-01  to=2025-03-15
//	city, venue, tag, source (repeatable or comma separated)
//	weekends=true  free=true  q=text
func FromQuery(q url.Values, now time.Time, zone *time.Location) (*Filter, error) {
	if zone == nil {
		zone = time.UTC
	}
	f := NewFilter()

	if r := strings.TrimSpace(q.Get("range")); r != "" {
		from, to, err := ParseDateRange(r, now, zone)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = from, to
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, zone)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q: expected YYYY-MM-DD", v)
		}
		f.DateFrom = &day
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		day, err := time.ParseInLocation("2006-01-02", v, zone)
		if err != nil {
			return nil, fmt.Errorf("invalid to date %q: expected YYYY-MM-DD", v)
		}
		end := day.Add(24*time.Hour - time.Second)
		f.DateTo = &end
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, fmt.Errorf("start date must be before end date")
	}

	f.Cities = listParam(q, "city")
	f.Venues = listParam(q, "venue")
	f.Tags = listParam(q, "tag")
	f.Sources = listParam(q, "source")

	var err error
	if f.WeekendsOnly, err = boolParam(q, "weekends"); err != nil {
		return nil, err
	}
	if f.FreeOnly, err = boolParam(q, "free"); err != nil {
		return nil, err
	}
	f.Text = strings.TrimSpace(q.Get("q"))

	return f, nil
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(q url.Values, key string) (bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", key, v)
	}
	return b, nil
}
