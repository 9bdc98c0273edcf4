// Package classtime turns GroupEx dates and time-of-day ranges into absolute
// timestamps.
package classtime

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format stored on cache entities.
const DateLayout = "2006-01-02"

// groupexDateLayouts are the date formats GroupEx feeds are known to use.
var groupexDateLayouts = []string{
	DateLayout,
	"Monday, January 2, 2006",
	"January 2, 2006",
	"01/02/2006",
}

var clockLayouts = []string{"3:04pm", "3pm", "15:04"}

// ParseDate parses a GroupEx date into the canonical DateLayout form.
func ParseDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range groupexDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

// Build returns the start and end of a class held on date (2006-01-02) with a
// time-of-day range such as "5:30am-6:30am", interpreted in loc. An end that
// is not after the start rolls over to the next day.
func Build(date, timeOfDay string, loc *time.Location) (start, end time.Time, err error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}

	from, to, ok := strings.Cut(normalize(timeOfDay), "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range %q", timeOfDay)
	}

	startClock, err := parseClock(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endClock, err := parseClock(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	start = at(day, startClock, loc)
	end = at(day, endClock, loc)
	if !end.After(start) {
		end = at(day.AddDate(0, 0, 1), endClock, loc)
	}
	return start, end, nil
}

func normalize(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "–", "-")
	return value
}

func parseClock(value string) (time.Time, error) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", value)
}

func at(day, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}
