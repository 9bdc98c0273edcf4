// Package ics renders translated calendar events as an iCalendar file, used
// by dry runs to inspect what a pass would push.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"
)

const productID = "-//YMCA//gcalsync//EN"

// Item is an event together with the uid it is exported under.
type Item struct {
	UID   string
	Event *calendar.Event
}

// Encode writes items as a single VCALENDAR. now is used for DTSTAMP.
func Encode(w io.Writer, items []Item, now time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, item := range items {
		vevent, err := toVEvent(item, now)
		if err != nil {
			return fmt.Errorf("event %s: %w", item.UID, err)
		}
		cal.Children = append(cal.Children, vevent.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func toVEvent(item Item, now time.Time) (*ical.Event, error) {
	event := item.Event

	start, err := parseDateTime(event.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := parseDateTime(event.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, item.UID)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		vevent.Props.SetText(ical.PropLocation, event.Location)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, start)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, end)

	// Recurrence lines are already in iCalendar syntax and must not be
	// text-escaped.
	for _, line := range event.Recurrence {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("invalid recurrence line %q", line)
		}
		prop := ical.NewProp(name)
		prop.Value = value
		vevent.Props.Add(prop)
	}

	return vevent, nil
}

func parseDateTime(dt *calendar.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, fmt.Errorf("missing date-time")
	}

	loc := time.UTC
	if dt.TimeZone != "" {
		l, err := time.LoadLocation(dt.TimeZone)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}

	t, err := time.ParseInLocation("2006-01-02T15:04:05", dt.DateTime, loc)
	if err != nil {
		t, err = time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
