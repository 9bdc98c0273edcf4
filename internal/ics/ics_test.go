package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

func TestEncode(t *testing.T) {
	now := time.Date(2016, 5, 1, 12, 0, 0, 0, time.UTC)
	items := []Item{{
		UID: "42@gcalsync",
		Event: &calendar.Event{
			Summary:     "Zumba",
			Location:    "Andover",
			Description: "Instructor: Jane\n\nBring water, towel",
			Start:       &calendar.EventDateTime{DateTime: "2016-05-02T05:30:00", TimeZone: "UTC"},
			End:         &calendar.EventDateTime{DateTime: "2016-05-02T06:30:00", TimeZone: "UTC"},
			Recurrence: []string{
				"RRULE:FREQ=WEEKLY;INTERVAL=1;UNTIL=20160523T053000Z",
				"EXDATE:20160509T053000Z,20160516T053000Z",
			},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, items, now))

	out := buf.String()
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;INTERVAL=1;UNTIL=20160523T053000Z")
	assert.Contains(t, out, "EXDATE:20160509T053000Z,20160516T053000Z")

	cal, err := ical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	summary, err := events[0].Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Zumba", summary)

	description, err := events[0].Props.Text(ical.PropDescription)
	require.NoError(t, err)
	assert.Equal(t, "Instructor: Jane\n\nBring water, towel", description)

	start, err := events[0].DateTimeStart(time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2016, 5, 2, 5, 30, 0, 0, time.UTC)))
}

func TestEncode_InvalidStart(t *testing.T) {
	err := Encode(&bytes.Buffer{}, []Item{{
		UID:   "bad",
		Event: &calendar.Event{Start: &calendar.EventDateTime{DateTime: "yesterday"}},
	}}, time.Now())
	assert.Error(t, err)
}
