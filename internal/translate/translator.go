// Package translate converts cached GroupEx classes into Google Calendar
// events, including weekly recurrence rules with exclusion dates.
package translate

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"golang.org/x/net/html"
	"google.golang.org/api/calendar/v3"

	"github.com/ymca/gcalsync/internal/cache"
	"github.com/ymca/gcalsync/internal/classtime"
)

const (
	// RRuleDate is the UTC timestamp layout used by UNTIL and EXDATE.
	RRuleDate = "20060102T150405Z"
	// EventDateTime is the layout of event start and end date-times.
	EventDateTime = "2006-01-02T15:04:05"

	eventTimeZone = "UTC"
	week          = 7 * 24 * time.Hour
)

// ErrNotWeekly is returned for classes whose occurrences are not a whole
// number of weeks apart.
var ErrNotWeekly = errors.New("class does not repeat weekly")

var subbedPattern = regexp.MustCompile(`<span class="subbed".*><br>(.*)</span>`)

// Translator maps cache entities to calendar events. Occurrence dates are
// interpreted in the GroupEx source time zone.
type Translator struct {
	loc    *time.Location
	logger *slog.Logger
}

// New creates a Translator. A nil location means UTC.
func New(loc *time.Location, logger *slog.Logger) *Translator {
	if loc == nil {
		loc = time.UTC
	}
	return &Translator{loc: loc, logger: logger}
}

// Translate builds the Google Calendar event for an entity.
func (t *Translator) Translate(e *cache.Entity) (*calendar.Event, error) {
	event := &calendar.Event{
		Summary:     strings.TrimSpace(e.Title),
		Location:    strings.TrimSpace(e.Location),
		Description: Description(e),
		Start: &calendar.EventDateTime{
			DateTime: e.Start.UTC().Format(EventDateTime),
			TimeZone: eventTimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: e.End.UTC().Format(EventDateTime),
			TimeZone: eventTimeZone,
		},
	}

	if len(e.Dates) > 1 {
		recurrence, err := t.Recurrence(e)
		if err != nil {
			return nil, err
		}
		event.Recurrence = recurrence
	}

	return event, nil
}

// Description renders the instructor line followed by the plain-text class
// description.
func Description(e *cache.Entity) string {
	var b strings.Builder
	if instructor := resolveInstructor(e); instructor != "" {
		b.WriteString("Instructor: ")
		b.WriteString(instructor)
		b.WriteString("\n\n")
	}
	b.WriteString(stripTags(strings.TrimSpace(html.UnescapeString(e.Description))))
	return b.String()
}

func resolveInstructor(e *cache.Entity) string {
	instructor := strings.TrimSpace(e.Instructor)
	if instructor == "" {
		instructor = strings.TrimSpace(e.SubInstructor)
	}
	if instructor == "" {
		instructor = strings.TrimSpace(e.OrigInstructor)
	}

	if m := subbedPattern.FindStringSubmatch(instructor); m != nil {
		instructor = strings.Replace(instructor, m[0], " ", 1) + m[1]
	}
	return instructor
}

// stripTags drops every tag and comment and keeps the raw text in between.
func stripTags(s string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}

func isDSTShift(gap time.Duration) bool {
	off := gap % week
	return off == time.Hour || off == week-time.Hour
}

// Recurrence returns the RRULE and, when some weeks are skipped, the EXDATE
// lines for an entity with several occurrence dates.
func (t *Translator) Recurrence(e *cache.Entity) ([]string, error) {
	starts := make([]time.Time, 0, len(e.Dates))
	for _, date := range e.Dates {
		start, _, err := classtime.Build(date, e.TimeOfDay, t.loc)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", e.ClassID, err)
		}
		starts = append(starts, start.UTC())
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	if gap := starts[1].Sub(starts[0]); gap%week != 0 {
		t.logger.Error("Got invalid interval for frequency for GroupEx event",
			"interval_weeks", gap.Hours()/(7*24), "class_id", e.ClassID, "dst_shift", isDSTShift(gap))
		return nil, fmt.Errorf("class %s: %w", e.ClassID, ErrNotWeekly)
	}

	// Weeks are walked in UTC, so occurrences after a daylight saving change
	// fall off the slot grid and end up excluded.
	var drifted []string
	for _, start := range starts[2:] {
		if start.Sub(starts[0])%week != 0 {
			drifted = append(drifted, start.Format(RRuleDate))
		}
	}
	if len(drifted) > 0 {
		t.logger.Warn("GroupEx occurrences drift off the weekly slot and are dropped from the event",
			"class_id", e.ClassID, "dropped", len(drifted), "first_dropped", drifted[0])
	}

	until := starts[len(starts)-1]
	rules := []string{"RRULE:FREQ=WEEKLY;INTERVAL=1;UNTIL=" + until.Format(RRuleDate)}

	known := make(map[string]bool, len(starts))
	for _, start := range starts {
		known[start.Format(RRuleDate)] = true
	}

	first := e.Start.UTC()
	if e.Start.IsZero() {
		first = starts[0]
	}
	slots, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.WEEKLY,
		Interval: 1,
		Dtstart:  first,
		Until:    until,
	})
	if err != nil {
		return nil, fmt.Errorf("class %s: weekly rule: %w", e.ClassID, err)
	}

	var excluded []string
	for _, slot := range slots.All() {
		if stamp := slot.UTC().Format(RRuleDate); !known[stamp] {
			excluded = append(excluded, stamp)
		}
	}
	if len(excluded) > 0 {
		rules = append(rules, "EXDATE:"+strings.Join(excluded, ","))
	}
	return rules, nil
}
