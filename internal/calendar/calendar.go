package calendar

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"
)

// CalendarClient is the set of Google Calendar operations used by the
// synchronization. Client implements it against the real API.
type CalendarClient interface {
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
	CreateCalendar(ctx context.Context, name, timeZone string) (string, error)
	DeleteCalendar(ctx context.Context, calendarID string) error
	ClearCalendar(ctx context.Context, calendarID string) error
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}
