// Package calendar wraps the Google Calendar API and resolves calendar ids
// from their display names.
package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Client is a wrapper around the Google Calendar API service.
type Client struct {
	service *calendar.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP
// client. Extra options (for example option.WithEndpoint) are passed through.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListCalendars returns every calendar of the account except the primary
// one, following page tokens until the listing is exhausted.
func (c *Client) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	var out []*calendar.CalendarListEntry

	pageToken := ""
	for {
		call := c.service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, classify("list calendars", err)
		}

		for _, entry := range list.Items {
			if entry.Primary {
				continue
			}
			out = append(out, entry)
		}

		if list.NextPageToken == "" {
			return out, nil
		}
		pageToken = list.NextPageToken
	}
}

// CreateCalendar creates a secondary calendar and returns its id.
func (c *Client) CreateCalendar(ctx context.Context, name, timeZone string) (string, error) {
	created, err := c.service.Calendars.Insert(&calendar.Calendar{
		Summary:  name,
		TimeZone: timeZone,
	}).Context(ctx).Do()
	if err != nil {
		return "", classify("create calendar", err)
	}

	return created.Id, nil
}

// DeleteCalendar deletes a secondary calendar.
func (c *Client) DeleteCalendar(ctx context.Context, calendarID string) error {
	if err := c.service.Calendars.Delete(calendarID).Context(ctx).Do(); err != nil {
		return classify("delete calendar", err)
	}
	return nil
}

// ClearCalendar removes every event of a primary calendar.
func (c *Client) ClearCalendar(ctx context.Context, calendarID string) error {
	if err := c.service.Calendars.Clear(calendarID).Context(ctx).Do(); err != nil {
		return classify("clear calendar", err)
	}
	return nil
}

// ListEvents retrieves events from a calendar. Zero bounds are not sent.
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var out []*calendar.Event

	pageToken := ""
	for {
		call := c.service.Events.List(calendarID).Context(ctx)
		if !timeMin.IsZero() {
			call = call.TimeMin(timeMin.Format(time.RFC3339))
		}
		if !timeMax.IsZero() {
			call = call.TimeMax(timeMax.Format(time.RFC3339))
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		events, err := call.Do()
		if err != nil {
			return nil, classify("list events", err)
		}
		out = append(out, events.Items...)

		if events.NextPageToken == "" {
			return out, nil
		}
		pageToken = events.NextPageToken
	}
}

// InsertEvent inserts a new event into a calendar and returns it as stored
// by Google.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(calendarID, event).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("insert event", err)
	}

	return created, nil
}

// UpdateEvent replaces an existing event.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.service.Events.Update(calendarID, eventID, event).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("update event", err)
	}

	return updated, nil
}

// DeleteEvent deletes an event from a calendar.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.service.Events.Delete(calendarID, eventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	if err != nil {
		return classify("delete event", err)
	}

	return nil
}
