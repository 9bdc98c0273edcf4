package calendar

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/api/calendar/v3"
)

const (
	// DefaultTestCalendarName receives every event outside production.
	DefaultTestCalendarName = "TESTING"
	// DefaultTimeZone is the time zone of calendars created by the resolver.
	DefaultTimeZone = "UTC"
)

// Lister is the part of CalendarClient the resolver needs.
type Lister interface {
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
	CreateCalendar(ctx context.Context, name, timeZone string) (string, error)
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Production disables the sandbox calendar substitution.
	Production bool
	// TestCalendarName defaults to DefaultTestCalendarName.
	TestCalendarName string
	// TimeZone defaults to DefaultTimeZone.
	TimeZone string
}

// Resolver maps calendar display names to Google calendar ids, creating
// calendars on demand. Resolved names are cached for the life of the process.
type Resolver struct {
	client    Lister
	logger    *slog.Logger
	opts      ResolverOptions
	mu        sync.Mutex
	calendars map[string]string
}

// NewResolver creates a Resolver.
func NewResolver(client Lister, logger *slog.Logger, opts ResolverOptions) *Resolver {
	if opts.TestCalendarName == "" {
		opts.TestCalendarName = DefaultTestCalendarName
	}
	if opts.TimeZone == "" {
		opts.TimeZone = DefaultTimeZone
	}
	return &Resolver{
		client:    client,
		logger:    logger,
		opts:      opts,
		calendars: make(map[string]string),
	}
}

// ResolveCalendarID returns the id of the calendar called name. It reports
// false when the calendar could neither be listed nor created.
func (r *Resolver) ResolveCalendarID(ctx context.Context, name string) (string, bool) {
	if !r.opts.Production {
		name = r.opts.TestCalendarName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.calendars[name]; ok {
		return id, true
	}

	entries, err := r.client.ListCalendars(ctx)
	if err != nil {
		r.logger.Error("Failed to get the list of calendars", "error", err)
		return "", false
	}
	for _, entry := range entries {
		r.calendars[entry.Summary] = entry.Id
	}

	if id, ok := r.calendars[name]; ok {
		return id, true
	}

	id, err := r.client.CreateCalendar(ctx, name, r.opts.TimeZone)
	if err != nil {
		r.logger.Error("Failed to create calendar", "name", name, "error", err)
		return "", false
	}
	r.logger.Info("Calendar was created", "id", id, "name", name)

	r.calendars[name] = id
	return id, true
}
