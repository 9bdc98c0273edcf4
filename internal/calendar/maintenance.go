package calendar

import (
	"context"
	"log/slog"
	"time"
)

// maxAttempts bounds the retries of destructive maintenance calls.
const maxAttempts = 3

// Maintenance bundles the destructive housekeeping operations used by the
// command line tool.
type Maintenance struct {
	client CalendarClient
	logger *slog.Logger
	now    func() time.Time
}

// NewMaintenance creates a Maintenance helper.
func NewMaintenance(client CalendarClient, logger *slog.Logger) *Maintenance {
	return &Maintenance{client: client, logger: logger, now: time.Now}
}

// ClearEvents deletes every event of a calendar that starts within the next
// year. Failures of single deletions are logged and skipped; the number of
// deleted events is returned.
func (m *Maintenance) ClearEvents(ctx context.Context, calendarID string) (int, error) {
	events, err := m.client.ListEvents(ctx, calendarID, time.Time{}, m.now().AddDate(1, 0, 0))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, event := range events {
		if err := m.client.DeleteEvent(ctx, calendarID, event.Id); err != nil {
			m.logger.Warn("Failed to delete event", "calendar", calendarID, "event", event.Id, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ClearPrimary clears the primary calendar, trying up to three times.
func (m *Maintenance) ClearPrimary(ctx context.Context) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		if err = m.client.ClearCalendar(ctx, "primary"); err == nil {
			m.logger.Info("Primary calendar was cleared")
			return nil
		}
		m.logger.Error("Failed to clear primary calendar", "attempt", i+1, "error", err)
	}
	return err
}

// DeleteAllCalendars removes every calendar except the primary one. Each
// deletion is tried up to three times; the ids that could not be deleted are
// returned.
func (m *Maintenance) DeleteAllCalendars(ctx context.Context) ([]string, error) {
	entries, err := m.client.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}

	var failed []string
	for _, entry := range entries {
		if !m.deleteCalendar(ctx, entry.Id) {
			failed = append(failed, entry.Id)
		}
	}
	return failed, nil
}

func (m *Maintenance) deleteCalendar(ctx context.Context, id string) bool {
	for i := 0; i < maxAttempts; i++ {
		err := m.client.DeleteCalendar(ctx, id)
		if err == nil {
			m.logger.Info("Calendar was deleted", "id", id)
			return true
		}
		m.logger.Error("Failed to delete the calendar", "id", id, "attempt", i+1, "error", err)
	}
	return false
}
