// Package sync pushes cached GroupEx classes to Google Calendar one schedule
// window at a time.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ymca/gcalsync/internal/cache"
	calclient "github.com/ymca/gcalsync/internal/calendar"
	"github.com/ymca/gcalsync/internal/schedule"
	"github.com/ymca/gcalsync/internal/translate"
)

// Credentials is the access credential used by the calendar client.
type Credentials interface {
	Expired() bool
	// Refresh obtains a new access token and persists it.
	Refresh(ctx context.Context) error
}

// CalendarResolver maps a calendar display name to its id.
type CalendarResolver interface {
	ResolveCalendarID(ctx context.Context, name string) (string, bool)
}

// OpStats are the statistics of one bucket.
type OpStats struct {
	Op        Operation
	Items     int
	Processed int
	Succeeded int
	Elapsed   time.Duration
}

// SuccessRate is the succeeded share in percent; an empty bucket is 100.
func (s OpStats) SuccessRate() float64 {
	if s.Items == 0 {
		return 100
	}
	return float64(s.Succeeded) * 100 / float64(s.Items)
}

// Report describes a pass.
type Report struct {
	RunID  string
	Window schedule.Step
	Ops    []OpStats
	// Aborted is set when the pass stopped early, e.g. on a rate limit.
	Aborted bool
	// Advanced is set when the schedule cursor moved to the next window.
	Advanced bool
}

// Syncer pushes the operation batch of the wrapper to Google Calendar.
type Syncer struct {
	client     calclient.CalendarClient
	resolver   CalendarResolver
	translator *translate.Translator
	repo       cache.Repository
	wrapper    *Wrapper
	creds      Credentials
	logger     *slog.Logger
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(
	client calclient.CalendarClient,
	resolver CalendarResolver,
	translator *translate.Translator,
	repo cache.Repository,
	wrapper *Wrapper,
	creds Credentials,
	logger *slog.Logger,
) *Syncer {
	return &Syncer{
		client:     client,
		resolver:   resolver,
		translator: translator,
		repo:       repo,
		wrapper:    wrapper,
		creds:      creds,
		logger:     logger,
	}
}

// Proceed processes the insert, update and delete buckets in that order. A
// rate limit aborts the pass without advancing the cursor; other failures
// only skip the affected item. Errors are logged, never returned.
func (s *Syncer) Proceed(ctx context.Context) *Report {
	report := &Report{
		RunID:  uuid.NewString(),
		Window: s.wrapper.TimeFrame(),
	}
	logger := s.logger.With("run_id", report.RunID)
	batch := s.wrapper.ProxyData()

	for _, op := range Operations {
		stats, err := s.process(ctx, logger, op, batch.Items(op))
		report.Ops = append(report.Ops, stats)
		s.logStats(logger, report.Window, stats)
		if err != nil {
			logger.Error("Sync pass aborted", "op", op, "error", err)
			report.Aborted = true
			return report
		}
	}

	if err := s.wrapper.Next(ctx); err != nil {
		logger.Error("Failed to advance schedule", "error", err)
		return report
	}
	report.Advanced = true
	return report
}

func (s *Syncer) process(ctx context.Context, logger *slog.Logger, op Operation, items []*cache.Entity) (OpStats, error) {
	stats := OpStats{Op: op, Items: len(items)}
	started := time.Now()

	for _, entity := range items {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(started)
			return stats, err
		}
		if err := s.ensureCredentials(ctx); err != nil {
			stats.Elapsed = time.Since(started)
			return stats, err
		}

		stats.Processed++
		err := s.apply(ctx, op, entity)
		if err == nil {
			stats.Succeeded++
			continue
		}
		if abort := s.handleError(logger, op, entity, err); abort != nil {
			stats.Elapsed = time.Since(started)
			return stats, abort
		}
	}

	stats.Elapsed = time.Since(started)
	return stats, nil
}

func (s *Syncer) ensureCredentials(ctx context.Context) error {
	if s.creds == nil || !s.creds.Expired() {
		return nil
	}
	if err := s.creds.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh access token: %w", err)
	}
	s.logger.Debug("Access token refreshed")
	return nil
}

func (s *Syncer) apply(ctx context.Context, op Operation, e *cache.Entity) error {
	switch op {
	case OpInsert:
		return s.insert(ctx, e)
	case OpUpdate:
		return s.update(ctx, e)
	case OpDelete:
		return s.delete(ctx, e)
	}
	return fmt.Errorf("unknown operation %q", op)
}

// handleError logs an item failure and returns a non-nil error when the pass
// must stop.
func (s *Syncer) handleError(logger *slog.Logger, op Operation, e *cache.Entity, err error) error {
	var rateLimit *calclient.RateLimitError
	var remote *calclient.RemoteError
	switch {
	case errors.As(err, &rateLimit):
		logger.Error("Google rate limit exceeded", "op", op, "entity_id", e.ID, "message", rateLimit.Message)
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, translate.ErrNotWeekly):
		logger.Warn("Skipping class that does not repeat weekly", "op", op, "entity_id", e.ID, "class_id", e.ClassID)
	case errors.As(err, &remote):
		logger.Error("Google service error", "op", op, "entity_id", e.ID, "code", remote.Code, "message", remote.Message)
	default:
		logger.Error("Failed to process entity", "op", op, "entity_id", e.ID, "error", err)
	}
	return nil
}

func (s *Syncer) calendarID(ctx context.Context, e *cache.Entity) (string, error) {
	id, ok := s.resolver.ResolveCalendarID(ctx, e.Location)
	if !ok {
		return "", fmt.Errorf("no calendar for location %q", e.Location)
	}
	return id, nil
}

func (s *Syncer) insert(ctx context.Context, e *cache.Entity) error {
	if e.IsPushed() {
		return nil
	}

	event, err := s.translator.Translate(e)
	if err != nil {
		return err
	}
	calendarID, err := s.calendarID(ctx, e)
	if err != nil {
		return err
	}

	created, err := s.client.InsertEvent(ctx, calendarID, event)
	if err != nil {
		return err
	}
	e.EventID = created.Id
	return s.storeSnapshot(ctx, e, created)
}

func (s *Syncer) update(ctx context.Context, e *cache.Entity) error {
	event, err := s.translator.Translate(e)
	if err != nil {
		return err
	}
	calendarID, err := s.calendarID(ctx, e)
	if err != nil {
		return err
	}

	updated, err := s.client.UpdateEvent(ctx, calendarID, e.EventID, event)
	if err != nil {
		return err
	}
	return s.storeSnapshot(ctx, e, updated)
}

func (s *Syncer) delete(ctx context.Context, e *cache.Entity) error {
	if e.IsPushed() {
		calendarID, err := s.calendarID(ctx, e)
		if err != nil {
			return err
		}
		err = s.client.DeleteEvent(ctx, calendarID, e.EventID)
		var remote *calclient.RemoteError
		if err != nil && !(errors.As(err, &remote) && remote.IsNotFound()) {
			return err
		}
	}

	children, err := s.repo.Children(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to load children of %d: %w", e.ID, err)
	}
	if err := s.repo.Delete(ctx, append(children, e.ID)...); err != nil {
		return fmt.Errorf("failed to delete entity %d: %w", e.ID, err)
	}
	return nil
}

func (s *Syncer) storeSnapshot(ctx context.Context, e *cache.Entity, event any) error {
	snapshot, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event snapshot: %w", err)
	}
	e.EventSnapshot = string(snapshot)
	e.NeedsUpdate = false
	if err := s.repo.Save(ctx, e); err != nil {
		return fmt.Errorf("failed to save entity %d: %w", e.ID, err)
	}
	return nil
}

func (s *Syncer) logStats(logger *slog.Logger, window schedule.Step, stats OpStats) {
	logger.Info("Sync stats",
		"op", stats.Op,
		"items", stats.Items,
		"succeeded", stats.Succeeded,
		"success_pct", fmt.Sprintf("%.2f", stats.SuccessRate()),
		"elapsed", stats.Elapsed.Round(time.Millisecond),
		"window_start", window.Start,
		"window_end", window.End,
	)
}
