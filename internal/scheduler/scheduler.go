// Package scheduler triggers synchronization passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is a single scheduled pass.
type Job func(ctx context.Context)

// Scheduler runs a Job on a cron schedule. A run that is still in progress
// when the next one is due causes that one to be skipped.
type Scheduler struct {
	spec       string
	cron       *cron.Cron
	job        Job
	runOnStart bool
	logger     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRunOnStart runs the job once immediately when Run is called.
func WithRunOnStart() Option {
	return func(s *Scheduler) {
		s.runOnStart = true
	}
}

// New creates a Scheduler for a cron expression such as "*/15 * * * *" or
// "@every 10m", evaluated in loc.
func New(spec string, loc *time.Location, job Job, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	cronLogger := &cronLogger{logger: logger}
	s := &Scheduler{
		spec: spec,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(cronParser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		job:    job,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled. It waits for a
// running job to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.job(ctx) }); err != nil {
		return fmt.Errorf("add sync job: %w", err)
	}

	if s.runOnStart {
		s.job(ctx)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "cron", s.spec)

	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
