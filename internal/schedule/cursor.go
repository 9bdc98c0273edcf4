// Package schedule keeps the persisted cursor that walks the synchronization
// through a ring of fixed-length time windows, one window per pass.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/ymca/gcalsync/internal/state"
)

// Key is the state key the schedule is stored under.
const Key = "gcalsync.schedule"

const (
	// DefaultSteps is the number of windows in a schedule.
	DefaultSteps = 180
	// DefaultStepLength is the duration of a single window.
	DefaultStepLength = 12 * time.Hour
)

// Step is a single time window.
type Step struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Schedule is the persisted cursor: the ordered windows and the index of the
// window being processed.
type Schedule struct {
	Steps   []Step `json:"steps"`
	Current int    `json:"current"`
}

// Window returns the current step.
func (s *Schedule) Window() Step {
	return s.Steps[s.Current]
}

// Cursor reads and advances the schedule stored in a state.Store.
type Cursor struct {
	store  state.Store
	steps  int
	length time.Duration
	now    func() time.Time
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithSteps sets the number of windows per schedule.
func WithSteps(n int) Option {
	return func(c *Cursor) {
		if n > 0 {
			c.steps = n
		}
	}
}

// WithStepLength sets the duration of each window.
func WithStepLength(d time.Duration) Option {
	return func(c *Cursor) {
		if d > 0 {
			c.length = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cursor) {
		c.now = now
	}
}

// NewCursor creates a Cursor with DefaultSteps windows of DefaultStepLength.
func NewCursor(store state.Store, opts ...Option) *Cursor {
	c := &Cursor{
		store:  store,
		steps:  DefaultSteps,
		length: DefaultStepLength,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schedule returns the persisted schedule, building and persisting a new one
// anchored at the current time when none exists.
func (c *Cursor) Schedule(ctx context.Context) (*Schedule, error) {
	var s Schedule
	ok, err := c.store.Get(ctx, Key, &s)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if ok && s.Current >= 0 && s.Current < len(s.Steps) {
		return &s, nil
	}

	fresh := c.build(c.now())
	if err := c.store.Set(ctx, Key, fresh); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	return fresh, nil
}

// CurrentWindow returns the window the cursor points at.
func (c *Cursor) CurrentWindow(ctx context.Context) (Step, error) {
	s, err := c.Schedule(ctx)
	if err != nil {
		return Step{}, err
	}
	return s.Window(), nil
}

// Advance moves the cursor to the next window. Past the last window the whole
// schedule is rebuilt from the current time rather than extended.
func (c *Cursor) Advance(ctx context.Context) error {
	s, err := c.Schedule(ctx)
	if err != nil {
		return err
	}

	next := s.Current + 1
	if next >= len(s.Steps) {
		s = c.build(c.now())
	} else {
		s.Current = next
	}

	if err := c.store.Set(ctx, Key, s); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// Reset removes the persisted schedule.
func (c *Cursor) Reset(ctx context.Context) error {
	if err := c.store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("failed to reset schedule: %w", err)
	}
	return nil
}

func (c *Cursor) build(start time.Time) *Schedule {
	start = start.UTC().Truncate(time.Second)
	s := &Schedule{Steps: make([]Step, c.steps)}
	for i := range s.Steps {
		if i > 0 {
			start = s.Steps[i-1].End
		}
		s.Steps[i] = Step{Start: start, End: start.Add(c.length)}
	}
	return s
}
