package sync

import (
	"context"
	"fmt"

	"github.com/ymca/gcalsync/internal/groupex"
	"github.com/ymca/gcalsync/internal/schedule"
)

// Wrapper carries the data of a single pass: the raw GroupEx rows, the
// operation batch derived from them and the time frame being processed.
// Advancing it moves the schedule cursor to the next window.
type Wrapper struct {
	cursor *schedule.Cursor
	source *groupex.FetchResult
	proxy  Batch
	frame  schedule.Step
}

// NewWrapper creates a Wrapper backed by a schedule cursor.
func NewWrapper(cursor *schedule.Cursor) *Wrapper {
	return &Wrapper{cursor: cursor}
}

// SetSourceData stores the raw GroupEx rows fetched for the pass.
func (w *Wrapper) SetSourceData(r *groupex.FetchResult) { w.source = r }

// SourceData returns the raw GroupEx rows of the pass, nil when nothing was
// fetched.
func (w *Wrapper) SourceData() *groupex.FetchResult { return w.source }

// SetProxyData stores the operation batch of the pass.
func (w *Wrapper) SetProxyData(b Batch) { w.proxy = b }

// ProxyData returns the operation batch of the pass.
func (w *Wrapper) ProxyData() Batch { return w.proxy }

// SetTimeFrame overrides the time frame of the pass.
func (w *Wrapper) SetTimeFrame(s schedule.Step) { w.frame = s }

// TimeFrame returns the time frame of the pass.
func (w *Wrapper) TimeFrame() schedule.Step { return w.frame }

// LoadTimeFrame sets the time frame from the cursor's current window.
func (w *Wrapper) LoadTimeFrame(ctx context.Context) (schedule.Step, error) {
	step, err := w.cursor.CurrentWindow(ctx)
	if err != nil {
		return schedule.Step{}, fmt.Errorf("failed to get current window: %w", err)
	}
	w.frame = step
	return step, nil
}

// Next advances the schedule cursor after a complete pass.
func (w *Wrapper) Next(ctx context.Context) error {
	return w.cursor.Advance(ctx)
}
