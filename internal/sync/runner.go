package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/ymca/gcalsync/internal/cache"
	"github.com/ymca/gcalsync/internal/groupex"
	"github.com/ymca/gcalsync/internal/ics"
	"github.com/ymca/gcalsync/internal/translate"
)

// Source fetches the GroupEx schedule of a time frame.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) (*groupex.FetchResult, error)
}

// Runner executes complete passes: fetch the current window, fold it into
// the cache, classify the cache and push the batch.
type Runner struct {
	wrapper    *Wrapper
	source     Source
	importer   *groupex.Importer
	repo       cache.Repository
	syncer     *Syncer
	translator *translate.Translator
	logger     *slog.Logger
}

// NewRunner creates a Runner. A nil source skips fetching and pushes what is
// already cached.
func NewRunner(
	wrapper *Wrapper,
	source Source,
	importer *groupex.Importer,
	repo cache.Repository,
	syncer *Syncer,
	translator *translate.Translator,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		wrapper:    wrapper,
		source:     source,
		importer:   importer,
		repo:       repo,
		syncer:     syncer,
		translator: translator,
		logger:     logger,
	}
}

// Prepare loads the current window, imports its GroupEx schedule and builds
// the operation batch.
func (r *Runner) Prepare(ctx context.Context) (Batch, error) {
	window, err := r.wrapper.LoadTimeFrame(ctx)
	if err != nil {
		return Batch{}, err
	}

	if r.source != nil {
		result, err := r.source.Fetch(ctx, window.Start, window.End)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to fetch GroupEx schedule: %w", err)
		}
		r.wrapper.SetSourceData(result)

		stats, err := r.importer.Import(ctx, result, window.Start, window.End)
		if err != nil {
			return Batch{}, fmt.Errorf("failed to import GroupEx schedule: %w", err)
		}
		r.logger.Info("GroupEx schedule imported",
			"window_start", window.Start,
			"window_end", window.End,
			"rows", stats.Rows,
			"created", stats.Created,
			"changed", stats.Changed,
			"removed", stats.Removed,
			"skipped", stats.Skipped,
		)
	}

	batch, err := BuildBatch(ctx, r.repo, window)
	if err != nil {
		return Batch{}, err
	}
	r.wrapper.SetProxyData(batch)
	return batch, nil
}

// Run performs one pass.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if _, err := r.Prepare(ctx); err != nil {
		return nil, err
	}
	return r.syncer.Proceed(ctx), nil
}

// DryRun prepares a pass and writes the events it would insert or update as
// an iCalendar file instead of pushing them. It returns the number of
// exported events.
func (r *Runner) DryRun(ctx context.Context, w io.Writer) (int, error) {
	batch, err := r.Prepare(ctx)
	if err != nil {
		return 0, err
	}

	var items []ics.Item
	for _, e := range slices.Concat(batch.Insert, batch.Update) {
		event, err := r.translator.Translate(e)
		if err != nil {
			r.logger.Warn("Skipping class in dry run", "class_id", e.ClassID, "error", err)
			continue
		}
		items = append(items, ics.Item{UID: uid(e), Event: event})
	}

	if err := ics.Encode(w, items, time.Now()); err != nil {
		return 0, err
	}
	return len(items), nil
}

func uid(e *cache.Entity) string {
	if e.ClassID != "" {
		return e.ClassID + "@groupex"
	}
	return strconv.FormatInt(e.ID, 10) + "@gcalsync"
}
