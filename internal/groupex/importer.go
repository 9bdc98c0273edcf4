package groupex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ymca/gcalsync/internal/cache"
	"github.com/ymca/gcalsync/internal/classtime"
)

// ImportStats summarizes what an import changed in the cache.
type ImportStats struct {
	Rows    int
	Created int
	Changed int
	Removed int
	Skipped int
}

// Importer folds fetched schedule rows into the cache repository.
type Importer struct {
	repo   cache.Repository
	loc    *time.Location
	logger *slog.Logger
}

// NewImporter creates an Importer. Dates and times from the feed are
// interpreted in loc.
func NewImporter(repo cache.Repository, loc *time.Location, logger *slog.Logger) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{repo: repo, loc: loc, logger: logger}
}

type classGroup struct {
	class Class
	dates []string
}

// Import upserts every class of the result. Cached occurrences inside
// [start, end) that are missing from a complete result are dropped, and a
// class left without occurrences is marked removed.
func (im *Importer) Import(ctx context.Context, result *FetchResult, start, end time.Time) (ImportStats, error) {
	stats := ImportStats{Rows: len(result.Classes)}

	groups, order := im.group(result.Classes, &stats)
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		created, changed, err := im.upsert(ctx, groups[id])
		if err != nil {
			return stats, err
		}
		switch {
		case created:
			stats.Created++
		case changed:
			stats.Changed++
		}
	}

	if !result.Complete() {
		im.logger.Warn("Skipping removal detection, some locations failed", "failed", result.Failed)
		return stats, nil
	}

	removed, err := im.detectRemovals(ctx, groups, start, end)
	stats.Removed = removed
	return stats, err
}

func (im *Importer) group(classes []Class, stats *ImportStats) (map[string]*classGroup, []string) {
	groups := make(map[string]*classGroup)
	var order []string
	for _, class := range classes {
		id := strings.TrimSpace(class.ID)
		date, err := classtime.ParseDate(class.Date)
		if id == "" || err != nil {
			im.logger.Warn("Skipping GroupEx row", "id", class.ID, "date", class.Date, "error", err)
			stats.Skipped++
			continue
		}

		g, ok := groups[id]
		if !ok {
			g = &classGroup{class: class}
			groups[id] = g
			order = append(order, id)
		}
		if !slices.Contains(g.dates, date) {
			g.dates = append(g.dates, date)
		}
	}
	return groups, order
}

func (im *Importer) upsert(ctx context.Context, g *classGroup) (created, changed bool, err error) {
	entity, err := im.repo.FindByClassID(ctx, strings.TrimSpace(g.class.ID))
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return false, false, fmt.Errorf("failed to load class %s: %w", g.class.ID, err)
	}

	hash := Hash(g.class)
	if entity == nil {
		entity = &cache.Entity{ClassID: strings.TrimSpace(g.class.ID)}
		created = true
	}

	dates := mergeDates(entity.Dates, g.dates)
	changed = !created && (entity.Hash != hash || !slices.Equal(entity.Dates, dates) || entity.Removed)
	if !created && !changed {
		return false, false, nil
	}

	apply(entity, g.class)
	entity.Hash = hash
	entity.Dates = dates
	entity.Removed = false
	if err := im.setTimes(entity); err != nil {
		im.logger.Warn("Skipping class with invalid time", "class_id", entity.ClassID, "time", entity.TimeOfDay, "error", err)
		return false, false, nil
	}
	if changed && entity.IsPushed() {
		entity.NeedsUpdate = true
	}

	if err := im.repo.Save(ctx, entity); err != nil {
		return false, false, fmt.Errorf("failed to save class %s: %w", entity.ClassID, err)
	}
	return created, changed, nil
}

func (im *Importer) detectRemovals(ctx context.Context, groups map[string]*classGroup, start, end time.Time) (int, error) {
	active, err := im.repo.Active(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("failed to load active classes: %w", err)
	}

	removed := 0
	for _, entity := range active {
		var fetched []string
		if g, ok := groups[entity.ClassID]; ok {
			fetched = g.dates
		}

		kept := make([]string, 0, len(entity.Dates))
		for _, date := range entity.Dates {
			if slices.Contains(fetched, date) || !im.inWindow(date, entity.TimeOfDay, start, end) {
				kept = append(kept, date)
			}
		}
		if len(kept) == len(entity.Dates) {
			continue
		}

		entity.Dates = kept
		if len(kept) == 0 {
			entity.Removed = true
			removed++
		} else {
			if err := im.setTimes(entity); err != nil {
				return removed, err
			}
			if entity.IsPushed() {
				entity.NeedsUpdate = true
			}
		}
		if err := im.repo.Save(ctx, entity); err != nil {
			return removed, fmt.Errorf("failed to save class %s: %w", entity.ClassID, err)
		}
	}
	return removed, nil
}

func (im *Importer) inWindow(date, timeOfDay string, start, end time.Time) bool {
	classStart, _, err := classtime.Build(date, timeOfDay, im.loc)
	if err != nil {
		return false
	}
	return !classStart.Before(start) && classStart.Before(end)
}

// setTimes sets Start and End from the earliest occurrence and Until from
// the latest. Dates must be sorted.
func (im *Importer) setTimes(e *cache.Entity) error {
	start, end, err := classtime.Build(e.Dates[0], e.TimeOfDay, im.loc)
	if err != nil {
		return err
	}
	_, until, err := classtime.Build(e.Dates[len(e.Dates)-1], e.TimeOfDay, im.loc)
	if err != nil {
		return err
	}
	e.Start, e.End, e.Until = start, end, until
	return nil
}

func apply(e *cache.Entity, c Class) {
	e.Title = c.Title
	e.Location = c.Location
	e.Instructor = c.Instructor
	e.SubInstructor = c.SubInstructor
	e.OrigInstructor = c.OriginalInstructor
	e.Description = c.Description
	e.TimeOfDay = c.Time
}

func mergeDates(existing, fetched []string) []string {
	out := slices.Clone(existing)
	for _, date := range fetched {
		if !slices.Contains(out, date) {
			out = append(out, date)
		}
	}
	slices.Sort(out)
	return out
}

// Hash fingerprints the fields of a class that end up in the calendar event.
func Hash(c Class) string {
	h := sha256.New()
	for _, field := range []string{
		c.Title, c.Location, c.Instructor, c.SubInstructor,
		c.OriginalInstructor, c.Description, c.Time,
	} {
		h.Write([]byte(strings.TrimSpace(field)))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}
