package sync

import (
	"context"
	"fmt"

	"github.com/ymca/gcalsync/internal/cache"
	"github.com/ymca/gcalsync/internal/schedule"
)

// Operation names a bucket of a Batch.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists the buckets in processing order.
var Operations = []Operation{OpInsert, OpUpdate, OpDelete}

// Batch is the unit of work of one pass.
type Batch struct {
	Insert []*cache.Entity
	Update []*cache.Entity
	Delete []*cache.Entity
}

// Items returns the bucket of an operation.
func (b Batch) Items(op Operation) []*cache.Entity {
	switch op {
	case OpInsert:
		return b.Insert
	case OpUpdate:
		return b.Update
	case OpDelete:
		return b.Delete
	}
	return nil
}

// Len returns the number of items over all buckets.
func (b Batch) Len() int {
	return len(b.Insert) + len(b.Update) + len(b.Delete)
}

// BuildBatch classifies the cached classes occurring in window: not yet
// pushed ones are inserted and pushed ones flagged as changed are updated.
// Every class removed upstream is deleted, whatever its window, since removal
// is only ever detected by a windowed import.
func BuildBatch(ctx context.Context, repo cache.Repository, window schedule.Step) (Batch, error) {
	var batch Batch

	active, err := repo.Active(ctx, window.Start, window.End)
	if err != nil {
		return batch, fmt.Errorf("failed to load active classes: %w", err)
	}
	for _, e := range active {
		switch {
		case !e.IsPushed():
			batch.Insert = append(batch.Insert, e)
		case e.NeedsUpdate:
			batch.Update = append(batch.Update, e)
		}
	}

	removed, err := repo.Removed(ctx)
	if err != nil {
		return batch, fmt.Errorf("failed to load removed classes: %w", err)
	}
	batch.Delete = removed

	return batch, nil
}
