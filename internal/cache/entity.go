// Package cache holds the locally cached GroupEx classes that are pushed to
// Google Calendar, and their persistence.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("cache entity not found")

// Entity is one cached GroupEx class. A class that repeats over several dates
// is a single entity whose Dates lists every known occurrence.
type Entity struct {
	ID             int64
	ClassID        string
	Title          string
	Location       string
	Instructor     string
	SubInstructor  string
	OrigInstructor string
	Description    string
	// TimeOfDay is the GroupEx time range, e.g. "5:30am-6:30am".
	TimeOfDay string
	// Dates are occurrence dates formatted as 2006-01-02.
	Dates []string
	// Start and End bound the earliest occurrence.
	Start time.Time
	End   time.Time
	// Until is the end of the last occurrence. It is never before End.
	Until time.Time
	// ParentID is zero for top-level entities.
	ParentID int64
	// EventID is the Google Calendar event id once the entity was pushed.
	EventID string
	// EventSnapshot is the JSON encoding of the last event returned by Google.
	EventSnapshot string
	NeedsUpdate   bool
	// Removed marks a class that disappeared upstream and must be deleted.
	Removed bool
	// Hash fingerprints the upstream fields to detect changes.
	Hash string
}

func (e *Entity) until() time.Time {
	if e.Until.Before(e.End) {
		return e.End
	}
	return e.Until
}

// IsPushed reports whether the entity already has a Google Calendar event.
func (e *Entity) IsPushed() bool {
	return e.EventID != ""
}

// Repository persists cache entities.
type Repository interface {
	Load(ctx context.Context, id int64) (*Entity, error)
	FindByClassID(ctx context.Context, classID string) (*Entity, error)
	// Save inserts the entity when its ID is zero and updates it otherwise.
	Save(ctx context.Context, e *Entity) error
	Delete(ctx context.Context, ids ...int64) error
	// Children returns the ids of entities referencing parentID.
	Children(ctx context.Context, parentID int64) ([]int64, error)
	// Active returns the top-level entities that are not marked removed and
	// whose occurrences span overlaps [start, end).
	Active(ctx context.Context, start, end time.Time) ([]*Entity, error)
	// Removed returns all top-level entities marked removed.
	Removed(ctx context.Context) ([]*Entity, error)
	// Clear deletes every entity.
	Clear(ctx context.Context) error
}
