package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ymca/gcalsync/internal/storage"
)

const entityColumns = `id, class_id, title, location, instructor, sub_instructor, orig_instructor,
	description, time_of_day, dates, ts_start, ts_end, ts_until, parent_id, gcal_id, google_event,
	need_update, removed, hash`

// SQLiteRepository stores entities in the cache_entities table.
type SQLiteRepository struct {
	db *storage.DB
}

// NewSQLiteRepository creates a repository over an opened database.
func NewSQLiteRepository(db *storage.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var (
		e        Entity
		dates    string
		start    int64
		end      int64
		until    int64
		parentID sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.ClassID, &e.Title, &e.Location, &e.Instructor, &e.SubInstructor,
		&e.OrigInstructor, &e.Description, &e.TimeOfDay, &dates, &start, &end, &until, &parentID,
		&e.EventID, &e.EventSnapshot, &e.NeedsUpdate, &e.Removed, &e.Hash)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(dates), &e.Dates); err != nil {
		return nil, fmt.Errorf("decode dates of entity %d: %w", e.ID, err)
	}
	e.Start = time.Unix(start, 0).UTC()
	e.End = time.Unix(end, 0).UTC()
	e.Until = time.Unix(until, 0).UTC()
	e.ParentID = parentID.Int64
	return &e, nil
}

func (r *SQLiteRepository) queryEntities(ctx context.Context, query string, args ...any) ([]*Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Load implements Repository.
func (r *SQLiteRepository) Load(ctx context.Context, id int64) (*Entity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM cache_entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", id, err)
	}
	return e, nil
}

// FindByClassID implements Repository.
func (r *SQLiteRepository) FindByClassID(ctx context.Context, classID string) (*Entity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM cache_entities WHERE class_id = ? AND parent_id IS NULL ORDER BY id LIMIT 1`,
		classID)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find entity by class %s: %w", classID, err)
	}
	return e, nil
}

// Save implements Repository.
func (r *SQLiteRepository) Save(ctx context.Context, e *Entity) error {
	dates := e.Dates
	if dates == nil {
		dates = []string{}
	}
	encoded, err := json.Marshal(dates)
	if err != nil {
		return fmt.Errorf("encode dates: %w", err)
	}

	var parentID sql.NullInt64
	if e.ParentID != 0 {
		parentID = sql.NullInt64{Int64: e.ParentID, Valid: true}
	}

	args := []any{e.ClassID, e.Title, e.Location, e.Instructor, e.SubInstructor, e.OrigInstructor,
		e.Description, e.TimeOfDay, string(encoded), e.Start.Unix(), e.End.Unix(), e.until().Unix(), parentID,
		e.EventID, e.EventSnapshot, e.NeedsUpdate, e.Removed, e.Hash}

	if e.ID == 0 {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO cache_entities (class_id, title, location, instructor, sub_instructor,
				orig_instructor, description, time_of_day, dates, ts_start, ts_end, ts_until, parent_id,
				gcal_id, google_event, need_update, removed, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ClassID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ClassID, err)
		}
		e.ID = id
		return nil
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE cache_entities SET class_id = ?, title = ?, location = ?, instructor = ?,
			sub_instructor = ?, orig_instructor = ?, description = ?, time_of_day = ?, dates = ?,
			ts_start = ?, ts_end = ?, ts_until = ?, parent_id = ?, gcal_id = ?, google_event = ?,
			need_update = ?, removed = ?, hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, append(args, e.ID)...)
	if err != nil {
		return fmt.Errorf("update entity %d: %w", e.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Repository.
func (r *SQLiteRepository) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entities WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	return nil
}

// Children implements Repository.
func (r *SQLiteRepository) Children(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM cache_entities WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("find children of %d: %w", parentID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Active implements Repository.
func (r *SQLiteRepository) Active(ctx context.Context, start, end time.Time) ([]*Entity, error) {
	out, err := r.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM cache_entities
		WHERE parent_id IS NULL AND removed = 0 AND ts_start < ? AND ts_until > ?
		ORDER BY ts_start, id`, end.Unix(), start.Unix())
	if err != nil {
		return nil, fmt.Errorf("list active entities: %w", err)
	}
	return out, nil
}

// Removed implements Repository.
func (r *SQLiteRepository) Removed(ctx context.Context) ([]*Entity, error) {
	out, err := r.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM cache_entities WHERE parent_id IS NULL AND removed = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list removed entities: %w", err)
	}
	return out, nil
}

// Clear implements Repository.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cache_entities`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
