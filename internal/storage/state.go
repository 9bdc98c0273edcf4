package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// StateStore implements state.Store on top of the key_value table.
type StateStore struct {
	db *DB
}

// NewStateStore creates a StateStore.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// Get implements state.Store.
func (s *StateStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM key_value WHERE name = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read state %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode state %q: %w", key, err)
	}
	return true, nil
}

// Set stores value JSON-encoded under key, replacing any previous value.
func (s *StateStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO key_value (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, data)
	if err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM key_value WHERE name = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, err)
	}
	return nil
}
