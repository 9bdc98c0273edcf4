package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GCALSYNC_TOKEN_PATH", filepath.Join(dir, "token.json"))
	t.Setenv("GOOGLE_CREDENTIALS_PATH", filepath.Join(dir, "credentials.json"))
	t.Setenv("GCALSYNC_LOG_FORMAT", "json")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCursorCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gcalsync.db")

	out, err := runCmd(t, "cursor", "--database", db)
	require.NoError(t, err)

	var cursor struct {
		Current int `json:"current"`
		Steps   int `json:"steps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cursor))
	assert.Equal(t, 0, cursor.Current)
	assert.Equal(t, 180, cursor.Steps)

	out, err = runCmd(t, "reset-cursor", "--database", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Schedule cursor removed.")
}

func TestClearCacheRequiresConfirmation(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gcalsync.db")

	_, err := runCmd(t, "clear-cache", "--database", db)
	require.Error(t, err)

	out, err := runCmd(t, "clear-cache", "--database", db, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared.")
}

func TestSyncWithoutCredentialsFails(t *testing.T) {
	db := filepath.Join(t.TempDir(), "gcalsync.db")

	_, err := runCmd(t, "sync", "--database", db)
	assert.Error(t, err)
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCmd(t, "cursor", "--config", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
