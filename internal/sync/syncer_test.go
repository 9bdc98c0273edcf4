package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymca/gcalsync/internal/cache"
	calclient "github.com/ymca/gcalsync/internal/calendar"
)

func TestSyncer_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.save(t, class("1", "Zumba"))
	f.save(t, class("2", "Yoga"))

	f.prepare(t)
	report := f.syncer.Proceed(ctx)
	require.False(t, report.Aborted)
	assert.ElementsMatch(t, []string{"Zumba", "Yoga"}, f.client.inserted)

	// The same batch again: every entity now carries an event id.
	report = f.syncer.Proceed(ctx)
	require.False(t, report.Aborted)
	assert.Len(t, f.client.inserted, 2)

	// A freshly classified batch of the same window has nothing to insert.
	require.NoError(t, f.cursor.Reset(ctx))
	batch := f.prepare(t)
	assert.Empty(t, batch.Insert)
	f.syncer.Proceed(ctx)
	assert.Len(t, f.client.inserted, 2)

	e, err := f.repo.FindByClassID(ctx, "1")
	require.NoError(t, err)
	assert.NotEmpty(t, e.EventID)
	assert.Contains(t, e.EventSnapshot, `"summary":"Zumba"`)
	assert.False(t, e.NeedsUpdate)
}

func TestSyncer_RateLimitDuringUpdateStops(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := class("1", "Zumba")
	a.EventID, a.NeedsUpdate = "evt-a", true
	f.save(t, a)
	b := class("2", "Yoga")
	b.EventID, b.NeedsUpdate = "evt-b", true
	f.save(t, b)
	c := class("3", "Spin")
	c.EventID, c.Removed = "evt-c", true
	f.save(t, c)

	f.client.updateErr["Zumba"] = &calclient.RateLimitError{Op: "update event", Code: 403, Message: "Rate Limit Exceeded"}
	f.client.updateErr["Yoga"] = &calclient.RateLimitError{Op: "update event", Code: 403, Message: "Rate Limit Exceeded"}

	f.prepare(t)
	before := f.current(t)
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Aborted)
	assert.False(t, report.Advanced)
	assert.Equal(t, before, f.current(t))
	require.Len(t, report.Ops, 2)
	assert.Equal(t, OpUpdate, report.Ops[1].Op)
	assert.Equal(t, 1, report.Ops[1].Processed)
	assert.Zero(t, report.Ops[1].Succeeded)
	assert.Empty(t, f.client.deleted)

	_, err := f.repo.FindByClassID(ctx, "3")
	assert.NoError(t, err, "delete bucket must not run")
	assert.Contains(t, f.logs.String(), "rate limit")
}

func TestSyncer_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.save(t, class("A", "Zumba"))
	f.save(t, class("B", "Yoga"))
	c := class("C", "Spin")
	c.EventID, c.Removed = "evt-c", true
	f.save(t, c)
	child := class("C-1", "Spin")
	child.ParentID = c.ID
	f.save(t, child)

	f.client.insertErr["Yoga"] = &calclient.RemoteError{Op: "insert event", Code: 400, Message: "Invalid"}

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.False(t, report.Aborted)
	assert.True(t, report.Advanced)
	assert.Equal(t, 1, f.current(t))
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Ops, 3)
	assert.Equal(t, OpStats{Op: OpInsert, Items: 2, Processed: 2, Succeeded: 1, Elapsed: report.Ops[0].Elapsed}, report.Ops[0])
	assert.InDelta(t, 50.0, report.Ops[0].SuccessRate(), 0.001)
	assert.InDelta(t, 100.0, report.Ops[1].SuccessRate(), 0.001)
	assert.Equal(t, 1, report.Ops[2].Succeeded)

	a, err := f.repo.FindByClassID(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.IsPushed())

	b, err := f.repo.FindByClassID(ctx, "B")
	require.NoError(t, err)
	assert.False(t, b.IsPushed())

	_, err = f.repo.FindByClassID(ctx, "C")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = f.repo.Load(ctx, child.ID)
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, []string{"evt-c"}, f.client.deleted)

	assert.Contains(t, f.logs.String(), "Google service error")
	assert.Contains(t, f.logs.String(), "Sync stats")
}

func TestSyncer_DeleteOfMissingRemoteEventSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := class("C", "Spin")
	c.EventID, c.Removed = "evt-c", true
	f.save(t, c)
	f.client.deleteErr["evt-c"] = &calclient.RemoteError{Op: "delete event", Code: 410, Message: "Deleted"}

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.Equal(t, 1, report.Ops[2].Succeeded)
	_, err := f.repo.FindByClassID(ctx, "C")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestSyncer_SkipsNonWeeklyClass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	odd := class("1", "Zumba")
	odd.Dates = []string{"2016-05-02", "2016-05-05"}
	f.save(t, odd)
	f.save(t, class("2", "Yoga"))

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Advanced)
	assert.Equal(t, []string{"Yoga"}, f.client.inserted)
	assert.Equal(t, 1, report.Ops[0].Succeeded)
	assert.Contains(t, f.logs.String(), "does not repeat weekly")
}

func TestSyncer_UnknownLocationSkipsItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e := class("1", "Zumba")
	e.Location = "Nowhere"
	f.save(t, e)

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Advanced)
	assert.Empty(t, f.client.inserted)
	assert.Contains(t, f.logs.String(), "no calendar for location")
}

func TestSyncer_RefreshesExpiredCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.save(t, class("1", "Zumba"))
	f.creds.expired = true

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Advanced)
	assert.Equal(t, 1, f.creds.refreshes)
	assert.Equal(t, []string{"Zumba"}, f.client.inserted)
}

func TestSyncer_RefreshFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.save(t, class("1", "Zumba"))
	f.creds.expired = true
	f.creds.err = errors.New("invalid_grant")

	f.prepare(t)
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Aborted)
	assert.Equal(t, 0, f.current(t))
	assert.Empty(t, f.client.inserted)
}

func TestSyncer_CancelledContextAborts(t *testing.T) {
	f := newFixture(t)
	f.save(t, class("1", "Zumba"))
	f.prepare(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := f.syncer.Proceed(ctx)

	assert.True(t, report.Aborted)
	assert.Empty(t, f.client.inserted)
}
