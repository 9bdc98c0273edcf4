package sync

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/ymca/gcalsync/internal/cache"
	calclient "github.com/ymca/gcalsync/internal/calendar"
	"github.com/ymca/gcalsync/internal/schedule"
	"github.com/ymca/gcalsync/internal/state"
	"github.com/ymca/gcalsync/internal/storage"
	"github.com/ymca/gcalsync/internal/translate"
)

var testNow = time.Date(2016, 5, 2, 0, 0, 0, 0, time.UTC)

// fakeCalendar records calls and fails on demand, keyed by event summary.
type fakeCalendar struct {
	calclient.CalendarClient
	inserted  []string
	updated   []string
	deleted   []string
	insertErr map[string]error
	updateErr map[string]error
	deleteErr map[string]error
	nextID    int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		insertErr: map[string]error{},
		updateErr: map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeCalendar) InsertEvent(_ context.Context, _ string, event *calendar.Event) (*calendar.Event, error) {
	if err := f.insertErr[event.Summary]; err != nil {
		return nil, err
	}
	f.nextID++
	f.inserted = append(f.inserted, event.Summary)
	out := *event
	out.Id = fmt.Sprintf("evt-%d", f.nextID)
	return &out, nil
}

func (f *fakeCalendar) UpdateEvent(_ context.Context, _, eventID string, event *calendar.Event) (*calendar.Event, error) {
	if err := f.updateErr[event.Summary]; err != nil {
		return nil, err
	}
	f.updated = append(f.updated, event.Summary)
	out := *event
	out.Id = eventID
	return &out, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _, eventID string) error {
	if err := f.deleteErr[eventID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

type staticResolver map[string]string

func (r staticResolver) ResolveCalendarID(_ context.Context, name string) (string, bool) {
	id, ok := r[name]
	return id, ok
}

type fakeCredentials struct {
	expired   bool
	refreshes int
	err       error
}

func (c *fakeCredentials) Expired() bool { return c.expired }

func (c *fakeCredentials) Refresh(context.Context) error {
	c.refreshes++
	if c.err != nil {
		return c.err
	}
	c.expired = false
	return nil
}

type fixture struct {
	repo     *cache.SQLiteRepository
	cursor   *schedule.Cursor
	wrapper  *Wrapper
	client   *fakeCalendar
	creds    *fakeCredentials
	syncer   *Syncer
	logs     *bytes.Buffer
	logger   *slog.Logger
	tr       *translate.Translator
	resolver staticResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		repo:     cache.NewSQLiteRepository(db),
		cursor:   schedule.NewCursor(state.NewMemoryStore(), schedule.WithClock(func() time.Time { return testNow })),
		client:   newFakeCalendar(),
		creds:    &fakeCredentials{},
		logs:     &bytes.Buffer{},
		resolver: staticResolver{"Andover": "cal-andover"},
	}
	f.logger = slog.New(slog.NewTextHandler(f.logs, nil))
	f.tr = translate.New(time.UTC, f.logger)
	f.wrapper = NewWrapper(f.cursor)
	f.syncer = NewSyncer(f.client, f.resolver, f.tr, f.repo, f.wrapper, f.creds, f.logger)
	return f
}

func (f *fixture) save(t *testing.T, e *cache.Entity) *cache.Entity {
	t.Helper()
	require.NoError(t, f.repo.Save(context.Background(), e))
	return e
}

// prepare loads the window and classifies the cache like a real pass.
func (f *fixture) prepare(t *testing.T) Batch {
	t.Helper()
	ctx := context.Background()
	window, err := f.wrapper.LoadTimeFrame(ctx)
	require.NoError(t, err)
	batch, err := BuildBatch(ctx, f.repo, window)
	require.NoError(t, err)
	f.wrapper.SetProxyData(batch)
	return batch
}

func (f *fixture) current(t *testing.T) int {
	t.Helper()
	s, err := f.cursor.Schedule(context.Background())
	require.NoError(t, err)
	return s.Current
}

func class(classID, title string) *cache.Entity {
	return &cache.Entity{
		ClassID:   classID,
		Title:     title,
		Location:  "Andover",
		TimeOfDay: "5:30am-6:30am",
		Dates:     []string{"2016-05-02"},
		Start:     time.Date(2016, 5, 2, 5, 30, 0, 0, time.UTC),
		End:       time.Date(2016, 5, 2, 6, 30, 0, 0, time.UTC),
	}
}
