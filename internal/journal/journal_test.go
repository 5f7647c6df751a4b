package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/fleet-core/internal/infrastructure/database"
	"github.com/nerrad567/fleet-core/migrations"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background(), migrations.FS))
	return NewSQLiteRepository(db.DB)
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(id string, sev events.Severity, offset time.Duration) events.Event {
	return events.Event{
		ID:        id,
		Severity:  sev,
		Message:   "message " + id,
		Timestamp: base.Add(offset),
	}
}

// ─── Repository ─────────────────────────────────────────────────────

func TestAppendAndList(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	ev := event("a", events.SeveritySuccess, 0)
	ev.Data = map[string]any{"id": "SENSOR-AB12", "gpio": float64(2)}
	require.NoError(t, repo.Append(ctx, ev))
	require.NoError(t, repo.Append(ctx, event("b", events.SeverityWarning, time.Second)))
	require.NoError(t, repo.Append(ctx, event("c", events.SeverityInfo, 2*time.Second)))

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 50, res.Limit)
	require.Len(t, res.Events, 3)

	assert.Equal(t, "c", res.Events[0].ID)
	assert.Equal(t, "a", res.Events[2].ID)
	assert.Equal(t, ev.Data, res.Events[2].Data)
	assert.True(t, res.Events[2].Timestamp.Equal(ev.Timestamp))
}

func TestAppend_DuplicateIgnored(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, event("a", events.SeverityInfo, 0)))
	require.NoError(t, repo.Append(ctx, event("a", events.SeverityInfo, 0)))

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestAppend_RequiresID(t *testing.T) {
	repo := openRepo(t)
	assert.Error(t, repo.Append(context.Background(), events.Event{Message: "x"}))
}

func TestList_Filters(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	for i, sev := range []events.Severity{
		events.SeverityInfo, events.SeverityError, events.SeverityInfo, events.SeverityError,
	} {
		require.NoError(t, repo.Append(ctx, event(string(rune('a'+i)), sev, time.Duration(i)*time.Minute)))
	}

	res, err := repo.List(ctx, Filter{Severity: events.SeverityError})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "d", res.Events[0].ID)

	res, err = repo.List(ctx, Filter{Since: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = repo.List(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "c", res.Events[0].ID)

	res, err = repo.List(ctx, Filter{Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, res.Limit)
	assert.Equal(t, 0, res.Offset)
}

func TestList_Empty(t *testing.T) {
	repo := openRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
}

// ─── Writer ─────────────────────────────────────────────────────────

func TestWriter_JournalsBusEvents(t *testing.T) {
	repo := openRepo(t)
	bus := events.NewBus(16)
	defer bus.Close()

	log := events.NewLog(10)
	log.SetBus(bus)

	w := NewWriter(repo, bus)
	w.Start(context.Background())
	defer w.Stop()

	log.Record(events.SeveritySuccess, "New sensor connected: ESP32-IOT-SENSOR-AB12", nil)
	log.Record(events.SeverityWarning, "Device offline: SENSOR-AB12", nil)

	require.Eventually(t, func() bool { return w.Written() == 2 }, 2*time.Second, 10*time.Millisecond)

	res, err := repo.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "Device offline: SENSOR-AB12", res.Events[0].Message)
}

func TestWriter_StopIdempotent(t *testing.T) {
	repo := openRepo(t)
	bus := events.NewBus(4)
	defer bus.Close()

	w := NewWriter(repo, bus)
	w.Start(context.Background())
	w.Stop()
	w.Stop()

	// Publishing after Stop must not block.
	for i := 0; i < 10; i++ {
		bus.Publish(events.TopicEvent, events.Event{ID: "x"})
	}
	assert.Zero(t, w.Written())
}

func TestWriter_StopsOnContextCancel(t *testing.T) {
	repo := openRepo(t)
	bus := events.NewBus(4)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWriter(repo, bus)
	w.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.stopped
	}, time.Second, 5*time.Millisecond)
	w.Stop()
}

// stallingRepo blocks every Append until release is closed.
type stallingRepo struct {
	release chan struct{}

	mu       sync.Mutex
	appended int
}

func (r *stallingRepo) Append(ctx context.Context, _ events.Event) error {
	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	r.appended++
	r.mu.Unlock()
	return nil
}

func (r *stallingRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{Events: []events.Event{}}, nil
}

func TestWriter_StalledInsertDoesNotBlockRecord(t *testing.T) {
	repo := &stallingRepo{release: make(chan struct{})}
	bus := events.NewBus(4)
	defer bus.Close()

	log := events.NewLog(10)
	log.SetBus(bus)

	w := NewWriter(repo, bus)
	w.queue = make(chan events.Event, 2)
	w.Start(context.Background())
	defer w.Stop()
	defer close(repo.release)

	recorded := make(chan struct{})
	go func() {
		defer close(recorded)
		for i := 0; i < 100; i++ {
			log.Record(events.SeverityInfo, fmt.Sprintf("event %d", i), nil)
		}
	}()

	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked behind a stalled journal insert")
	}

	require.Eventually(t, func() bool { return w.Dropped() > 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, w.Written())
	assert.Equal(t, 10, log.Len())
}
