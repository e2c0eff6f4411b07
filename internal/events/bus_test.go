package events

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)
	return db
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(nil, nil)
	t.Cleanup(func() { _ = bus.Close() })

	ch := bus.Subscribe(EventDownloadStarted, 4)

	evt := &DownloadStarted{
		BaseEvent: NewBaseEvent(EventDownloadStarted, EntityItem, 1),
		ItemID:    1,
		Artist:    "The Beatles",
		Title:     "Abbey Road",
	}
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case got := <-ch:
		started, ok := got.(*DownloadStarted)
		require.True(t, ok)
		assert.Equal(t, "Abbey Road", started.Title)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus(nil, nil)
	t.Cleanup(func() { _ = bus.Close() })

	failedCh := bus.Subscribe(EventDownloadFailed, 4)

	require.NoError(t, bus.Publish(context.Background(), &DownloadStarted{
		BaseEvent: NewBaseEvent(EventDownloadStarted, EntityItem, 1),
	}))

	select {
	case e := <-failedCh:
		t.Fatalf("unexpected event %s", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(nil, nil)
	t.Cleanup(func() { _ = bus.Close() })

	all := bus.SubscribeAll(4)

	require.NoError(t, bus.Publish(context.Background(), &ItemEnqueued{
		BaseEvent: NewBaseEvent(EventItemEnqueued, EntityItem, 2),
		Position:  1,
	}))
	require.NoError(t, bus.Publish(context.Background(), &DownloadCancelled{
		BaseEvent: NewBaseEvent(EventDownloadCancelled, EntityItem, 2),
	}))

	types := []string{(<-all).EventType(), (<-all).EventType()}
	assert.Equal(t, []string{EventItemEnqueued, EventDownloadCancelled}, types)
}

func TestBus_DropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus(nil, nil)
	t.Cleanup(func() { _ = bus.Close() })

	ch := bus.Subscribe(EventDownloadProgressed, 1)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), &DownloadProgressed{
			BaseEvent: NewBaseEvent(EventDownloadProgressed, EntityItem, 1),
			Percent:   float64(i * 20),
		}))
	}

	// Buffer of one: only the first event survives; publishing never blocked.
	first := <-ch
	assert.Equal(t, 0.0, first.(*DownloadProgressed).Percent)
	select {
	case e := <-ch:
		t.Fatalf("expected remaining events dropped, got %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(nil, nil)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close()) // idempotent

	assert.NoError(t, bus.Publish(context.Background(), &ItemRemoved{
		BaseEvent: NewBaseEvent(EventItemRemoved, EntityItem, 3),
	}))
}

func TestBus_PersistsToEventLog(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)
	bus := NewBus(log, nil)
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, bus.Publish(context.Background(), &DownloadCompleted{
		BaseEvent: NewBaseEvent(EventDownloadCompleted, EntityItem, 7),
		ItemID:    7,
		Path:      "/music/The Beatles/Abbey Road",
	}))

	stored, err := log.Since(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, EventDownloadCompleted, stored[0].EventType)
	assert.Equal(t, int64(7), stored[0].EntityID)
	assert.Contains(t, stored[0].Payload, "Abbey Road")
}

func TestEventLog_ForEntityAndPrune(t *testing.T) {
	db := setupTestDB(t)
	log := NewEventLog(db)

	_, err := log.Append(&DownloadStarted{BaseEvent: NewBaseEvent(EventDownloadStarted, EntityItem, 1)})
	require.NoError(t, err)
	_, err = log.Append(&DownloadStarted{BaseEvent: NewBaseEvent(EventDownloadStarted, EntityItem, 2)})
	require.NoError(t, err)

	forOne, err := log.ForEntity(EntityItem, 1)
	require.NoError(t, err)
	require.Len(t, forOne, 1)

	pruned, err := log.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)
}
