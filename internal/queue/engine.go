package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lidagrab/lidagrab/internal/events"
	"github.com/lidagrab/lidagrab/internal/fetch"
)

// Runner processes one item end to end. *Pipeline is the production
// implementation.
type Runner interface {
	Run(ctx context.Context, item *Item, report func(Progress)) (*Result, error)
}

// Engine owns the queue: a FIFO pending list feeding a single active slot.
// All mutations are serialized behind one mutex; the worker goroutine
// started by Run is the only place downloads execute.
type Engine struct {
	mu        sync.Mutex
	nextID    int64
	pending   []*Item
	active    *Item
	cancel    context.CancelFunc // active session, nil when slot is free
	completed map[int64]bool     // album IDs finished this session

	runner  Runner
	history *HistoryStore
	bus     *events.Bus
	log     *slog.Logger
	wake    chan struct{}
}

// NewEngine creates the queue engine. history and bus may be nil in tests.
// When history is present, previously completed albums seed the duplicate
// check so a restart does not re-download them.
func NewEngine(runner Runner, history *HistoryStore, bus *events.Bus, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		completed: make(map[int64]bool),
		runner:    runner,
		history:   history,
		bus:       bus,
		log:       log.With("component", "queue"),
		wake:      make(chan struct{}, 1),
	}
	if history != nil {
		ids, err := history.CompletedAlbumIDs()
		if err != nil {
			e.log.Warn("loading completed albums failed", "error", err)
		} else {
			e.completed = ids
		}
	}
	return e
}

// Enqueue appends an album to the pending queue and returns its 1-based
// position. ErrDuplicate when the album is already pending, active, or
// completed this session.
func (e *Engine) Enqueue(albumID int64, artist, title string) (int, error) {
	e.mu.Lock()

	if pos, ok := e.positionOf(albumID); ok {
		e.mu.Unlock()
		return pos, fmt.Errorf("%w: album %d at position %d", ErrDuplicate, albumID, pos)
	}
	if e.active != nil && e.active.AlbumID == albumID {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: album %d is downloading", ErrDuplicate, albumID)
	}
	if e.completed[albumID] {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: album %d already completed", ErrDuplicate, albumID)
	}

	e.nextID++
	item := &Item{
		ID:         e.nextID,
		AlbumID:    albumID,
		Artist:     artist,
		Title:      title,
		EnqueuedAt: time.Now(),
		Status:     StatusPending,
	}
	e.pending = append(e.pending, item)
	pos := len(e.pending)
	e.mu.Unlock()

	e.log.Info("enqueued", "item_id", item.ID, "album_id", albumID, "artist", artist, "title", title, "position", pos)
	e.publish(&events.ItemEnqueued{
		BaseEvent: events.NewBaseEvent(events.EventItemEnqueued, events.EntityItem, item.ID),
		ItemID:    item.ID,
		AlbumID:   albumID,
		Artist:    artist,
		Title:     title,
		Position:  pos,
	})

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return pos, nil
}

// Remove takes an item out of the queue. Pending items are dropped with no
// side effects; the active item is cancelled. Unknown IDs are a no-op.
func (e *Engine) Remove(id int64) error {
	e.mu.Lock()
	for i, item := range e.pending {
		if item.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			albumID := item.AlbumID
			e.mu.Unlock()

			e.log.Info("removed pending item", "item_id", id, "album_id", albumID)
			e.publish(&events.ItemRemoved{
				BaseEvent: events.NewBaseEvent(events.EventItemRemoved, events.EntityItem, id),
				ItemID:    id,
				AlbumID:   albumID,
			})
			return nil
		}
	}
	e.mu.Unlock()
	return e.Cancel(id)
}

// Cancel stops the active item if it matches id and is still downloading.
// Once fetching succeeded the item runs to completion. Idempotent: unknown
// or already-terminal IDs are a no-op.
func (e *Engine) Cancel(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil || e.active.ID != id {
		return nil
	}
	if e.active.Status != StatusDownloading || e.cancel == nil {
		return nil
	}

	e.log.Info("cancelling active item", "item_id", id, "album_id", e.active.AlbumID)
	e.cancel()
	return nil
}

// Reorder moves a pending item to a 1-based position, clamped to the list
// bounds. The active item cannot be reordered.
func (e *Engine) Reorder(id int64, position int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil && e.active.ID == id {
		return fmt.Errorf("item %d: %w", id, ErrNotPending)
	}

	idx := -1
	for i, item := range e.pending {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	item := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)

	if position < 1 {
		position = 1
	}
	if position > len(e.pending)+1 {
		position = len(e.pending) + 1
	}
	at := position - 1
	e.pending = append(e.pending[:at], append([]*Item{item}, e.pending[at:]...)...)

	e.log.Info("reordered", "item_id", id, "position", position)
	return nil
}

// Snapshot returns a consistent copy of the queue plus recent history.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	var active *Item
	if e.active != nil {
		copied := *e.active
		active = &copied
	}
	pending := make([]Item, len(e.pending))
	for i, item := range e.pending {
		pending[i] = *item
	}
	e.mu.Unlock()

	snap := Snapshot{Active: active, Pending: pending, History: []Record{}}
	if e.history != nil {
		records, err := e.history.Recent(20)
		if err != nil {
			e.log.Error("reading history failed", "error", err)
		} else if records != nil {
			snap.History = records
		}
	}
	return snap
}

// Run is the worker loop. It drains the pending queue one item at a time
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("queue engine started")
	for {
		select {
		case <-ctx.Done():
			e.log.Info("queue engine stopped")
			return ctx.Err()
		case <-e.wake:
		}

		for {
			item, sctx := e.pop(ctx)
			if item == nil {
				break
			}
			e.process(sctx, item)
		}
	}
}

// pop moves the FIFO head into the active slot and opens its session.
func (e *Engine) pop(ctx context.Context) (*Item, context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 || e.active != nil {
		return nil, nil
	}

	item := e.pending[0]
	e.pending = e.pending[1:]
	item.Status = StatusDownloading
	item.Progress = Progress{Stage: string(StatusDownloading)}
	e.active = item

	sctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	return item, sctx
}

// process drives one item through the pipeline and records its outcome.
func (e *Engine) process(sctx context.Context, item *Item) {
	e.publish(&events.DownloadStarted{
		BaseEvent: events.NewBaseEvent(events.EventDownloadStarted, events.EntityItem, item.ID),
		ItemID:    item.ID,
		Artist:    item.Artist,
		Title:     item.Title,
	})
	e.log.Info("download started", "item_id", item.ID, "album_id", item.AlbumID, "artist", item.Artist, "title", item.Title)

	snapshot := *item
	result, err := e.runner.Run(sctx, &snapshot, func(p Progress) {
		e.onProgress(item.ID, p)
	})

	e.finish(sctx, item, result, err)
}

// onProgress updates the active item's live progress and advances the item
// status when the pipeline enters its import phase.
func (e *Engine) onProgress(id int64, p Progress) {
	e.mu.Lock()
	if e.active == nil || e.active.ID != id {
		e.mu.Unlock()
		return
	}
	e.active.Progress = p
	if p.Stage == string(StatusImporting) && e.active.Status == StatusDownloading {
		// All tracks fetched; Cancel refuses non-downloading items from here on.
		e.advance(e.active, StatusTagging)
		e.advance(e.active, StatusImporting)
	}
	e.mu.Unlock()

	e.publish(&events.DownloadProgressed{
		BaseEvent: events.NewBaseEvent(events.EventDownloadProgressed, events.EntityItem, id),
		ItemID:    id,
		Percent:   p.Percent,
		Speed:     p.Speed,
		Track:     p.Track,
		Tracks:    p.Tracks,
	})
}

// advance applies a status transition, logging instead of panicking when
// the transition table rejects it.
func (e *Engine) advance(item *Item, to Status) {
	if !item.Status.CanTransitionTo(to) {
		e.log.Error("invalid status transition", "item_id", item.ID, "from", item.Status, "to", to)
		return
	}
	item.Status = to
}

// finish classifies the pipeline outcome, frees the active slot, and writes
// the history record.
func (e *Engine) finish(sctx context.Context, item *Item, result *Result, err error) {
	e.mu.Lock()

	cancelled := errors.Is(err, fetch.ErrCancelled) || (err != nil && sctx.Err() != nil)

	record := Record{
		AlbumID:     item.AlbumID,
		Artist:      item.Artist,
		Title:       item.Title,
		CompletedAt: time.Now(),
	}
	switch {
	case err == nil:
		e.advance(item, StatusCompleted)
		record.Outcome = OutcomeCompleted
		record.Degraded = result != nil && result.Degraded
		e.completed[item.AlbumID] = true
	case cancelled:
		e.advance(item, StatusCancelled)
		record.Outcome = OutcomeCancelled
	default:
		e.advance(item, StatusFailed)
		record.Outcome = OutcomeFailed
		record.Error = err.Error()
	}

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.active = nil
	e.mu.Unlock()

	if e.history != nil {
		if herr := e.history.Append(&record); herr != nil {
			e.log.Error("writing history failed", "item_id", item.ID, "error", herr)
		}
	}

	switch record.Outcome {
	case OutcomeCompleted:
		path := ""
		if result != nil {
			path = result.AlbumDir
		}
		e.log.Info("download completed", "item_id", item.ID, "album_id", item.AlbumID, "path", path, "degraded", record.Degraded)
		e.publish(&events.DownloadCompleted{
			BaseEvent: events.NewBaseEvent(events.EventDownloadCompleted, events.EntityItem, item.ID),
			ItemID:    item.ID,
			Artist:    item.Artist,
			Title:     item.Title,
			Path:      path,
			Degraded:  record.Degraded,
		})
		if result != nil {
			e.publish(&events.ImportTriggered{
				BaseEvent: events.NewBaseEvent(events.EventImportTriggered, events.EntityItem, item.ID),
				ItemID:    item.ID,
				Folder:    result.ArtistDir,
			})
		}
	case OutcomeCancelled:
		e.log.Info("download cancelled", "item_id", item.ID, "album_id", item.AlbumID)
		e.publish(&events.DownloadCancelled{
			BaseEvent: events.NewBaseEvent(events.EventDownloadCancelled, events.EntityItem, item.ID),
			ItemID:    item.ID,
			Artist:    item.Artist,
			Title:     item.Title,
		})
	default:
		e.log.Error("download failed", "item_id", item.ID, "album_id", item.AlbumID, "error", record.Error)
		e.publish(&events.DownloadFailed{
			BaseEvent: events.NewBaseEvent(events.EventDownloadFailed, events.EntityItem, item.ID),
			ItemID:    item.ID,
			Artist:    item.Artist,
			Title:     item.Title,
			Reason:    record.Error,
		})
	}
}

// IsQueued reports whether an album is pending, active, or completed this
// session. Callers that only need the duplicate check use this instead of
// a trial Enqueue.
func (e *Engine) IsQueued(albumID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.positionOf(albumID); ok {
		return true
	}
	if e.active != nil && e.active.AlbumID == albumID {
		return true
	}
	return e.completed[albumID]
}

// positionOf returns the 1-based pending position of an album. Caller holds
// the lock.
func (e *Engine) positionOf(albumID int64) (int, bool) {
	for i, item := range e.pending {
		if item.AlbumID == albumID {
			return i + 1, true
		}
	}
	return 0, false
}

func (e *Engine) publish(evt events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(context.Background(), evt)
}
