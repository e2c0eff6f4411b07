// Package scheduler polls Lidarr's wanted list on an interval, caches it for
// the API, and feeds the download queue when auto-download is on.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/queue"
)

// MissingLister is the slice of the Lidarr client the scheduler needs.
type MissingLister interface {
	MissingAlbums(ctx context.Context) ([]*lidarr.Album, error)
}

// Enqueuer accepts albums into the download queue.
type Enqueuer interface {
	Enqueue(albumID int64, artist, title string) (int, error)
}

// Scheduler periodically syncs the missing list. One tick's failure is
// logged and retried on the next tick.
type Scheduler struct {
	lidarr MissingLister
	queue  Enqueuer
	log    *slog.Logger
	reset  chan struct{}

	mu           sync.Mutex
	interval     time.Duration
	autoDownload bool
	missing      []*lidarr.Album
	lastSync     time.Time
}

// New creates a scheduler.
func New(ls MissingLister, q Enqueuer, interval time.Duration, autoDownload bool, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		lidarr:       ls,
		queue:        q,
		log:          log.With("component", "scheduler"),
		reset:        make(chan struct{}, 1),
		interval:     interval,
		autoDownload: autoDownload,
	}
}

// Start polls immediately, then on the configured interval, until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("scheduler started", "interval", s.Interval(), "auto_download", s.AutoDownload())

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-s.reset:
			ticker.Reset(s.Interval())
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick syncs the missing list and enqueues wanted albums.
func (s *Scheduler) tick(ctx context.Context) {
	albums, err := s.lidarr.MissingAlbums(ctx)
	if err != nil {
		s.log.Error("missing sync failed", "error", err)
		return
	}

	s.mu.Lock()
	s.missing = albums
	s.lastSync = time.Now()
	auto := s.autoDownload
	s.mu.Unlock()

	s.log.Debug("missing synced", "count", len(albums), "auto_download", auto)
	if !auto {
		return
	}

	for _, album := range albums {
		if album.MissingTracks() <= 0 {
			continue
		}
		pos, err := s.queue.Enqueue(album.ID, album.Artist.ArtistName, album.Title)
		switch {
		case errors.Is(err, queue.ErrDuplicate):
			// Already pending, active, or completed: single dedup path
		case err != nil:
			s.log.Error("enqueue failed", "album_id", album.ID, "error", err)
		default:
			s.log.Info("auto-enqueued", "album_id", album.ID, "artist", album.Artist.ArtistName, "title", album.Title, "position", pos)
		}
	}
}

// Missing returns the cached wanted list and when it was last synced.
func (s *Scheduler) Missing() ([]*lidarr.Album, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*lidarr.Album(nil), s.missing...), s.lastSync
}

// AutoDownload reports whether wanted albums are enqueued automatically.
func (s *Scheduler) AutoDownload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoDownload
}

// SetAutoDownload toggles automatic enqueueing at runtime.
func (s *Scheduler) SetAutoDownload(on bool) {
	s.mu.Lock()
	s.autoDownload = on
	s.mu.Unlock()
	s.log.Info("auto_download changed", "enabled", on)
}

// Interval returns the current poll interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the poll interval at runtime.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()

	select {
	case s.reset <- struct{}{}:
	default:
	}
	s.log.Info("interval changed", "interval", d)
}
