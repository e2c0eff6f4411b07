// Package queue is the download orchestration engine: a FIFO pending queue
// feeding a single active slot, with live progress, cancellation, and an
// append-only history ledger.
package queue

import "time"

// Progress is the live state of the active item. It is only meaningful
// while the item holds the active slot.
type Progress struct {
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed"`
	Stage   string  `json:"stage"` // downloading, tagging, importing
	Track   int     `json:"track"` // 1-based index of the track in flight
	Tracks  int     `json:"tracks"`
}

// Item is one queued album.
type Item struct {
	ID         int64     `json:"id"`
	AlbumID    int64     `json:"album_id"`
	Artist     string    `json:"artist"`
	Title      string    `json:"title"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Status     Status    `json:"status"`
	Progress   Progress  `json:"progress"`
}

// Snapshot is a consistent view of the whole queue, taken under the
// engine lock. All slices and the active item are copies.
type Snapshot struct {
	Active  *Item    `json:"active,omitempty"`
	Pending []Item   `json:"pending"`
	History []Record `json:"history"`
}
