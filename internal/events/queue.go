package events

// Entity types
const (
	EntityItem  = "item"  // a queue item
	EntityAlbum = "album" // a Lidarr album
)

// Event type constants
const (
	EventItemEnqueued       = "queue.item.enqueued"
	EventItemRemoved        = "queue.item.removed"
	EventDownloadStarted    = "download.started"
	EventDownloadProgressed = "download.progressed"
	EventDownloadCompleted  = "download.completed"
	EventDownloadFailed     = "download.failed"
	EventDownloadCancelled  = "download.cancelled"
	EventImportTriggered    = "import.triggered"
)

// ItemEnqueued is emitted when an album enters the pending queue.
type ItemEnqueued struct {
	BaseEvent
	ItemID   int64  `json:"item_id"`
	AlbumID  int64  `json:"album_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// ItemRemoved is emitted when a pending item is removed before processing.
type ItemRemoved struct {
	BaseEvent
	ItemID  int64 `json:"item_id"`
	AlbumID int64 `json:"album_id"`
}

// DownloadStarted is emitted when the engine picks an item into the active slot.
type DownloadStarted struct {
	BaseEvent
	ItemID int64  `json:"item_id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// DownloadProgressed is emitted periodically with fetch progress.
type DownloadProgressed struct {
	BaseEvent
	ItemID  int64   `json:"item_id"`
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed"`
	Track   int     `json:"track"`
	Tracks  int     `json:"tracks"`
}

// DownloadCompleted is emitted when an item finishes successfully.
// Degraded marks a tagging failure that did not abort the pipeline.
type DownloadCompleted struct {
	BaseEvent
	ItemID   int64  `json:"item_id"`
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	Degraded bool   `json:"degraded"`
}

// DownloadFailed is emitted when an item terminates as failed.
type DownloadFailed struct {
	BaseEvent
	ItemID int64  `json:"item_id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// DownloadCancelled is emitted when the user cancels the active item.
type DownloadCancelled struct {
	BaseEvent
	ItemID int64  `json:"item_id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// ImportTriggered is emitted after the manager rescan command was sent.
type ImportTriggered struct {
	BaseEvent
	ItemID int64  `json:"item_id"`
	Folder string `json:"folder"`
}
