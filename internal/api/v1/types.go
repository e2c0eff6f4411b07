package v1

type enqueueRequest struct {
	AlbumID int64 `json:"album_id"`
}

type enqueueResponse struct {
	AlbumID  int64  `json:"album_id"`
	Artist   string `json:"artist,omitempty"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
	Detail   string `json:"detail,omitempty"`
}

type moveRequest struct {
	Position int `json:"position"`
}

type eventResponse struct {
	ID         int64  `json:"id"`
	EventType  string `json:"event_type"`
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	OccurredAt string `json:"occurred_at"`
}

type missingAlbum struct {
	ID            int64  `json:"id"`
	Artist        string `json:"artist"`
	Title         string `json:"title"`
	ReleaseDate   string `json:"release_date,omitempty"`
	MissingTracks int    `json:"missing_tracks"`
	Queued        bool   `json:"queued"`
}

type missingResponse struct {
	Albums   []missingAlbum `json:"albums"`
	LastSync string         `json:"last_sync,omitempty"`
}

type settingsRequest struct {
	AutoDownload *bool   `json:"auto_download,omitempty"`
	Interval     *string `json:"interval,omitempty"`
}

type settingsResponse struct {
	AutoDownload bool   `json:"auto_download"`
	Interval     string `json:"interval"`
}

type statusResponse struct {
	Version       string `json:"version"`
	Lidarr        string `json:"lidarr"`
	LidarrVersion string `json:"lidarr_version,omitempty"`
}
