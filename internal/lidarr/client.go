// Package lidarr is a thin REST client for the Lidarr music manager.
package lidarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for the lidarr package.
var (
	// ErrUnavailable is returned when Lidarr cannot be reached or rejects
	// the API key. Callers surface the owning item as failed rather than
	// retrying indefinitely.
	ErrUnavailable = errors.New("lidarr unavailable")

	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found in lidarr")
)

// Album is a Lidarr album descriptor.
type Album struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	ForeignAlbumID string     `json:"foreignAlbumId"`
	ReleaseDate    string     `json:"releaseDate"`
	Artist         Artist     `json:"artist"`
	Releases       []Release  `json:"releases"`
	Images         []Image    `json:"images"`
	Statistics     Statistics `json:"statistics"`
	Tracks         []Track    `json:"tracks"`
}

// Artist identifies the album artist.
type Artist struct {
	ID              int64  `json:"id"`
	ArtistName      string `json:"artistName"`
	ForeignArtistID string `json:"foreignArtistId"`
	Path            string `json:"path"`
}

// Release carries MusicBrainz release identifiers used for tagging.
type Release struct {
	ForeignReleaseID string   `json:"foreignReleaseId"`
	Country          []string `json:"country"`
	Label            []string `json:"label"`
	Barcode          string   `json:"barcode"`
}

// Image is album artwork metadata.
type Image struct {
	CoverType string `json:"coverType"`
	RemoteURL string `json:"remoteUrl"`
}

// Statistics holds track counts used to compute how many tracks are missing.
type Statistics struct {
	TrackCount     int `json:"trackCount"`
	TrackFileCount int `json:"trackFileCount"`
}

// Track is a single album track.
type Track struct {
	ID                  int64  `json:"id"`
	Title               string `json:"title"`
	TrackNumber         string `json:"trackNumber"`
	AbsoluteTrackNumber int    `json:"absoluteTrackNumber"`
	ForeignRecordingID  string `json:"foreignRecordingId"`
	HasFile             bool   `json:"hasFile"`
}

// MissingTracks returns how many tracks the album is missing on disk.
func (a *Album) MissingTracks() int {
	return a.Statistics.TrackCount - a.Statistics.TrackFileCount
}

// RootFolder is a Lidarr library root.
type RootFolder struct {
	Path string `json:"path"`
}

// SystemStatus identifies the Lidarr instance.
type SystemStatus struct {
	Version string `json:"version"`
}

// Client talks to the Lidarr v1 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Lidarr client.
func New(baseURL, apiKey string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.With("component", "lidarr"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MissingAlbums returns the current wanted/missing list, newest releases first.
func (c *Client) MissingAlbums(ctx context.Context) ([]*Album, error) {
	var resp struct {
		TotalRecords int      `json:"totalRecords"`
		Records      []*Album `json:"records"`
	}
	path := "wanted/missing?pageSize=500&sortKey=releaseDate&sortDirection=descending&includeArtist=true"
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	c.log.Debug("missing albums fetched", "count", len(resp.Records), "total", resp.TotalRecords)
	return resp.Records, nil
}

// Album fetches full album detail including tracks. Some Lidarr versions omit
// tracks from the album payload; fall back to the track endpoint in that case.
func (c *Client) Album(ctx context.Context, id int64) (*Album, error) {
	var album Album
	if err := c.get(ctx, fmt.Sprintf("album/%d", id), &album); err != nil {
		return nil, err
	}

	if len(album.Tracks) == 0 {
		var tracks []Track
		if err := c.get(ctx, fmt.Sprintf("track?albumId=%d", id), &tracks); err != nil {
			return nil, err
		}
		album.Tracks = tracks
	}

	return &album, nil
}

// RootFolders returns the configured library root folders.
func (c *Client) RootFolders(ctx context.Context) ([]RootFolder, error) {
	var folders []RootFolder
	if err := c.get(ctx, "rootFolder", &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// RescanFolders asks Lidarr to rescan the given directories for new files.
// The command is fire-and-queue on the Lidarr side; an accepted response is
// treated as success regardless of the eventual scan outcome.
func (c *Client) RescanFolders(ctx context.Context, folders []string) error {
	body := map[string]any{
		"name":    "RescanFolders",
		"folders": folders,
	}
	return c.post(ctx, "command", body, nil)
}

// SystemStatus fetches version info, used as a connection test.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.get(ctx, "system/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + "/api/v1/" + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: api key rejected (%d)", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, string(data))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
