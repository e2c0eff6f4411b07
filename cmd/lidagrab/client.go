package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps HTTP calls to the lidagrab server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new lidagrab API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) post(path string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) put(path string, body any, result any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// API response types (mirror server types)

type ProgressResponse struct {
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed"`
	Stage   string  `json:"stage"`
	Track   int     `json:"track"`
	Tracks  int     `json:"tracks"`
}

type ItemResponse struct {
	ID         int64            `json:"id"`
	AlbumID    int64            `json:"album_id"`
	Artist     string           `json:"artist"`
	Title      string           `json:"title"`
	EnqueuedAt string           `json:"enqueued_at"`
	Status     string           `json:"status"`
	Progress   ProgressResponse `json:"progress"`
}

type HistoryRecord struct {
	ID          int64  `json:"id"`
	AlbumID     int64  `json:"album_id"`
	Artist      string `json:"artist"`
	Title       string `json:"title"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
	Degraded    bool   `json:"degraded"`
	CompletedAt string `json:"completed_at"`
}

type QueueResponse struct {
	Active  *ItemResponse   `json:"active,omitempty"`
	Pending []ItemResponse  `json:"pending"`
	History []HistoryRecord `json:"history"`
}

type EnqueueResponse struct {
	AlbumID  int64  `json:"album_id"`
	Artist   string `json:"artist,omitempty"`
	Title    string `json:"title,omitempty"`
	Position int    `json:"position"`
	Detail   string `json:"detail,omitempty"`
}

type MissingAlbum struct {
	ID            int64  `json:"id"`
	Artist        string `json:"artist"`
	Title         string `json:"title"`
	ReleaseDate   string `json:"release_date,omitempty"`
	MissingTracks int    `json:"missing_tracks"`
	Queued        bool   `json:"queued"`
}

type MissingResponse struct {
	Albums   []MissingAlbum `json:"albums"`
	LastSync string         `json:"last_sync,omitempty"`
}

type StatusResponse struct {
	Version       string `json:"version"`
	Lidarr        string `json:"lidarr"`
	LidarrVersion string `json:"lidarr_version,omitempty"`
}

// Queue returns the live queue snapshot.
func (c *Client) Queue() (*QueueResponse, error) {
	var q QueueResponse
	if err := c.get("/api/v1/queue", &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Enqueue adds an album to the download queue.
func (c *Client) Enqueue(albumID int64) (*EnqueueResponse, error) {
	var resp EnqueueResponse
	if err := c.post("/api/v1/queue", map[string]int64{"album_id": albumID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove deletes a queue item, cancelling it if active.
func (c *Client) Remove(id int64) error {
	return c.delete(fmt.Sprintf("/api/v1/queue/%d", id))
}

// Move reorders a pending queue item.
func (c *Client) Move(id int64, position int) (*QueueResponse, error) {
	var q QueueResponse
	if err := c.post(fmt.Sprintf("/api/v1/queue/%d/move", id), map[string]int{"position": position}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// History returns recent download outcomes.
func (c *Client) History(limit int) ([]HistoryRecord, error) {
	var records []HistoryRecord
	if err := c.get(fmt.Sprintf("/api/v1/history?limit=%d", limit), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Missing returns the cached wanted list.
func (c *Client) Missing() (*MissingResponse, error) {
	var m MissingResponse
	if err := c.get("/api/v1/missing", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Status returns daemon and Lidarr health.
func (c *Client) Status() (*StatusResponse, error) {
	var s StatusResponse
	if err := c.get("/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}
