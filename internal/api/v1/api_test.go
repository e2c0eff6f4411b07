package v1

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lidagrab/lidagrab/internal/events"
	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/queue"
	"github.com/lidagrab/lidagrab/internal/scheduler"
)

type stubLidarr struct {
	albums    map[int64]*lidarr.Album
	albumErr  error
	status    *lidarr.SystemStatus
	statusErr error
}

func (s *stubLidarr) Album(ctx context.Context, id int64) (*lidarr.Album, error) {
	if s.albumErr != nil {
		return nil, s.albumErr
	}
	album, ok := s.albums[id]
	if !ok {
		return nil, fmt.Errorf("album/%d: %w", id, lidarr.ErrNotFound)
	}
	return album, nil
}

func (s *stubLidarr) SystemStatus(ctx context.Context) (*lidarr.SystemStatus, error) {
	return s.status, s.statusErr
}

type stubLister struct {
	albums []*lidarr.Album
}

func (s *stubLister) MissingAlbums(ctx context.Context) ([]*lidarr.Album, error) {
	return s.albums, nil
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			album_id INTEGER NOT NULL,
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			degraded INTEGER NOT NULL DEFAULT 0,
			completed_at TIMESTAMP NOT NULL
		);
		CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id INTEGER NOT NULL,
			payload TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`)
	require.NoError(t, err)
	return db
}

func testAlbum(id int64, artist, title string) *lidarr.Album {
	return &lidarr.Album{
		ID:     id,
		Title:  title,
		Artist: lidarr.Artist{ArtistName: artist},
		Statistics: lidarr.Statistics{
			TrackCount: 10,
		},
	}
}

type testEnv struct {
	srv     *httptest.Server
	api     *Server
	engine  *queue.Engine
	history *queue.HistoryStore
	lidarr  *stubLidarr
}

// newTestEnv wires an API server with a real engine (no worker running, so
// enqueued items stay pending) and in-memory stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testDB(t)
	history := queue.NewHistoryStore(db)
	engine := queue.NewEngine(nil, history, nil, nil)
	lc := &stubLidarr{
		albums: map[int64]*lidarr.Album{
			1: testAlbum(1, "The Beatles", "Abbey Road"),
			2: testAlbum(2, "Pink Floyd", "Animals"),
		},
		status: &lidarr.SystemStatus{Version: "2.13.3"},
	}

	api := New(engine, history, "0.1.0")
	api.SetLidarr(lc)
	api.SetEventLog(events.NewEventLog(db))

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, api: api, engine: engine, history: history, lidarr: lc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func TestGetQueue_Empty(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/queue", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap queue.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Pending)
	assert.Empty(t, snap.History)
}

func TestAddToQueue(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created enqueueResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, int64(1), created.AlbumID)
	assert.Equal(t, "The Beatles", created.Artist)
	assert.Equal(t, 1, created.Position)

	// Same album again: conflict, position reported
	resp, body = env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var dup enqueueResponse
	require.NoError(t, json.Unmarshal(body, &dup))
	assert.Equal(t, 1, dup.Position)
	assert.Contains(t, dup.Detail, "already queued")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	snap := env.engine.Snapshot()
	require.Len(t, snap.Pending, 2)
}

func TestAddToQueue_Errors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 99})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env.lidarr.albumErr = fmt.Errorf("wanted/missing: %w", lidarr.ErrUnavailable)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 1})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAddToQueue_NoLidarrConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.api.lidarr = nil

	resp, _ := env.do(t, http.MethodPost, "/api/v1/queue", enqueueRequest{AlbumID: 1})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRemoveFromQueue(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.Enqueue(1, "The Beatles", "Abbey Road")
	require.NoError(t, err)
	id := env.engine.Snapshot().Pending[0].ID

	resp, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/queue/%d", id), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, env.engine.Snapshot().Pending)

	// Unknown IDs are idempotent no-ops
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/queue/999", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/queue/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveInQueue(t *testing.T) {
	env := newTestEnv(t)

	for i := int64(1); i <= 3; i++ {
		_, err := env.engine.Enqueue(i, "artist", fmt.Sprintf("album %d", i))
		require.NoError(t, err)
	}
	last := env.engine.Snapshot().Pending[2]

	resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/queue/%d/move", last.ID), moveRequest{Position: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap queue.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	require.Len(t, snap.Pending, 3)
	assert.Equal(t, last.ID, snap.Pending[0].ID)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/queue/999/move", moveRequest{Position: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/queue/%d/move", last.ID), moveRequest{Position: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListHistory(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.history.Append(&queue.Record{AlbumID: 1, Artist: "a", Title: "x", Outcome: queue.OutcomeCompleted}))
	require.NoError(t, env.history.Append(&queue.Record{AlbumID: 2, Artist: "b", Title: "y", Outcome: queue.OutcomeFailed, Error: "boom"}))

	resp, body := env.do(t, http.MethodGet, "/api/v1/history?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []queue.Record
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.Equal(t, queue.OutcomeFailed, records[0].Outcome)
	assert.Equal(t, "boom", records[0].Error)
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []eventResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list)

	env.api.SetEventLog(nil)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetMissing(t *testing.T) {
	env := newTestEnv(t)

	album := testAlbum(5, "Can", "Future Days")
	album.Statistics.TrackFileCount = 7
	sched := scheduler.New(&stubLister{albums: []*lidarr.Album{album}}, env.engine, time.Hour, false, nil)
	env.api.SetScheduler(sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sched.Start(ctx) }()

	require.Eventually(t, func() bool {
		albums, _ := sched.Missing()
		return len(albums) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, body := env.do(t, http.MethodGet, "/api/v1/missing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var missing missingResponse
	require.NoError(t, json.Unmarshal(body, &missing))
	require.Len(t, missing.Albums, 1)
	assert.Equal(t, "Can", missing.Albums[0].Artist)
	assert.Equal(t, 3, missing.Albums[0].MissingTracks)
	assert.False(t, missing.Albums[0].Queued)
	assert.NotEmpty(t, missing.LastSync)
}

func TestMissing_NoScheduler(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/missing", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	sched := scheduler.New(&stubLister{}, env.engine, 30*time.Minute, false, nil)
	env.api.SetScheduler(sched)

	resp, body := env.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var settings settingsResponse
	require.NoError(t, json.Unmarshal(body, &settings))
	assert.False(t, settings.AutoDownload)
	assert.Equal(t, "30m0s", settings.Interval)

	auto := true
	interval := "15m"
	resp, body = env.do(t, http.MethodPut, "/api/v1/settings", settingsRequest{AutoDownload: &auto, Interval: &interval})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.Unmarshal(body, &settings))
	assert.True(t, settings.AutoDownload)
	assert.Equal(t, "15m0s", settings.Interval)
	assert.True(t, sched.AutoDownload())

	bad := "nonsense"
	resp, _ = env.do(t, http.MethodPut, "/api/v1/settings", settingsRequest{Interval: &bad})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "0.1.0", status.Version)
	assert.Equal(t, "ok", status.Lidarr)
	assert.Equal(t, "2.13.3", status.LidarrVersion)

	env.lidarr.statusErr = fmt.Errorf("system/status: %w", lidarr.ErrUnavailable)
	resp, body = env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "unreachable", status.Lidarr)

	env.api.lidarr = nil
	resp, body = env.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "not configured", status.Lidarr)
}
