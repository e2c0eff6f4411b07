// Package v1 implements the native REST API.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lidagrab/lidagrab/internal/events"
	"github.com/lidagrab/lidagrab/internal/lidarr"
	"github.com/lidagrab/lidagrab/internal/queue"
	"github.com/lidagrab/lidagrab/internal/scheduler"
)

// LidarrClient is the slice of the Lidarr client the API needs.
type LidarrClient interface {
	Album(ctx context.Context, id int64) (*lidarr.Album, error)
	SystemStatus(ctx context.Context) (*lidarr.SystemStatus, error)
}

// Server is the v1 API server.
type Server struct {
	engine    *queue.Engine
	history   *queue.HistoryStore
	scheduler *scheduler.Scheduler
	lidarr    LidarrClient
	eventLog  *events.EventLog
	version   string
}

// New creates a new v1 API server.
func New(engine *queue.Engine, history *queue.HistoryStore, version string) *Server {
	return &Server{
		engine:  engine,
		history: history,
		version: version,
	}
}

// SetLidarr configures the Lidarr client used for enqueue lookups and the
// status probe.
func (s *Server) SetLidarr(client LidarrClient) {
	s.lidarr = client
}

// SetScheduler configures the scheduler backing the missing and settings
// endpoints.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
}

// SetEventLog configures the persisted event feed.
func (s *Server) SetEventLog(log *events.EventLog) {
	s.eventLog = log
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Queue
	mux.HandleFunc("GET /api/v1/queue", s.getQueue)
	mux.HandleFunc("POST /api/v1/queue", s.requireLidarr(s.addToQueue))
	mux.HandleFunc("DELETE /api/v1/queue/{id}", s.removeFromQueue)
	mux.HandleFunc("POST /api/v1/queue/{id}/move", s.moveInQueue)

	// History & events
	mux.HandleFunc("GET /api/v1/history", s.listHistory)
	mux.HandleFunc("GET /api/v1/events", s.listEvents)

	// Wanted list
	mux.HandleFunc("GET /api/v1/missing", s.requireScheduler(s.getMissing))

	// Settings & system
	mux.HandleFunc("GET /api/v1/settings", s.requireScheduler(s.getSettings))
	mux.HandleFunc("PUT /api/v1/settings", s.requireScheduler(s.putSettings))
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// pathID extracts an integer ID from the URL path.
func pathID(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	if idStr == "" {
		return 0, fmt.Errorf("missing path parameter: id")
	}
	return strconv.ParseInt(idStr, 10, 64)
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) addToQueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.AlbumID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ALBUM_ID", "album_id must be positive")
		return
	}

	album, err := s.lidarr.Album(r.Context(), req.AlbumID)
	switch {
	case errors.Is(err, lidarr.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("album %d not found", req.AlbumID))
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "LIDARR_ERROR", err.Error())
		return
	}

	pos, err := s.engine.Enqueue(album.ID, album.Artist.ArtistName, album.Title)
	if errors.Is(err, queue.ErrDuplicate) {
		writeJSON(w, http.StatusConflict, enqueueResponse{
			AlbumID:  album.ID,
			Position: pos,
			Detail:   err.Error(),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ENQUEUE_ERROR", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, enqueueResponse{
		AlbumID:  album.ID,
		Artist:   album.Artist.ArtistName,
		Title:    album.Title,
		Position: pos,
	})
}

func (s *Server) removeFromQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}
	if err := s.engine.Remove(id); err != nil {
		writeError(w, http.StatusInternalServerError, "REMOVE_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) moveInQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.Position < 1 {
		writeError(w, http.StatusBadRequest, "INVALID_POSITION", "position must be >= 1")
		return
	}

	switch err := s.engine.Reorder(id, req.Position); {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, queue.ErrNotPending):
		writeError(w, http.StatusConflict, "NOT_PENDING", err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "MOVE_ERROR", err.Error())
	default:
		writeJSON(w, http.StatusOK, s.engine.Snapshot())
	}
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be non-negative")
		return
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HISTORY_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []queue.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_EVENT_LOG", "Event log not configured")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be non-negative")
		return
	}

	raw, err := s.eventLog.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "EVENT_ERROR", err.Error())
		return
	}

	resp := make([]eventResponse, len(raw))
	for i, e := range raw {
		resp[i] = eventResponse{
			ID:         e.ID,
			EventType:  e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			OccurredAt: e.OccurredAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getMissing(w http.ResponseWriter, r *http.Request) {
	albums, lastSync := s.scheduler.Missing()

	resp := missingResponse{Albums: make([]missingAlbum, 0, len(albums))}
	if !lastSync.IsZero() {
		resp.LastSync = lastSync.Format(time.RFC3339)
	}
	for _, a := range albums {
		resp.Albums = append(resp.Albums, missingAlbum{
			ID:            a.ID,
			Artist:        a.Artist.ArtistName,
			Title:         a.Title,
			ReleaseDate:   a.ReleaseDate,
			MissingTracks: a.MissingTracks(),
			Queued:        s.engine.IsQueued(a.ID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsResponse{
		AutoDownload: s.scheduler.AutoDownload(),
		Interval:     s.scheduler.Interval().String(),
	})
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	if req.Interval != nil {
		d, err := time.ParseDuration(*req.Interval)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INTERVAL", "interval must be a positive duration like 30m")
			return
		}
		s.scheduler.SetInterval(d)
	}
	if req.AutoDownload != nil {
		s.scheduler.SetAutoDownload(*req.AutoDownload)
	}

	s.getSettings(w, r)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Version: s.version, Lidarr: "not configured"}

	if s.lidarr != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if status, err := s.lidarr.SystemStatus(ctx); err != nil {
			resp.Lidarr = "unreachable"
		} else {
			resp.Lidarr = "ok"
			resp.LidarrVersion = status.Version
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
