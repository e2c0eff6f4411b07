package queue

import (
	"database/sql"
	"fmt"
	"time"
)

// Outcome is the terminal result recorded for an item.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Record is one append-only history entry. Error carries the verbatim
// failure reason; Degraded marks a completed download whose tagging failed.
type Record struct {
	ID          int64     `json:"id"`
	AlbumID     int64     `json:"album_id"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	Outcome     Outcome   `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	Degraded    bool      `json:"degraded"`
	CompletedAt time.Time `json:"completed_at"`
}

// HistoryStore persists terminal outcomes to SQLite. Entries are never
// updated or deleted through this store.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a history store.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append records a terminal outcome.
func (s *HistoryStore) Append(r *Record) error {
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now()
	}
	result, err := s.db.Exec(`
		INSERT INTO history (album_id, artist, title, outcome, error, degraded, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.AlbumID, r.Artist, r.Title, r.Outcome, r.Error, r.Degraded, r.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	r.ID = id
	return nil
}

// Recent returns the newest entries first, up to limit.
func (s *HistoryStore) Recent(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, album_id, artist, title, outcome, error, degraded, completed_at
		FROM history
		ORDER BY id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.AlbumID, &r.Artist, &r.Title, &r.Outcome, &r.Error, &r.Degraded, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// CompletedAlbumIDs returns the set of album IDs with a completed outcome.
// The scheduler uses it to seed the session's duplicate check on restart.
func (s *HistoryStore) CompletedAlbumIDs() (map[int64]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT album_id FROM history WHERE outcome = ?`, OutcomeCompleted)
	if err != nil {
		return nil, fmt.Errorf("query completed albums: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan album id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
