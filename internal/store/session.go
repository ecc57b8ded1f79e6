package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/pinchvolume/internal/volume"
)

// Stop reasons recorded in the journal.
const (
	StopReasonUser     = "stopped"
	StopReasonShutdown = "shutdown"
	StopReasonCrashed  = "crashed"
)

// Session is one journaled tracking session. It is history only and is
// never read back to restore a level.
type Session struct {
	ID         string
	StartedAt  time.Time
	EndedAt    *time.Time
	StartLevel float64
	EndLevel   float64
	Updates    int
	SinkErrors int
	StopReason string
	Control    volume.Config
}

// Active reports whether the session has not been finished.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides journal operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new, unfinished session.
func (r *SessionRepository) Create(s *Session) error {
	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, start_level, proximity_threshold, far_multiplier, step_size, min_update_interval_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt, s.StartLevel,
		s.Control.ProximityThreshold, s.Control.FarMultiplier, s.Control.StepSize,
		s.Control.MinUpdateInterval.Milliseconds(),
	)
	return err
}

// Finish records the end of a session.
// Returns ErrNotFound if the session does not exist.
func (r *SessionRepository) Finish(s *Session) error {
	if s.EndedAt == nil {
		now := time.Now()
		s.EndedAt = &now
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, end_level = ?, updates = ?, sink_errors = ?, stop_reason = ?
		 WHERE id = ?`,
		*s.EndedAt, s.EndLevel, s.Updates, s.SinkErrors, s.StopReason, s.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

const sessionColumns = `id, started_at, ended_at, start_level, end_level, updates, sink_errors, stop_reason,
	proximity_threshold, far_multiplier, step_size, min_update_interval_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var endedAt sql.NullTime
	var endLevel sql.NullFloat64
	var intervalMs int64

	err := row.Scan(
		&s.ID, &s.StartedAt, &endedAt, &s.StartLevel, &endLevel, &s.Updates, &s.SinkErrors, &s.StopReason,
		&s.Control.ProximityThreshold, &s.Control.FarMultiplier, &s.Control.StepSize, &intervalMs,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if endLevel.Valid {
		s.EndLevel = endLevel.Float64
	}
	s.Control.MinUpdateInterval = volume.IntervalFromMillis(intervalMs)
	return s, nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns up to limit sessions, most recent first. A limit <= 0 returns all.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CloseDangling finishes sessions left open by a crash. It returns how many
// were closed.
func (r *SessionRepository) CloseDangling(reason string) (int, error) {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = started_at, end_level = start_level, stop_reason = ?
		 WHERE ended_at IS NULL`,
		reason,
	)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}
