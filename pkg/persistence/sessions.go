package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateSession inserts an active session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, sessionID, configJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, started_at, status, config_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET status = excluded.status, ended_at = NULL
	`, sessionID, now(), SessionStatusActive, configJSON)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UpdateSessionStatus sets the status; terminal statuses also stamp ended_at.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	var (
		result sql.Result
		err    error
	)
	if status == SessionStatusActive {
		result, err = s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, ended_at = NULL WHERE session_id = ?`, status, sessionID)
	} else {
		result, err = s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, ended_at = ? WHERE session_id = ?`, status, now(), sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession loads one session.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, started_at, ended_at, status, config_json
		FROM sessions WHERE session_id = ?
	`, sessionID)
	return scanSession(row)
}

// ListSessions returns every session, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, started_at, ended_at, status, config_json
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess      Session
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(&sess.SessionID, &startedAt, &endedAt, &sess.Status, &sess.ConfigJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if t, parseErr := time.Parse(time.RFC3339Nano, startedAt); parseErr == nil {
		sess.StartedAt = t
	}
	if endedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339Nano, endedAt.String); parseErr == nil {
			sess.EndedAt = &t
		}
	}
	return &sess, nil
}

// MarkStaleSessions marks any 'active' sessions as 'crashed'. Called at startup to find
// sessions that never closed.
func (s *SQLiteStore) MarkStaleSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ? WHERE status = ?
	`, SessionStatusCrashed, now(), SessionStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale sessions: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// ConfigSnapshotToJSON serializes a config for the session record.
func ConfigSnapshotToJSON(config any) (string, error) {
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config snapshot: %w", err)
	}
	return string(data), nil
}
