// Package persistence snapshots session state at session boundaries. Two backends
// implement Store: SQLite (this package) and Redis (redisstore).
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by LoadRecord when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// ErrSessionNotFound is returned when a requested session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Record keys written by the kernel.
const (
	KeyProgress    = "progress"
	KeyMemory      = "memory"
	KeyEvaluations = "evaluations"
	KeyReport      = "report"
)

// Session status constants.
const (
	SessionStatusActive    = "active"
	SessionStatusShutdown  = "shutdown"  // Stopped early, resumable
	SessionStatusCompleted = "completed" // Every round finished
	SessionStatusCrashed   = "crashed"   // Never closed, found by MarkStaleSessions
)

// Session is one interview run.
type Session struct {
	SessionID  string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     string     `json:"status"`
	ConfigJSON string     `json:"config_json"`
}

// Resumable reports whether a session can be picked up again.
func (s *Session) Resumable() bool {
	return s.Status == SessionStatusShutdown || s.Status == SessionStatusCrashed || s.Status == SessionStatusActive
}

// Store is the persistence capability. LoadRecord returns the most recent blob appended
// under (sessionID, actorKey).
type Store interface {
	AppendRecord(ctx context.Context, sessionID, actorKey string, blob []byte) error
	LoadRecord(ctx context.Context, sessionID, actorKey string) ([]byte, error)

	CreateSession(ctx context.Context, sessionID, configJSON string) error
	UpdateSessionStatus(ctx context.Context, sessionID, status string) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	MarkStaleSessions(ctx context.Context) (int64, error)

	Close() error
}
