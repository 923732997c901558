package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Request is one unit of work for the kernel's persistence worker.
type Request struct {
	Data      any        `json:"data"`      // Operation-specific payload
	Response  chan<- any `json:"-"`         // nil for fire-and-forget writes
	Operation string     `json:"operation"` // Operation type
}

// Operation constants for Request.
const (
	OpAppendRecord        = "append_record"
	OpUpdateSessionStatus = "update_session_status"
	OpLoadRecord          = "load_record"
)

// RecordRequest carries OpAppendRecord and OpLoadRecord data.
type RecordRequest struct {
	SessionID string `json:"session_id"`
	ActorKey  string `json:"actor_key"`
	Blob      []byte `json:"blob,omitempty"`
}

// StatusRequest carries OpUpdateSessionStatus data.
type StatusRequest struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// AppendRecord stores a new blob under (sessionID, actorKey). Earlier blobs are kept.
func (s *SQLiteStore) AppendRecord(ctx context.Context, sessionID, actorKey string, blob []byte) error {
	if sessionID == "" || actorKey == "" {
		return fmt.Errorf("append record: session id and actor key are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (session_id, actor_key, blob, created_at) VALUES (?, ?, ?, ?)
	`, sessionID, actorKey, blob, now())
	if err != nil {
		return fmt.Errorf("failed to append record %s/%s: %w", sessionID, actorKey, err)
	}
	return nil
}

// LoadRecord returns the most recently appended blob.
func (s *SQLiteStore) LoadRecord(ctx context.Context, sessionID, actorKey string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT blob FROM records WHERE session_id = ? AND actor_key = ? ORDER BY id DESC LIMIT 1
	`, sessionID, actorKey).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, actorKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s/%s: %w", sessionID, actorKey, err)
	}
	return blob, nil
}

// CountRecords returns how many blobs exist for a key.
func (s *SQLiteStore) CountRecords(ctx context.Context, sessionID, actorKey string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM records WHERE session_id = ? AND actor_key = ?
	`, sessionID, actorKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Process executes one worker request against st. Fire-and-forget requests have a nil
// Response; queries answer with either the result or an error.
func Process(ctx context.Context, st Store, req *Request) error {
	switch req.Operation {
	case OpAppendRecord:
		rec, ok := req.Data.(*RecordRequest)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		return st.AppendRecord(ctx, rec.SessionID, rec.ActorKey, rec.Blob)

	case OpUpdateSessionStatus:
		status, ok := req.Data.(*StatusRequest)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		return st.UpdateSessionStatus(ctx, status.SessionID, status.Status)

	case OpLoadRecord:
		rec, ok := req.Data.(*RecordRequest)
		if !ok {
			return fmt.Errorf("%s: unexpected data %T", req.Operation, req.Data)
		}
		blob, err := st.LoadRecord(ctx, rec.SessionID, rec.ActorKey)
		if req.Response != nil {
			if err != nil {
				req.Response <- err
			} else {
				req.Response <- blob
			}
		}
		return err

	default:
		err := fmt.Errorf("unknown operation: %v", req.Operation)
		if req.Response != nil {
			req.Response <- err
		}
		return err
	}
}
