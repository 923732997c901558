// Package redisstore implements persistence.Store on Redis: one list per (session, key)
// holding every appended blob, a hash per session and a ZSET index of sessions.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"interviewsim/pkg/persistence"
)

// DefaultPrefix namespaces every key.
const DefaultPrefix = "interviewsim"

// Store implements persistence.Store using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration applied to every key of a session.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New connects to a Redis server.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) recordKey(sessionID, actorKey string) string {
	return s.prefix + ":session:" + sessionID + ":record:" + actorKey
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + ":sessions"
}

// AppendRecord implements persistence.Store.
func (s *Store) AppendRecord(ctx context.Context, sessionID, actorKey string, blob []byte) error {
	if sessionID == "" || actorKey == "" {
		return fmt.Errorf("append record: session id and actor key are required")
	}
	key := s.recordKey(sessionID, actorKey)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, blob)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append record %s/%s: %w", sessionID, actorKey, err)
	}
	return nil
}

// LoadRecord implements persistence.Store.
func (s *Store) LoadRecord(ctx context.Context, sessionID, actorKey string) ([]byte, error) {
	blob, err := s.client.LIndex(ctx, s.recordKey(sessionID, actorKey), -1).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("%w: %s/%s", persistence.ErrNotFound, sessionID, actorKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s/%s: %w", sessionID, actorKey, err)
	}
	return blob, nil
}

// CountRecords returns how many blobs exist for a key.
func (s *Store) CountRecords(ctx context.Context, sessionID, actorKey string) (int64, error) {
	n, err := s.client.LLen(ctx, s.recordKey(sessionID, actorKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// CreateSession implements persistence.Store.
func (s *Store) CreateSession(ctx context.Context, sessionID, configJSON string) error {
	started := time.Now().UTC()
	key := s.sessionKey(sessionID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"status", persistence.SessionStatusActive,
		"config_json", configJSON,
		"started_at", started.Format(time.RFC3339Nano),
	)
	pipe.HDel(ctx, key, "ended_at")
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAddNX(ctx, s.indexKey(), backend.Z{Score: float64(started.Unix()), Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UpdateSessionStatus implements persistence.Store.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	key := s.sessionKey(sessionID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if exists == 0 {
		return persistence.ErrSessionNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "status", status)
	if status == persistence.SessionStatusActive {
		pipe.HDel(ctx, key, "ended_at")
	} else {
		pipe.HSet(ctx, key, "ended_at", time.Now().UTC().Format(time.RFC3339Nano))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

// GetSession implements persistence.Store.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*persistence.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, persistence.ErrSessionNotFound
	}

	sess := &persistence.Session{
		SessionID:  sessionID,
		Status:     fields["status"],
		ConfigJSON: fields["config_json"],
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		sess.StartedAt = t
	}
	if v, ok := fields["ended_at"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			sess.EndedAt = &t
		}
	}
	return sess, nil
}

// ListSessions returns the indexed session ids, newest first. Ids whose hash has
// expired are dropped from the index.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		if n == 0 {
			s.client.ZRem(ctx, s.indexKey(), id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// MarkStaleSessions implements persistence.Store.
func (s *Store) MarkStaleSessions(ctx context.Context) (int64, error) {
	ids, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	var marked int64
	for _, id := range ids {
		status, err := s.client.HGet(ctx, s.sessionKey(id), "status").Result()
		if err != nil {
			continue
		}
		if status != persistence.SessionStatusActive {
			continue
		}
		if err := s.UpdateSessionStatus(ctx, id, persistence.SessionStatusCrashed); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

// Close implements persistence.Store.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

func (s *Store) String() string {
	return "redis(" + s.client.Options().Addr + "/" + strconv.Itoa(s.client.Options().DB) + ")"
}

var _ persistence.Store = (*Store)(nil)
