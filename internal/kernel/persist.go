package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"interviewsim/pkg/config"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/persistence"
	"interviewsim/pkg/persistence/redisstore"
)

func openRedis(ctx context.Context, cfg *config.PersistenceConfig) (persistence.Store, error) {
	opts := []redisstore.Option{redisstore.WithTTL(cfg.TTL)}
	if cfg.RedisPrefix != "" {
		opts = append(opts, redisstore.WithPrefix(cfg.RedisPrefix))
	}
	st := redisstore.New(cfg.RedisAddr, os.Getenv(config.EnvRedisPassword), cfg.RedisDB, opts...)
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	return st, nil
}

// Checkpoint implements orchestrator.Checkpointer. Records are queued on the persistence
// channel and written by the worker, so the scheduler never waits on the store.
func (k *Kernel) Checkpoint(_ context.Context, cp *orchestrator.Checkpoint) {
	k.persistMu.Lock()
	defer k.persistMu.Unlock()
	if k.PersistenceChannel == nil {
		return
	}

	k.persistJSON(cp.SessionID, persistence.KeyProgress, cp.Progress)
	k.persistJSON(cp.SessionID, persistence.KeyMemory, cp.Memory)
	k.persistJSON(cp.SessionID, persistence.KeyReport, cp.Report)
	if k.Evaluator != nil {
		k.persistJSON(cp.SessionID, persistence.KeyEvaluations, k.Evaluator.Evaluations())
	}

	if cp.Final {
		status := persistence.SessionStatusShutdown
		if cp.Completed {
			status = persistence.SessionStatusCompleted
		}
		persistence.PersistSessionStatus(cp.SessionID, status, k.PersistenceChannel)
	}
	logx.Debug(k.ctx, "kernel", "checkpoint %s queued (round %s, final=%v)", cp.Reason, cp.Round, cp.Final)
}

func (k *Kernel) persistJSON(sessionID, key string, v any) {
	blob, err := json.Marshal(v)
	if err != nil {
		k.Logger.Error("Failed to encode %s checkpoint: %v", key, err)
		return
	}
	persistence.PersistRecord(sessionID, key, blob, k.PersistenceChannel)
}

// createSessionRecord marks sessions left active by crashed runs, then records this one.
func (k *Kernel) createSessionRecord() error {
	if k.Store == nil {
		return nil
	}

	staleCount, err := k.Store.MarkStaleSessions(k.ctx)
	if err != nil {
		k.Logger.Warn("Failed to mark stale sessions: %v", err)
	} else if staleCount > 0 {
		k.Logger.Info("Marked %d stale session(s) as crashed", staleCount)
	}

	configJSON, err := persistence.ConfigSnapshotToJSON(k.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := k.Store.CreateSession(k.ctx, k.Session.ID, configJSON); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	k.Logger.Info("Created session record: %s", k.Session.ID)
	return nil
}

// startPersistenceWorker runs the single writer goroutine. It drains every queued request
// before signalling persistenceWorkerDone.
func (k *Kernel) startPersistenceWorker() {
	if k.PersistenceChannel == nil {
		return
	}
	k.persistenceWorkerDone = make(chan struct{})
	ch := k.PersistenceChannel
	st := k.Store

	go func() {
		defer close(k.persistenceWorkerDone)
		k.Logger.Debug("Starting persistence worker")

		// Writes outlive the kernel context so the final checkpoint lands after a cancel.
		ctx := context.WithoutCancel(k.ctx)
		for req := range ch {
			if req == nil {
				continue
			}
			if err := persistence.Process(ctx, st, req); err != nil {
				k.Logger.Error("Persistence %s failed: %v", req.Operation, err)
			}
		}

		k.Logger.Info("Persistence worker finished draining queue")
	}()
}

// DrainPersistenceQueue closes the persistence channel and waits for pending writes.
func (k *Kernel) DrainPersistenceQueue(ctx context.Context) error {
	k.persistMu.Lock()
	if k.PersistenceChannel == nil {
		k.persistMu.Unlock()
		return nil
	}
	close(k.PersistenceChannel)
	k.PersistenceChannel = nil
	k.persistMu.Unlock()

	if k.persistenceWorkerDone == nil {
		return nil
	}

	select {
	case <-k.persistenceWorkerDone:
		k.Logger.Info("Persistence queue drained successfully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for persistence queue to drain: %w", ctx.Err())
	}
}
