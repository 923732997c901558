package orchestrator

import (
	"context"
	"time"

	"interviewsim/pkg/memory"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/proto"
)

// TurnEvent is one line shown to observers.
type TurnEvent struct {
	Round    plan.Round
	Topic    string
	Subtopic string
	Section  string
	Purpose  proto.Purpose
	Turn     memory.Turn
	Code     string
	Score    *float64
	Fallback bool
}

// Observer is told about every recorded turn and side-channel reply. Called from the
// orchestrator goroutine.
type Observer interface {
	OnTurn(ev TurnEvent)
}

type nopObserver struct{}

func (nopObserver) OnTurn(TurnEvent) {}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev TurnEvent)

// OnTurn implements Observer.
func (f ObserverFunc) OnTurn(ev TurnEvent) { f(ev) }

// Checkpoint is the graph state handed to the persistence layer.
type Checkpoint struct {
	SessionID string
	Reason    string
	Round     plan.Round
	Final     bool
	Completed bool
	Progress  progress.Snapshot
	Memory    memory.Snapshot
	Report    Report
}

// Checkpointer persists checkpoints. Implementations must not block the scheduler.
type Checkpointer interface {
	Checkpoint(ctx context.Context, cp *Checkpoint)
}

func (o *Orchestrator) checkpoint(ctx context.Context, reason string, final bool) {
	if o.checkpointer == nil {
		return
	}
	o.checkpointer.Checkpoint(ctx, &Checkpoint{
		SessionID: o.sess.ID,
		Reason:    reason,
		Round:     o.cur.round,
		Final:     final,
		Completed: o.completed,
		Progress:  o.progress.Snapshot(),
		Memory:    o.memory.Snapshot(o.progress.Rounds()),
		Report:    o.Report(),
	})
}

// ProgressSnapshot is the published view of the session for observers on other
// goroutines.
type ProgressSnapshot struct {
	SessionID string           `json:"session_id"`
	State     State            `json:"state"`
	Round     plan.Round       `json:"round,omitempty"`
	Topic     string           `json:"topic,omitempty"`
	Subtopic  string           `json:"subtopic,omitempty"`
	Section   string           `json:"section,omitempty"`
	Turns     int              `json:"turns"`
	Rounds    []progress.Stats `json:"rounds"`
	Activity  []string         `json:"activity,omitempty"`
	Verdicts  []Verdict        `json:"verdicts,omitempty"`
	Completed bool             `json:"completed"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// publish stores a fresh snapshot. Readers never see the graphs themselves.
func (o *Orchestrator) publish() {
	snap := &ProgressSnapshot{
		SessionID: o.sess.ID,
		State:     o.state,
		Round:     o.cur.round,
		Topic:     o.cur.topic,
		Subtopic:  o.cur.subtopic,
		Section:   o.cur.section,
		Turns:     o.turns,
		Rounds:    o.progress.AllStats(),
		Verdicts:  append([]Verdict(nil), o.verdicts...),
		Completed: o.completed,
		UpdatedAt: o.now().UTC(),
	}
	if o.activity != nil {
		snap.Activity = o.activity.Progress()
	}
	o.published.Store(snap)
}

// Snapshot returns the latest published progress snapshot. Safe from any goroutine.
func (o *Orchestrator) Snapshot() *ProgressSnapshot {
	return o.published.Load()
}
