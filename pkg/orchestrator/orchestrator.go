// Package orchestrator implements the interview scheduler. It is the only component that
// reads and writes the progress and memory graphs: every turn it selects the next
// topic, subtopic, section and speaker, dispatches one master payload, waits for the
// matching reply, records it and decides whether the section is finished.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/policy"
	"interviewsim/pkg/progress"
	"interviewsim/pkg/proto"
	"interviewsim/pkg/session"
)

// ID is the orchestrator's dispatcher member id.
const ID = "ORCHESTRATOR"

// Defaults applied by New.
const (
	DefaultReplyTimeout       = 2 * time.Minute
	DefaultMaxTurnsPerSection = 6
	DefaultContextTokens      = 4000
	endSendTimeout            = 5 * time.Second
)

// ErrStopped is returned by Run when the session was stopped before every round finished.
var ErrStopped = errors.New("session stopped")

// ActivityView is the read-only window onto the activity monitor.
type ActivityView interface {
	Progress() []string
}

// Options wires the orchestrator's collaborators. Session, Progress and Memory are
// required; nil policies get the deterministic defaults.
type Options struct {
	Session    *session.Context
	Progress   *progress.Graph
	Memory     *memory.Graph
	Speaker    policy.SpeakerPolicy
	Judge      policy.CompletionJudge
	Summarizer policy.Summarizer

	// Activity is set when an activity monitor is attached.
	Activity ActivityView
	// Evaluator is true when an evaluator is attached.
	Evaluator bool

	Observer     Observer
	Checkpointer Checkpointer

	ReplyTimeout       time.Duration
	MaxTurnsPerSection int
	ContextTokens      int
	MailboxSize        int

	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Verdict is one evaluator reply collected after a topic.
type Verdict struct {
	Round    plan.Round `json:"round"`
	Topic    string     `json:"topic"`
	Lines    []string   `json:"lines"`
	Score    *float64   `json:"score,omitempty"`
	Fallback bool       `json:"fallback,omitempty"`
}

// Report summarises a finished (or stopped) session.
type Report struct {
	SessionID string           `json:"session_id"`
	Completed bool             `json:"completed"`
	Turns     int              `json:"turns"`
	Fallbacks int              `json:"fallbacks"`
	Rounds    []progress.Stats `json:"rounds"`
	Verdicts  []Verdict        `json:"verdicts,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// cursor tracks where the scheduler is and what happened in the current section.
type cursor struct {
	round    plan.Round
	topic    string
	subtopic string
	section  string

	subtopicStart    time.Time
	turns            int
	candidateReplies int

	lastSpeaker string
	lastRole    proto.Role
}

// Orchestrator is the scheduler actor.
type Orchestrator struct {
	sess     *session.Context
	progress *progress.Graph
	memory   *memory.Graph

	speaker    policy.SpeakerPolicy
	fallback   *policy.RoundRobin
	judge      policy.CompletionJudge
	summarizer policy.Summarizer
	activity   ActivityView
	evaluator  bool

	observer     Observer
	checkpointer Checkpointer
	metrics      metrics.Recorder
	logger       *logx.Logger
	now          func() time.Time

	replyTimeout  time.Duration
	maxTurns      int
	contextTokens int

	inbox  *actor.Mailbox
	outbox *actor.Mailbox

	state State
	cur   cursor

	lastCode  string
	turns     int
	fallbacks int
	verdicts  []Verdict
	completed bool

	published atomic.Pointer[ProgressSnapshot]

	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	endOnce  sync.Once
	runOnce  sync.Once
	finished time.Time
}

// New builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Session == nil || opts.Progress == nil || opts.Memory == nil {
		return nil, fmt.Errorf("orchestrator: session, progress and memory are required")
	}
	o := &Orchestrator{
		sess:          opts.Session,
		progress:      opts.Progress,
		memory:        opts.Memory,
		speaker:       opts.Speaker,
		fallback:      policy.NewRoundRobin(),
		judge:         opts.Judge,
		summarizer:    opts.Summarizer,
		activity:      opts.Activity,
		evaluator:     opts.Evaluator,
		observer:      opts.Observer,
		checkpointer:  opts.Checkpointer,
		metrics:       opts.Session.Metrics,
		logger:        logx.NewLogger("orchestrator").WithSession(opts.Session.ID),
		now:           opts.Now,
		replyTimeout:  opts.ReplyTimeout,
		maxTurns:      opts.MaxTurnsPerSection,
		contextTokens: opts.ContextTokens,
		inbox:         actor.NewMailbox("orchestrator/in", opts.MailboxSize),
		outbox:        actor.NewMailbox("orchestrator/out", opts.MailboxSize),
		state:         StateIdle,
	}
	if o.speaker == nil {
		o.speaker = o.fallback
	}
	if o.judge == nil {
		o.judge = policy.TurnBudget{CandidateReplies: 1}
	}
	if o.summarizer == nil {
		o.summarizer = policy.Extractive{}
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.replyTimeout <= 0 {
		o.replyTimeout = DefaultReplyTimeout
	}
	if o.maxTurns <= 0 {
		o.maxTurns = DefaultMaxTurnsPerSection
	}
	if o.contextTokens <= 0 {
		o.contextTokens = DefaultContextTokens
	}
	o.publish()
	return o, nil
}

// ID implements dispatch.Member.
func (o *Orchestrator) ID() string { return ID }

// Inbox implements dispatch.Member. Replies from every actor land here.
func (o *Orchestrator) Inbox() *actor.Mailbox { return o.inbox }

// Outbox implements dispatch.Member.
func (o *Orchestrator) Outbox() *actor.Mailbox { return o.outbox }

// State returns the current scheduler state. Only meaningful from the Run goroutine or
// after Run returned.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) transition(ctx context.Context, to State) {
	from := o.state
	if from == to {
		return
	}
	if !IsValidTransition(from, to) {
		o.logger.Warn("unexpected transition %s -> %s", from, to)
	}
	o.state = to
	logx.Debug(ctx, "fsm", "%s -> %s (%s/%s/%s/%s)", from, to, o.cur.round, o.cur.topic, o.cur.subtopic, o.cur.section)
}

// Stop ends the session early. Run broadcasts END and returns ErrStopped.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
}

// Run drives the session to completion. START is broadcast first and END exactly once
// on every exit path.
func (o *Orchestrator) Run(ctx context.Context) error {
	err := fmt.Errorf("orchestrator already ran")
	o.runOnce.Do(func() {
		err = o.run(ctx)
	})
	return err
}

func (o *Orchestrator) run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		cancel()
		o.broadcastEnd()
		return ErrStopped
	}
	o.cancel = cancel
	o.mu.Unlock()
	defer cancel()

	rounds := o.progress.Rounds()
	if len(rounds) == 0 {
		o.broadcastEnd()
		return fmt.Errorf("orchestrator: plan has no rounds")
	}

	start, open := FirstOpenRound(o.progress)
	if !open {
		o.logger.Info("every round already complete")
		o.completed = true
		o.finish(ctx, "completed")
		return nil
	}

	if err := o.broadcast(ctx, proto.SignalStart, rounds[0]); err != nil {
		o.finish(ctx, "stopped")
		return o.stopErr(parent, err)
	}
	if start != rounds[0] {
		o.logger.Info("resuming at %s", start)
		if err := o.broadcast(ctx, proto.SignalRoundChanged, start); err != nil {
			o.finish(ctx, "stopped")
			return o.stopErr(parent, err)
		}
	}

	round := start
	for {
		o.cur = cursor{round: round}
		o.logger.Info("round %s started", round)
		if err := o.runRound(ctx, round); err != nil {
			o.finish(ctx, "stopped")
			return o.stopErr(parent, err)
		}

		o.metrics.RoundCompleted(string(round))
		st := o.progress.Stats(round)
		o.logger.Info("round %s complete: %d/%d topics, %d/%d subtopics",
			round, st.CompletedTopics, st.TotalTopics, st.CompletedSubtopics, st.TotalSubtopics)
		o.checkpoint(ctx, "round "+string(round)+" complete", false)

		next, ok := o.progress.NextRound(round)
		if !ok {
			break
		}
		o.transition(ctx, StateSelectTopic)
		if err := o.broadcast(ctx, proto.SignalRoundChanged, next); err != nil {
			o.finish(ctx, "stopped")
			return o.stopErr(parent, err)
		}
		round = next
	}

	o.completed = true
	o.finish(ctx, "completed")
	return nil
}

func (o *Orchestrator) stopErr(parent context.Context, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("%w: %w", ErrStopped, parent.Err())
	}
	if errors.Is(err, ErrStopped) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return ErrStopped
	}
	return fmt.Errorf("%w: %w", ErrStopped, err)
}

// finish publishes the last snapshot, checkpoints and broadcasts END.
func (o *Orchestrator) finish(ctx context.Context, reason string) {
	o.transition(ctx, StateDone)
	o.finished = o.now()
	o.publish()
	o.checkpoint(context.WithoutCancel(ctx), "session "+reason, true)
	o.broadcastEnd()
	o.logger.Info("session %s after %d turns", reason, o.turns)
}

// broadcastEnd sends END once and closes the outbox so the dispatcher detaches the
// orchestrator after forwarding it.
func (o *Orchestrator) broadcastEnd() {
	o.endOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), endSendTimeout)
		defer cancel()
		if err := o.outbox.Send(ctx, proto.Broadcast(proto.SignalEnd, o.cur.round)); err != nil {
			o.logger.Warn("failed to broadcast END: %v", err)
		}
		o.outbox.Close()
	})
}

func (o *Orchestrator) broadcast(ctx context.Context, signal proto.Signal, round plan.Round) error {
	if err := o.outbox.Send(ctx, proto.Broadcast(signal, round)); err != nil {
		return fmt.Errorf("broadcast %s: %w", signal, err)
	}
	o.logger.Info("broadcast %s (%s)", signal, round)
	return nil
}

// FirstOpenRound returns the first round that still has incomplete topics.
func FirstOpenRound(g *progress.Graph) (plan.Round, bool) {
	for _, r := range g.Rounds() {
		if !g.RoundExhausted(r) {
			return r, true
		}
	}
	return "", false
}

// Report returns the session report. Safe to call after Run returns.
func (o *Orchestrator) Report() Report {
	end := o.finished
	if end.IsZero() {
		end = o.now()
	}
	verdicts := make([]Verdict, len(o.verdicts))
	copy(verdicts, o.verdicts)
	return Report{
		SessionID: o.sess.ID,
		Completed: o.completed,
		Turns:     o.turns,
		Fallbacks: o.fallbacks,
		Rounds:    o.progress.AllStats(),
		Verdicts:  verdicts,
		Duration:  end.Sub(o.sess.StartedAt),
	}
}
