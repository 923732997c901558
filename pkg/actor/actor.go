// Package actor runs the reactive side of an interview: a mailbox pair per actor, the
// acceptance rule that lets every actor observe all traffic and filter locally, and a
// receive loop that turns each accepted turn into exactly one reply.
package actor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"interviewsim/pkg/logx"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// Reactor produces the reply to one accepted turn. Implementations guard any state they
// share with background work with their own mutex.
type Reactor interface {
	React(ctx context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error)
}

// StartHook is implemented by reactors that need to initialise timers or bindings on START.
type StartHook interface {
	OnStart(ctx context.Context, round plan.Round) error
}

// RoundHook is implemented by session-wide reactors that track the current round.
type RoundHook interface {
	OnRoundChanged(round plan.Round)
}

// EndHook is implemented by reactors that release resources on END.
type EndHook interface {
	OnEnd()
}

// Scope says whether an actor lives for one round or the whole session.
type Scope int

const (
	// RoundBound actors retire when the round changes.
	RoundBound Scope = iota
	// SessionWide actors follow the session into every round.
	SessionWide
)

// Config describes one actor. Rounds is the session's round order; without it a round-bound
// actor only retires when the session moves on from its own round.
type Config struct {
	Identity    Identity
	Scope       Scope
	MailboxSize int
	Metrics     metrics.Recorder
	Rounds      []plan.Round
}

// Actor owns an inbox and an outbox and runs the receive loop for a Reactor.
type Actor struct {
	reactor Reactor
	inbox   *Mailbox
	outbox  *Mailbox
	logger  *logx.Logger
	metrics metrics.Recorder
	scope   Scope
	key     string
	order   map[plan.Round]int

	mu      sync.Mutex
	id      Identity
	current plan.Round
	started bool
	retired bool
	replies int

	endOnce sync.Once
	done    chan struct{}
}

// New wires a reactor into an actor.
func New(cfg Config, reactor Reactor) *Actor {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop()
	}
	name := cfg.Identity.String()
	order := make(map[plan.Round]int, len(cfg.Rounds))
	for i, r := range cfg.Rounds {
		order[r] = i
	}
	return &Actor{
		reactor: reactor,
		inbox:   NewMailbox(name+"/in", cfg.MailboxSize),
		outbox:  NewMailbox(name+"/out", cfg.MailboxSize),
		logger:  logx.NewLogger(name),
		metrics: rec,
		scope:   cfg.Scope,
		key:     cfg.Identity.Key(),
		order:   order,
		id:      cfg.Identity,
		done:    make(chan struct{}),
	}
}

// Identity returns the actor's current identity. Session-wide actors change round.
func (a *Actor) Identity() Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// ID is the actor's stable key, used by the dispatcher.
func (a *Actor) ID() string { return a.key }

// Inbox is where the dispatcher delivers envelopes.
func (a *Actor) Inbox() *Mailbox { return a.inbox }

// Outbox is where the actor posts replies.
func (a *Actor) Outbox() *Mailbox { return a.outbox }

// Retired reports whether a round-bound actor has been retired by ROUND_CHANGED.
func (a *Actor) Retired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retired
}

// Replies returns how many replies the actor has posted.
func (a *Actor) Replies() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.replies
}

// Done is closed when Run returns.
func (a *Actor) Done() <-chan struct{} { return a.done }

// Run processes the inbox until END is observed, the inbox is closed or ctx is cancelled.
// Whatever the exit path, the outbox is closed exactly once.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)

	a.logger.Debug("receive loop started")
	for {
		env, ok, err := a.inbox.Receive(ctx)
		if err != nil {
			a.shutdown("context cancelled")
			return fmt.Errorf("actor %s: %w", a.Identity(), err)
		}
		if !ok {
			a.shutdown("inbox closed")
			return nil
		}
		if a.handle(ctx, env) {
			a.drain()
			a.shutdown("END observed")
			return nil
		}
	}
}

// handle processes one envelope and reports whether it was END.
func (a *Actor) handle(ctx context.Context, env *proto.Envelope) bool {
	id := a.Identity()
	if ok, reason := id.Accepts(env); !ok {
		logx.Debug(ctx, "routing", "%s dropped %s (%s)", id, env.Describe(), reason)
		a.metrics.EnvelopeDropped(id.String(), reason)
		return false
	}

	switch p := env.Payload.(type) {
	case *proto.SystemPayload:
		return a.handleSystem(ctx, p)
	case *proto.MasterPayload:
		if a.Retired() {
			a.logger.Warn("retired actor ignoring %s turn for %s/%s", p.Purpose, p.Topic, p.Subtopic)
			a.metrics.EnvelopeDropped(id.String(), "retired")
			return false
		}
		a.react(ctx, env.ID, p)
	case *proto.ReplyPayload:
		// Accepts never lets replies through.
	}
	return false
}

func (a *Actor) handleSystem(ctx context.Context, p *proto.SystemPayload) bool {
	switch p.Signal {
	case proto.SignalStart:
		a.mu.Lock()
		first := !a.started
		a.started = true
		if a.current == "" {
			a.current = p.Round
		}
		round := a.id.Round
		a.mu.Unlock()
		if !first {
			return false
		}
		if h, ok := a.reactor.(StartHook); ok {
			if err := h.OnStart(ctx, round); err != nil {
				a.logger.Error("start hook failed: %v", err)
			}
		}
		a.logger.Info("started")

	case proto.SignalRoundChanged:
		a.changeRound(p.Round)

	case proto.SignalEnd:
		return true

	default:
		a.logger.Warn("unknown system signal %q", p.Signal)
	}
	return false
}

func (a *Actor) changeRound(next plan.Round) {
	a.mu.Lock()
	prevCurrent := a.current
	a.current = next
	if a.scope == RoundBound {
		if !a.retired && a.leavesOwnRound(prevCurrent, next) {
			a.retired = true
			a.mu.Unlock()
			a.logger.Info("round changed to %s, retiring", next)
			return
		}
		a.mu.Unlock()
		return
	}
	prev := a.id.Round
	a.id.Round = next
	a.mu.Unlock()

	if prev != next {
		a.logger.Info("following session from %s to %s", prev, next)
		if h, ok := a.reactor.(RoundHook); ok {
			h.OnRoundChanged(next)
		}
	}
}

// leavesOwnRound reports whether the session moving from prev to next is past this actor's
// round. Callers hold mu.
func (a *Actor) leavesOwnRound(prev, next plan.Round) bool {
	own := a.id.Round
	if next == own {
		return false
	}
	if ownPos, ok := a.order[own]; ok {
		if nextPos, ok := a.order[next]; ok {
			return nextPos > ownPos
		}
	}
	return prev == own
}

// react runs the reactor and always posts exactly one reply to the envelope replyTo.
func (a *Actor) react(ctx context.Context, replyTo string, p *proto.MasterPayload) {
	start := time.Now()
	reply, err := a.safeReact(ctx, p)
	if err != nil {
		a.logger.Error("reaction to %s/%s/%s failed, sending fallback: %v", p.Topic, p.Subtopic, p.Section, err)
		reply = &proto.ReplyPayload{Fallback: true}
	}

	id := a.Identity()
	reply.ReplyTo = replyTo
	reply.Speaker = id.Name
	reply.Role = id.Role
	reply.Round = p.Round
	reply.Purpose = p.Purpose

	env := proto.NewEnvelope(id.Role, proto.RoleOrchestrator, reply)
	if err := a.outbox.Send(ctx, env); err != nil {
		a.logger.Error("failed to post reply: %v", err)
		return
	}

	a.mu.Lock()
	a.replies++
	a.mu.Unlock()
	logx.Debug(ctx, "actor", "%s replied to %s in %s (fallback=%t)", id, p.Section, time.Since(start), reply.Fallback)
}

func (a *Actor) safeReact(ctx context.Context, p *proto.MasterPayload) (reply *proto.ReplyPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("reactor panic: %v\n%s", r, debug.Stack())
			reply, err = nil, fmt.Errorf("%w: %v", ErrReactorPanic, r)
		}
	}()

	reply, err = a.reactor.React(ctx, p)
	if err == nil && reply == nil {
		err = ErrNoReply
	}
	return reply, err
}

// drain discards whatever was queued behind END.
func (a *Actor) drain() {
	for {
		env, ok := a.inbox.TryReceive()
		if !ok {
			return
		}
		a.logger.Debug("discarding %s queued after END", env.Describe())
	}
}

func (a *Actor) shutdown(reason string) {
	a.endOnce.Do(func() {
		if h, ok := a.reactor.(EndHook); ok {
			h.OnEnd()
		}
		a.outbox.Close()
		a.inbox.Close()
		a.logger.Info("stopped: %s", reason)
	})
}

// Errors substituted by fallback replies.
var (
	ErrReactorPanic = errors.New("reactor panicked")
	ErrNoReply      = errors.New("reactor returned no reply")
)
