// Package dispatch forwards every envelope an actor posts to the inbox of every other
// attached actor. There are no subscriber tables: each actor filters its own inbox.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/proto"
)

// Severity represents the severity level of member errors.
type Severity int

const (
	Warn Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "fatal"
	}
	return "warn"
}

// MemberError is an error reported against an attached member.
type MemberError struct {
	ID  string
	Err error
	Sev Severity
}

// Member is anything with a mailbox pair: reactive actors and the orchestrator.
type Member interface {
	ID() string
	Inbox() *actor.Mailbox
	Outbox() *actor.Mailbox
}

// EventSink records routed envelopes.
type EventSink interface {
	WriteEnvelope(env *proto.Envelope) error
}

type attachment struct {
	member Member
	stop   chan struct{}
}

// Dispatcher owns one forwarder goroutine per attached outbox.
type Dispatcher struct {
	members  map[string]*attachment
	eventLog EventSink
	metrics  metrics.Recorder
	logger   *logx.Logger
	errCh    chan MemberError
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	ctx      context.Context //nolint:containedctx // forwarders attached after Start share the run context
	cancel   context.CancelFunc
	routed   int
	failed   int
}

// NewDispatcher creates a dispatcher. eventLog may be nil.
func NewDispatcher(eventLog EventSink, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop()
	}
	return &Dispatcher{
		members:  make(map[string]*attachment),
		eventLog: eventLog,
		metrics:  rec,
		logger:   logx.NewLogger("dispatcher"),
		errCh:    make(chan MemberError, 16),
		shutdown: make(chan struct{}),
	}
}

// Attach registers a member. Members attached after Start get their forwarder immediately.
func (d *Dispatcher) Attach(m Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := m.ID()
	if _, exists := d.members[id]; exists {
		return fmt.Errorf("member %s already attached", id)
	}
	att := &attachment{member: m, stop: make(chan struct{})}
	d.members[id] = att
	d.logger.Info("Attached %s", id)

	if d.running {
		d.startForwarder(d.ctx, id, att)
	}
	return nil
}

// Detach removes a member and closes its inbox.
func (d *Dispatcher) Detach(id string) {
	d.detach(id)
}

func (d *Dispatcher) detach(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	att, exists := d.members[id]
	if !exists {
		return
	}
	delete(d.members, id)
	close(att.stop)
	att.member.Inbox().Close()
	d.logger.Info("Detached %s and closed its inbox", id)
}

// Members returns the attached member IDs, sorted.
func (d *Dispatcher) Members() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.members))
	for id := range d.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start launches the forwarders and the supervisor.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("dispatcher is already running")
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.logger.Info("Starting dispatcher with %d members", len(d.members))
	for id, att := range d.members {
		d.startForwarder(d.ctx, id, att)
	}

	d.wg.Add(1)
	go d.supervisor(d.ctx)
	return nil
}

// startForwarder must be called with d.mu held.
func (d *Dispatcher) startForwarder(ctx context.Context, id string, att *attachment) {
	d.wg.Add(1)
	go d.forward(ctx, id, att)
}

// Stop cancels the forwarders, closes every remaining inbox and waits for the
// goroutines until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.cancel()
	close(d.shutdown)
	for _, att := range d.members {
		att.member.Inbox().Close()
	}
	d.mu.Unlock()

	d.logger.Info("Stopping dispatcher")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher stopped successfully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher stop timed out")
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

// forward moves envelopes from one member's outbox to every other inbox. A closed
// outbox means the member has finished, so it is detached.
func (d *Dispatcher) forward(ctx context.Context, id string, att *attachment) {
	defer d.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-att.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	outbox := att.member.Outbox()
	for {
		env, ok, err := outbox.Receive(ctx)
		if err != nil {
			return
		}
		if !ok {
			d.logger.Info("Outbox of %s closed", id)
			d.detach(id)
			return
		}
		d.route(ctx, id, env)
	}
}

func (d *Dispatcher) route(ctx context.Context, from string, env *proto.Envelope) {
	if err := env.Validate(); err != nil {
		d.ReportError(from, fmt.Errorf("invalid envelope: %w", err), Warn)
		return
	}

	if d.eventLog != nil {
		if err := d.eventLog.WriteEnvelope(env); err != nil {
			d.logger.Warn("Failed to write envelope %s to event log: %v", env.Describe(), err)
		}
	}
	d.metrics.EnvelopeRouted(string(env.Payload.Kind()), string(env.Sender))
	logx.Debug(ctx, "dispatch", "routing %s from %s", env.Describe(), from)

	d.mu.RLock()
	targets := make([]*attachment, 0, len(d.members))
	for id, att := range d.members {
		if id != from {
			targets = append(targets, att)
		}
	}
	d.mu.RUnlock()

	delivered := 0
	for _, att := range targets {
		err := att.member.Inbox().Send(ctx, env)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, actor.ErrMailboxClosed):
			// Member already finished.
		case ctx.Err() != nil:
			return
		default:
			d.ReportError(att.member.ID(), fmt.Errorf("deliver %s: %w", env.Describe(), err), Warn)
		}
	}

	d.mu.Lock()
	if delivered == 0 {
		d.failed++
	} else {
		d.routed++
	}
	d.mu.Unlock()
}

// ReportError queues an error for the supervisor; fatal errors detach the member.
func (d *Dispatcher) ReportError(id string, err error, severity Severity) {
	select {
	case d.errCh <- MemberError{ID: id, Err: err, Sev: severity}:
	default:
		d.logger.Error("Error channel full, dropping error report from %s: %v", id, err)
	}
}

func (d *Dispatcher) supervisor(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Supervisor stopped by context")
			return
		case <-d.shutdown:
			d.logger.Debug("Supervisor stopped by shutdown signal")
			return
		case memberErr := <-d.errCh:
			d.logger.Warn("Member error reported - ID: %s, Error: %v, Severity: %s",
				memberErr.ID, memberErr.Err, memberErr.Sev)

			if memberErr.Sev == Fatal {
				d.logger.Error("Fatal error from %s, detaching", memberErr.ID)
				d.detach(memberErr.ID)
				if len(d.Members()) == 0 {
					d.logger.Warn("No members left attached")
				}
			}
		}
	}
}

// Stats reports routing counters.
func (d *Dispatcher) Stats() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]any{
		"running":     d.running,
		"members":     len(d.members),
		"routed":      d.routed,
		"undelivered": d.failed,
	}
}
