// Package panelist implements the interviewer actors. A panelist keeps its own history and
// answers each turn addressed to it with generated lines in its persona.
package panelist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// ProfileReader gives read-only access to the candidate a panelist is interviewing.
type ProfileReader interface {
	CandidateName() string
	CandidateProfile() string
	AppliedRole() string
}

// Generator produces structured replies.
type Generator interface {
	Generate(ctx context.Context, req *generate.Request) (generate.Reply, error)
}

// Panelist is the reactor for one interviewer.
type Panelist struct {
	spec    plan.Panelist
	gen     Generator
	profile ProfileReader
	logger  *logx.Logger

	mu      sync.Mutex
	history []memory.Turn
	started time.Time
}

// New creates a panelist reactor.
func New(spec plan.Panelist, gen Generator, profile ProfileReader) *Panelist {
	return &Panelist{
		spec:    spec,
		gen:     gen,
		profile: profile,
		logger:  logx.NewLogger("panelist:" + spec.Name),
	}
}

// Identity is the actor identity for this panelist.
func (p *Panelist) Identity() actor.Identity {
	return actor.Identity{Role: proto.RolePanelist, Name: p.spec.Name, Round: p.spec.Round}
}

// NewActor wraps p in a round-bound actor.
func (p *Panelist) NewActor(cfg actor.Config) *actor.Actor {
	cfg.Identity = p.Identity()
	cfg.Scope = actor.RoundBound
	return actor.New(cfg, p)
}

// OnStart implements actor.StartHook.
func (p *Panelist) OnStart(_ context.Context, round plan.Round) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	p.logger.Info("ready for %s", round)
	return nil
}

// OnEnd implements actor.EndHook.
func (p *Panelist) OnEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started.IsZero() {
		p.logger.Info("spoke %d turns over %s", len(p.history), time.Since(p.started).Round(time.Second))
	}
}

// React implements actor.Reactor.
func (p *Panelist) React(ctx context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error) {
	p.mu.Lock()
	history := make([]memory.Turn, len(p.history))
	copy(history, p.history)
	p.mu.Unlock()

	reply, err := p.gen.Generate(ctx, &generate.Request{
		Instructions: p.instructions(msg),
		Payload:      msg,
		History:      history,
		Keys:         []string{"lines"},
		RequireLines: true,
	})
	if err != nil {
		return nil, fmt.Errorf("panelist %s: %w", p.spec.Name, err)
	}

	now := time.Now().UTC()
	p.mu.Lock()
	for _, line := range reply.Lines {
		p.history = append(p.history, memory.Turn{Speaker: p.spec.Name, Role: string(proto.RolePanelist), Content: line, At: now})
	}
	p.mu.Unlock()

	return &proto.ReplyPayload{Lines: reply.Lines}, nil
}

// History returns a copy of the panelist's own turns.
func (p *Panelist) History() []memory.Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]memory.Turn, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Panelist) instructions(msg *proto.MasterPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an interviewer on a hiring panel.", p.spec.Name)
	if p.spec.Persona != "" {
		fmt.Fprintf(&b, " %s", p.spec.Persona)
	}
	if p.profile != nil {
		fmt.Fprintf(&b, "\nCandidate: %s, applying for %s.", p.profile.CandidateName(), p.profile.AppliedRole())
		if profile := p.profile.CandidateProfile(); profile != "" {
			fmt.Fprintf(&b, "\nProfile: %s", profile)
		}
	}
	fmt.Fprintf(&b, "\nSteer the conversation through the section %q of %s / %s. Ask one thing at a time.",
		msg.Section, msg.Topic, msg.Subtopic)
	return b.String()
}
