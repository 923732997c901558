// Package session holds the per-session context object: the plan, the runtime config and
// the shared observability handles. One Context is created at session start and passed
// explicitly to the orchestrator and to every actor.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"interviewsim/pkg/config"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/tokens"
)

// Context is the explicit session context. Its fields are set once by New and never
// change afterwards.
type Context struct {
	ID        string
	Plan      *plan.Plan
	Config    *config.Config
	Logger    *logx.Logger
	Metrics   metrics.Recorder
	Tokens    *tokens.Counter
	StartedAt time.Time
}

// New builds a session context. An empty cfg.SessionID gets a fresh UUID; a nil recorder
// discards metrics.
func New(p *plan.Plan, cfg *config.Config, rec metrics.Recorder) (*Context, error) {
	if p == nil {
		return nil, fmt.Errorf("session: plan is required")
	}
	if cfg == nil {
		cfg = config.Default()
	}
	id := cfg.SessionID
	if id == "" {
		id = uuid.NewString()
		cfg.SessionID = id
	}
	if rec == nil {
		rec = metrics.Nop()
	}

	counter, err := tokens.NewCounter()
	if err != nil {
		logx.NewLogger("session").Warn("tokenizer unavailable, estimating token counts: %v", err)
		counter = tokens.Estimate()
	}

	return &Context{
		ID:        id,
		Plan:      p,
		Config:    cfg,
		Logger:    logx.NewLogger("session").WithSession(id),
		Metrics:   rec,
		Tokens:    counter,
		StartedAt: time.Now(),
	}, nil
}

// CandidateName implements panelist.ProfileReader.
func (c *Context) CandidateName() string {
	return c.Plan.Participants.Candidate.Name
}

// CandidateProfile implements panelist.ProfileReader.
func (c *Context) CandidateProfile() string {
	return c.Plan.Participants.Candidate.Profile
}

// AppliedRole implements panelist.ProfileReader.
func (c *Context) AppliedRole() string {
	if r := c.Plan.Participants.Candidate.Role; r != "" {
		return r
	}
	return "the open position"
}

// Elapsed is the time since the session started.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}
