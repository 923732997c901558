// Package candidate implements the interviewee actor. Answers come from an AnswerSource:
// a model playing the candidate, or a human at the console.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// ErrEmptyAnswer is returned when a source produced neither lines nor code.
var ErrEmptyAnswer = errors.New("candidate gave an empty answer")

// Answer is what the candidate says, plus any code they submit.
type Answer struct {
	Lines []string
	Code  string
}

// AnswerSource produces the candidate's answer to one turn.
type AnswerSource interface {
	Answer(ctx context.Context, msg *proto.MasterPayload, history []memory.Turn) (Answer, error)
}

// Candidate is the reactor for the interviewee. It follows the session across rounds.
type Candidate struct {
	spec   plan.Candidate
	source AnswerSource
	logger *logx.Logger

	mu       sync.Mutex
	round    plan.Round
	history  []memory.Turn
	lastCode string
}

// New creates a candidate reactor.
func New(spec plan.Candidate, source AnswerSource) *Candidate {
	return &Candidate{spec: spec, source: source, logger: logx.NewLogger("candidate")}
}

// NewActor wraps c in a session-wide actor starting in round.
func (c *Candidate) NewActor(cfg actor.Config, round plan.Round) *actor.Actor {
	c.mu.Lock()
	c.round = round
	c.mu.Unlock()
	cfg.Identity = actor.Identity{Role: proto.RoleCandidate, Name: c.spec.Name, Round: round}
	cfg.Scope = actor.SessionWide
	return actor.New(cfg, c)
}

// OnRoundChanged implements actor.RoundHook.
func (c *Candidate) OnRoundChanged(round plan.Round) {
	c.mu.Lock()
	c.round = round
	c.mu.Unlock()
	c.logger.Info("moving on to %s", round)
}

// React implements actor.Reactor.
func (c *Candidate) React(ctx context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error) {
	c.mu.Lock()
	history := make([]memory.Turn, len(c.history))
	copy(history, c.history)
	c.mu.Unlock()

	ans, err := c.source.Answer(ctx, msg, history)
	if err != nil {
		return nil, fmt.Errorf("candidate answer: %w", err)
	}
	if len(ans.Lines) == 0 && ans.Code == "" {
		return nil, ErrEmptyAnswer
	}

	now := time.Now().UTC()
	c.mu.Lock()
	for _, line := range ans.Lines {
		c.history = append(c.history, memory.Turn{Speaker: c.spec.Name, Role: string(proto.RoleCandidate), Content: line, At: now})
	}
	if ans.Code != "" {
		c.lastCode = ans.Code
	}
	c.mu.Unlock()

	return &proto.ReplyPayload{Lines: ans.Lines, Code: ans.Code}, nil
}

// LastCode returns the most recent code the candidate submitted.
func (c *Candidate) LastCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode
}

// Round returns the round the candidate is currently in.
func (c *Candidate) Round() plan.Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}
