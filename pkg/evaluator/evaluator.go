// Package evaluator implements the evaluator actor, which scores the candidate against a
// topic's criteria once the topic completes.
package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// Generator produces structured replies.
type Generator interface {
	Generate(ctx context.Context, req *generate.Request) (generate.Reply, error)
}

// Evaluation is the verdict recorded for one topic.
type Evaluation struct {
	Round   plan.Round `json:"round"`
	Topic   string     `json:"topic"`
	Verdict []string   `json:"verdict"`
	Score   *float64   `json:"score,omitempty"`
	At      time.Time  `json:"at"`
}

// Score bounds.
const (
	MinScore = 1.0
	MaxScore = 5.0
)

// Evaluator is the evaluator reactor.
type Evaluator struct {
	gen    Generator
	logger *logx.Logger

	mu          sync.Mutex
	round       plan.Round
	pending     map[string]bool
	evaluations []Evaluation
}

// New creates an evaluator.
func New(gen Generator) *Evaluator {
	return &Evaluator{
		gen:     gen,
		logger:  logx.NewLogger("evaluator"),
		pending: make(map[string]bool),
	}
}

// NewActor wraps e in a session-wide actor starting in round.
func (e *Evaluator) NewActor(cfg actor.Config, round plan.Round) *actor.Actor {
	e.mu.Lock()
	e.round = round
	e.mu.Unlock()
	cfg.Identity = actor.Identity{Role: proto.RoleEvaluator, Round: round}
	cfg.Scope = actor.SessionWide
	return actor.New(cfg, e)
}

// OnRoundChanged implements actor.RoundHook.
func (e *Evaluator) OnRoundChanged(round plan.Round) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round = round
}

func pendingKey(round plan.Round, topic string) string {
	return string(round) + "/" + topic
}

// React implements actor.Reactor. Only EVALUATE turns produce a verdict.
func (e *Evaluator) React(ctx context.Context, msg *proto.MasterPayload) (*proto.ReplyPayload, error) {
	if msg.Purpose != proto.PurposeEvaluate {
		return &proto.ReplyPayload{Lines: []string{"No evaluation requested."}}, nil
	}

	key := pendingKey(msg.Round, msg.Topic)
	e.mu.Lock()
	e.pending[key] = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, key)
		e.mu.Unlock()
	}()

	reply, err := e.gen.Generate(ctx, &generate.Request{
		Instructions: "You are the evaluator on a hiring panel. Judge the candidate's performance on the topic " +
			"against each criterion. Give a score from 1 to 5 and a short verdict per criterion.",
		Payload:      msg,
		History:      msg.TopicDialog,
		HistoryTitle: "Topic dialog",
		Notes:        criteriaNotes(msg.EvaluationCriteria),
		Keys:         []string{"lines", "score", "verdict"},
		RequireLines: true,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", key, err)
	}

	score := clampScore(reply.Score)
	verdict := reply.Verdict
	if len(verdict) == 0 {
		verdict = reply.Lines
	}
	ev := Evaluation{Round: msg.Round, Topic: msg.Topic, Verdict: verdict, Score: score, At: time.Now().UTC()}

	e.mu.Lock()
	e.evaluations = append(e.evaluations, ev)
	e.mu.Unlock()
	e.logger.Info("evaluated %s: %s", key, formatScore(score))

	return &proto.ReplyPayload{Lines: reply.Lines, Score: score}, nil
}

func criteriaNotes(criteria []string) []string {
	if len(criteria) == 0 {
		return []string{"Criteria: overall communication and technical depth."}
	}
	return []string{"Criteria:\n- " + strings.Join(criteria, "\n- ")}
}

func clampScore(s *float64) *float64 {
	if s == nil {
		return nil
	}
	v := *s
	if v < MinScore {
		v = MinScore
	}
	if v > MaxScore {
		v = MaxScore
	}
	return &v
}

func formatScore(s *float64) string {
	if s == nil {
		return "unscored"
	}
	return fmt.Sprintf("%.1f/5", *s)
}

// Evaluations returns every recorded evaluation in order.
func (e *Evaluator) Evaluations() []Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Evaluation, len(e.evaluations))
	copy(out, e.evaluations)
	return out
}

// Pending returns the round/topic keys currently being evaluated, sorted.
func (e *Evaluator) Pending() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.pending))
	for k := range e.pending {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Round returns the round the evaluator currently serves.
func (e *Evaluator) Round() plan.Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}
