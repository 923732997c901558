package policy

import (
	"context"
	"fmt"
	"time"

	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
)

// JudgeContext is what a completion judge may look at.
type JudgeContext struct {
	Round            string
	Topic            string
	Subtopic         string
	Section          string
	Turns            int
	CandidateReplies int
	Remaining        time.Duration
	Dialog           []memory.Turn
}

// CompletionJudge decides whether the current section is finished.
type CompletionJudge interface {
	SectionDone(ctx context.Context, jc *JudgeContext) (bool, error)
}

// TurnBudget finishes a section after a number of candidate replies.
type TurnBudget struct {
	CandidateReplies int
}

// SectionDone implements CompletionJudge.
func (t TurnBudget) SectionDone(_ context.Context, jc *JudgeContext) (bool, error) {
	need := t.CandidateReplies
	if need < 1 {
		need = 1
	}
	return jc.CandidateReplies >= need, nil
}

// ModelJudge asks the model once the candidate has replied at least once. Failures fall
// back to the turn budget.
type ModelJudge struct {
	gen      *generate.Generator
	fallback TurnBudget
	logger   *logx.Logger
}

// NewModelJudge creates a model-backed judge.
func NewModelJudge(gen *generate.Generator, fallback TurnBudget) *ModelJudge {
	return &ModelJudge{gen: gen, fallback: fallback, logger: logx.NewLogger("judge-policy")}
}

// SectionDone implements CompletionJudge.
func (m *ModelJudge) SectionDone(ctx context.Context, jc *JudgeContext) (bool, error) {
	if jc.CandidateReplies == 0 {
		return false, nil
	}
	reply, err := m.gen.Generate(ctx, &generate.Request{
		Instructions: "You track an interview agenda and decide whether the current section has been covered.",
		History:      jc.Dialog,
		HistoryTitle: "Conversation so far",
		Notes: []string{
			fmt.Sprintf("Topic: %s / %s, section %s. Turns so far: %d.", jc.Topic, jc.Subtopic, jc.Section, jc.Turns),
			"Set \"done\" to true when the section has been adequately discussed.",
		},
		Keys: []string{"done"},
	})
	if err != nil {
		m.logger.Warn("judge model failed, using turn budget: %v", err)
		return m.fallback.SectionDone(ctx, jc)
	}
	return reply.Done, nil
}
