package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/generate"
	"interviewsim/pkg/llm"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/proto"
)

func scriptedGenerator(responses ...string) (*generate.Generator, *llm.ScriptedClient) {
	client := llm.NewScriptedClient(nil)
	client.Enqueue(responses...)
	return generate.New(client, nil, generate.Config{}), client
}

func TestRoundRobinAlternates(t *testing.T) {
	rr := NewRoundRobin()
	ctx := context.Background()
	sc := &SpeakerContext{Panelists: []string{"Bob", "Carol"}, Candidate: "Sam"}

	d, err := rr.Next(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, Decision{Role: proto.RolePanelist, Name: "Bob"}, d)

	sc.LastRole, sc.LastSpeaker, sc.TurnInSection = proto.RolePanelist, "Bob", 1
	d, _ = rr.Next(ctx, sc)
	assert.Equal(t, Decision{Role: proto.RoleCandidate, Name: "Sam", AddressPrevious: true}, d)

	sc.LastRole, sc.LastSpeaker, sc.TurnInSection = proto.RoleCandidate, "Sam", 2
	d, _ = rr.Next(ctx, sc)
	assert.Equal(t, Decision{Role: proto.RolePanelist, Name: "Carol", AddressPrevious: true}, d)

	sc.TurnInSection = 0
	d, _ = rr.Next(ctx, sc)
	assert.Equal(t, Decision{Role: proto.RolePanelist, Name: "Bob"}, d)
}

func TestRoundRobinWithoutPanelists(t *testing.T) {
	d, err := NewRoundRobin().Next(context.Background(), &SpeakerContext{Candidate: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, proto.RoleCandidate, d.Role)
}

func TestModelSpeaker(t *testing.T) {
	gen, _ := scriptedGenerator(`{"next": "carol", "address_previous": true}`, `{"next": "nobody"}`, `{"next": "Sam"}`)
	m := NewModelSpeaker(gen)
	sc := &SpeakerContext{Panelists: []string{"Bob", "Carol"}, Candidate: "Sam"}

	d, err := m.Next(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, Decision{Role: proto.RolePanelist, Name: "Carol", AddressPrevious: true}, d)

	d, err = m.Next(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, Decision{Role: proto.RolePanelist, Name: "Bob"}, d, "unknown name falls back to round-robin")

	d, err = m.Next(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, proto.RoleCandidate, d.Role)
}

func TestTurnBudget(t *testing.T) {
	ctx := context.Background()
	done, err := TurnBudget{CandidateReplies: 2}.SectionDone(ctx, &JudgeContext{CandidateReplies: 1})
	require.NoError(t, err)
	assert.False(t, done)

	done, _ = TurnBudget{CandidateReplies: 2}.SectionDone(ctx, &JudgeContext{CandidateReplies: 2})
	assert.True(t, done)

	done, _ = TurnBudget{}.SectionDone(ctx, &JudgeContext{CandidateReplies: 1})
	assert.True(t, done)
}

func TestModelJudge(t *testing.T) {
	gen, client := scriptedGenerator(`{"done": true}`)
	client.EnqueueError(errors.New("down"))
	j := NewModelJudge(gen, TurnBudget{CandidateReplies: 3})
	ctx := context.Background()

	done, err := j.SectionDone(ctx, &JudgeContext{CandidateReplies: 0})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, client.Requests(), "no model call before the candidate spoke")

	done, _ = j.SectionDone(ctx, &JudgeContext{CandidateReplies: 1})
	assert.True(t, done)

	done, _ = j.SectionDone(ctx, &JudgeContext{CandidateReplies: 1})
	assert.False(t, done, "fallback budget needs three replies")
}

func TestExtractive(t *testing.T) {
	dialog := []memory.Turn{
		{Speaker: "Alice", Content: "Welcome"},
		{Speaker: "Sam", Content: "Thanks"},
		{Speaker: "Alice", Content: "Tell me about yourself"},
		{Speaker: "Sam", Content: "I build distributed systems"},
	}
	lines, err := Extractive{MaxLines: 2}.Summarize(context.Background(), &SummaryContext{Topic: "Intro", Subtopic: "Welcome", Dialog: dialog})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice: Tell me about yourself", "Sam: I build distributed systems"}, lines)

	lines, _ = Extractive{MaxLines: 1, MaxChars: 8}.Summarize(context.Background(), &SummaryContext{Dialog: dialog})
	assert.Equal(t, []string{"Sam: I …"}, lines)

	lines, _ = Extractive{}.Summarize(context.Background(), &SummaryContext{Topic: "Intro", Subtopic: "Welcome"})
	assert.Equal(t, []string{"Intro / Welcome: nothing discussed."}, lines)

	lines, _ = Extractive{}.Summarize(context.Background(), &SummaryContext{Topic: "Intro", Previous: []string{"p"}})
	assert.Equal(t, []string{"p"}, lines)
}

func TestModelSummarizer(t *testing.T) {
	gen, _ := scriptedGenerator(`{"summary": "Sam introduced themselves."}`, `{"lines": ["no summary key"]}`)
	s := NewModelSummarizer(gen)
	sc := &SummaryContext{Topic: "Intro", Dialog: []memory.Turn{{Speaker: "Sam", Content: "Hi"}}}

	lines, err := s.Summarize(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sam introduced themselves."}, lines)

	lines, err = s.Summarize(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sam: Hi"}, lines)
}
