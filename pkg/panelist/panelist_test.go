package panelist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewsim/pkg/actor"
	"interviewsim/pkg/generate"
	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

type stubGen struct {
	replies []generate.Reply
	errs    []error
	reqs    []*generate.Request
}

func (s *stubGen) Generate(_ context.Context, req *generate.Request) (generate.Reply, error) {
	s.reqs = append(s.reqs, req)
	i := len(s.reqs) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return generate.DefaultReply(), s.errs[i]
	}
	return s.replies[i], nil
}

type profile struct{}

func (profile) CandidateName() string    { return "Sam" }
func (profile) CandidateProfile() string { return "Backend engineer" }
func (profile) AppliedRole() string      { return "Staff Engineer" }

func TestReactRecordsHistory(t *testing.T) {
	gen := &stubGen{replies: []generate.Reply{
		{Lines: []string{"Welcome Sam.", "Shall we start?"}},
		{Lines: []string{"Next question."}},
	}}
	p := New(plan.Panelist{Name: "Alice", Round: "ROUND_1", Persona: "Warm and curious."}, gen, profile{})
	msg := &proto.MasterPayload{Round: "ROUND_1", Topic: "Intro", Subtopic: "Welcome", Section: "greet", Speaker: "Alice"}

	reply, err := p.React(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome Sam.", "Shall we start?"}, reply.Lines)
	assert.Len(t, p.History(), 2)

	_, err = p.React(context.Background(), msg)
	require.NoError(t, err)
	require.Len(t, gen.reqs, 2)
	assert.Len(t, gen.reqs[1].History, 2, "second request sees earlier turns")
	assert.Contains(t, gen.reqs[0].Instructions, "Warm and curious.")
	assert.Contains(t, gen.reqs[0].Instructions, "Staff Engineer")
	assert.True(t, gen.reqs[0].RequireLines)
}

func TestReactErrorLeavesHistory(t *testing.T) {
	gen := &stubGen{errs: []error{errors.New("down")}, replies: []generate.Reply{{}}}
	p := New(plan.Panelist{Name: "Bob", Round: "ROUND_2"}, gen, nil)

	_, err := p.React(context.Background(), &proto.MasterPayload{Round: "ROUND_2", Speaker: "Bob"})
	assert.Error(t, err)
	assert.Empty(t, p.History())
}

func TestNewActorIsRoundBound(t *testing.T) {
	p := New(plan.Panelist{Name: "Bob", Round: "ROUND_2"}, &stubGen{}, nil)
	a := p.NewActor(actor.Config{})
	assert.Equal(t, actor.Identity{Role: proto.RolePanelist, Name: "Bob", Round: "ROUND_2"}, a.Identity())
	assert.Equal(t, "PANELIST:Bob@ROUND_2", a.ID())
}
