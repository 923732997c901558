// Package policy holds the orchestrator's pluggable decisions: who speaks next, when a
// section is done, and how finished subtopics and topics are summarised. Each decision has
// a deterministic implementation and a model-backed one that falls back to it.
package policy

import (
	"context"
	"fmt"
	"strings"

	"interviewsim/pkg/generate"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/memory"
	"interviewsim/pkg/proto"
)

// SpeakerContext is what a speaker policy may look at.
type SpeakerContext struct {
	Round         string
	Topic         string
	Subtopic      string
	Section       string
	Panelists     []string
	Candidate     string
	LastSpeaker   string
	LastRole      proto.Role
	TurnInSection int
	Dialog        []memory.Turn
}

// Decision names the next speaker.
type Decision struct {
	Role            proto.Role
	Name            string
	AddressPrevious bool
}

// SpeakerPolicy picks the next speaker.
type SpeakerPolicy interface {
	Next(ctx context.Context, sc *SpeakerContext) (Decision, error)
}

// RoundRobin alternates panelist and candidate. Panelists take turns in declared order and
// the candidate always answers the panelist who spoke before.
type RoundRobin struct {
	next int
}

// NewRoundRobin creates a round-robin policy.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Next implements SpeakerPolicy.
func (r *RoundRobin) Next(_ context.Context, sc *SpeakerContext) (Decision, error) {
	if len(sc.Panelists) == 0 {
		return Decision{Role: proto.RoleCandidate, Name: sc.Candidate}, nil
	}
	if sc.LastRole == proto.RolePanelist && sc.TurnInSection > 0 {
		return Decision{Role: proto.RoleCandidate, Name: sc.Candidate, AddressPrevious: true}, nil
	}
	name := sc.Panelists[r.next%len(sc.Panelists)]
	r.next++
	return Decision{
		Role:            proto.RolePanelist,
		Name:            name,
		AddressPrevious: sc.LastRole == proto.RoleCandidate && sc.TurnInSection > 0,
	}, nil
}

// ModelSpeaker asks the model who should speak. Invalid answers fall back to round-robin.
type ModelSpeaker struct {
	gen      *generate.Generator
	fallback *RoundRobin
	logger   *logx.Logger
}

// NewModelSpeaker creates a model-backed speaker policy.
func NewModelSpeaker(gen *generate.Generator) *ModelSpeaker {
	return &ModelSpeaker{gen: gen, fallback: NewRoundRobin(), logger: logx.NewLogger("speaker-policy")}
}

// Next implements SpeakerPolicy.
func (m *ModelSpeaker) Next(ctx context.Context, sc *SpeakerContext) (Decision, error) {
	names := append(append([]string{}, sc.Panelists...), sc.Candidate)
	reply, err := m.gen.Generate(ctx, &generate.Request{
		Instructions: "You moderate a panel interview and decide who speaks next.",
		History:      sc.Dialog,
		HistoryTitle: "Conversation so far",
		Notes: []string{
			fmt.Sprintf("Topic: %s / %s, section %s.", sc.Topic, sc.Subtopic, sc.Section),
			fmt.Sprintf("Participants: %s. Last speaker: %s.", strings.Join(names, ", "), orNone(sc.LastSpeaker)),
			"Set \"next\" to exactly one participant name.",
		},
		Keys: []string{"next", "address_previous"},
	})
	if err != nil {
		m.logger.Warn("speaker model failed, using round-robin: %v", err)
		return m.fallback.Next(ctx, sc)
	}

	pick := strings.TrimSpace(reply.Next)
	if strings.EqualFold(pick, sc.Candidate) && sc.Candidate != "" {
		return Decision{Role: proto.RoleCandidate, Name: sc.Candidate, AddressPrevious: reply.AddressPrevious}, nil
	}
	for _, p := range sc.Panelists {
		if strings.EqualFold(pick, p) {
			return Decision{Role: proto.RolePanelist, Name: p, AddressPrevious: reply.AddressPrevious}, nil
		}
	}
	m.logger.Warn("speaker model picked unknown participant %q, using round-robin", pick)
	return m.fallback.Next(ctx, sc)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
