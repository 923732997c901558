package proto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"interviewsim/pkg/memory"
	"interviewsim/pkg/plan"
)

// PayloadKind is the discriminator of the payload union.
type PayloadKind string

// Payload kinds.
const (
	PayloadKindMaster PayloadKind = "master"
	PayloadKindReply  PayloadKind = "reply"
	PayloadKindSystem PayloadKind = "system"
)

// Payload is implemented only by *MasterPayload, *ReplyPayload and *SystemPayload.
// Handlers switch on the concrete type.
type Payload interface {
	Kind() PayloadKind
	sealed()
}

// Purpose tells a reactive actor what a master payload asks of it.
type Purpose string

// Master payload purposes.
const (
	PurposeTurn           Purpose = "TURN"
	PurposeActivityUpdate Purpose = "ACTIVITY_UPDATE"
	PurposeEvaluate       Purpose = "EVALUATE"
)

// MasterPayload carries everything an addressed actor needs to produce its reply.
//
//nolint:govet // Logical grouping is more important than field alignment.
type MasterPayload struct {
	Purpose             Purpose       `json:"purpose"`
	Round               plan.Round    `json:"round"`
	Topic               string        `json:"topic"`
	TopicDescription    string        `json:"topic_description,omitempty"`
	Subtopic            string        `json:"subtopic"`
	SubtopicDescription string        `json:"subtopic_description,omitempty"`
	Section             string        `json:"section"`
	Speaker             string        `json:"speaker"`
	PreviousSpeaker     string        `json:"previous_speaker,omitempty"`
	AddressPrevious     bool          `json:"address_previous,omitempty"`
	SubtopicDialog      []memory.Turn `json:"subtopic_dialog,omitempty"`
	TopicDialog         []memory.Turn `json:"topic_dialog,omitempty"`
	CompletedSummaries  []string      `json:"completed_summaries,omitempty"`
	TopicSummary        []string      `json:"topic_summary,omitempty"`
	LastCompleted       string        `json:"last_completed,omitempty"`
	RemainingTime       time.Duration `json:"remaining_time,omitempty"`
	EvaluationCriteria  []string      `json:"evaluation_criteria,omitempty"`
	ActivityProgress    []string      `json:"activity_progress,omitempty"`
	CandidateCode       string        `json:"candidate_code,omitempty"`
}

// Kind implements Payload.
func (*MasterPayload) Kind() PayloadKind { return PayloadKindMaster }
func (*MasterPayload) sealed()           {}

// ReplyPayload is an actor's answer to a master payload. ReplyTo is the id of the
// envelope being answered.
type ReplyPayload struct {
	ReplyTo  string     `json:"reply_to,omitempty"`
	Purpose  Purpose    `json:"purpose"`
	Speaker  string     `json:"speaker"`
	Role     Role       `json:"role"`
	Round    plan.Round `json:"round"`
	Lines    []string   `json:"lines"`
	Code     string     `json:"code,omitempty"`
	Score    *float64   `json:"score,omitempty"`
	Fallback bool       `json:"fallback,omitempty"`
}

// Kind implements Payload.
func (*ReplyPayload) Kind() PayloadKind { return PayloadKindReply }
func (*ReplyPayload) sealed()           {}

// Signal is a system broadcast.
type Signal string

// System signals.
const (
	SignalStart        Signal = "START"
	SignalEnd          Signal = "END"
	SignalRoundChanged Signal = "ROUND_CHANGED"
)

// SystemPayload is a control broadcast. Round is the round the signal refers to;
// for ROUND_CHANGED it is the new round.
type SystemPayload struct {
	Signal Signal     `json:"signal"`
	Round  plan.Round `json:"round,omitempty"`
}

// Kind implements Payload.
func (*SystemPayload) Kind() PayloadKind { return PayloadKindSystem }
func (*SystemPayload) sealed()           {}

type wirePayload struct {
	Kind PayloadKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func encodePayload(p Payload) (*wirePayload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.Kind(), err)
	}
	return &wirePayload{Kind: p.Kind(), Data: raw}, nil
}

func decodePayload(w *wirePayload) (Payload, error) {
	var p Payload
	switch w.Kind {
	case PayloadKindMaster:
		p = &MasterPayload{}
	case PayloadKindReply:
		p = &ReplyPayload{}
	case PayloadKindSystem:
		p = &SystemPayload{}
	default:
		return nil, fmt.Errorf("unknown payload kind %q", w.Kind)
	}
	if err := json.Unmarshal(w.Data, p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", w.Kind, err)
	}
	return p, nil
}

// Text joins a reply's lines with newlines.
func (r *ReplyPayload) Text() string {
	return strings.Join(r.Lines, "\n")
}
