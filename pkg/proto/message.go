// Package proto defines the envelope exchanged between interview actors and the
// tagged union of payloads it carries.
package proto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"interviewsim/pkg/plan"
)

// Role identifies a kind of actor. PANELIST is the only role with several instances.
type Role string

// Actor roles.
const (
	RoleOrchestrator    Role = "ORCHESTRATOR"
	RolePanelist        Role = "PANELIST"
	RoleCandidate       Role = "CANDIDATE"
	RoleActivityMonitor Role = "ACTIVITY_MONITOR"
	RoleEvaluator       Role = "EVALUATOR"
	RoleAll             Role = "ALL" // broadcast receiver, system payloads only
)

var validRoles = map[Role]bool{
	RoleOrchestrator:    true,
	RolePanelist:        true,
	RoleCandidate:       true,
	RoleActivityMonitor: true,
	RoleEvaluator:       true,
	RoleAll:             true,
}

// ParseRole converts a string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !validRoles[r] {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

func (r Role) String() string {
	return string(r)
}

// MultiInstance reports whether several actors may share this role.
func (r Role) MultiInstance() bool {
	return r == RolePanelist
}

// Envelope is the unit of communication between actors.
type Envelope struct {
	ID        string    `json:"id"`
	Sender    Role      `json:"sender"`
	Receiver  Role      `json:"receiver"`
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"-"`
}

// NewEnvelope stamps a fresh envelope.
func NewEnvelope(sender, receiver Role, payload Payload) *Envelope {
	return &Envelope{
		ID:        uuid.New().String(),
		Sender:    sender,
		Receiver:  receiver,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Broadcast builds a system envelope from the orchestrator to every actor.
func Broadcast(signal Signal, round plan.Round) *Envelope {
	return NewEnvelope(RoleOrchestrator, RoleAll, &SystemPayload{Signal: signal, Round: round})
}

// Validate checks roles and the broadcast rule.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope has no id")
	}
	if !validRoles[e.Sender] || e.Sender == RoleAll {
		return fmt.Errorf("envelope %s: invalid sender %q", e.ID, e.Sender)
	}
	if !validRoles[e.Receiver] {
		return fmt.Errorf("envelope %s: invalid receiver %q", e.ID, e.Receiver)
	}
	if e.Payload == nil {
		return fmt.Errorf("envelope %s: missing payload", e.ID)
	}
	if _, ok := e.Payload.(*SystemPayload); e.Receiver == RoleAll && !ok {
		return fmt.Errorf("envelope %s: only system payloads may be broadcast", e.ID)
	}
	return nil
}

// Describe renders a compact one-line form for logs.
func (e *Envelope) Describe() string {
	kind := PayloadKind("none")
	if e.Payload != nil {
		kind = e.Payload.Kind()
	}
	return fmt.Sprintf("%s %s->%s %s", shortID(e.ID), e.Sender, e.Receiver, kind)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type wireEnvelope struct {
	ID        string       `json:"id"`
	Sender    Role         `json:"sender"`
	Receiver  Role         `json:"receiver"`
	CreatedAt time.Time    `json:"created_at"`
	Payload   *wirePayload `json:"payload"`
}

// MarshalJSON encodes the payload as a {"kind", "data"} union.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{ID: e.ID, Sender: e.Sender, Receiver: e.Receiver, CreatedAt: e.CreatedAt}
	if e.Payload != nil {
		wp, err := encodePayload(e.Payload)
		if err != nil {
			return nil, err
		}
		w.Payload = wp
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the union; unknown kinds are an error.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	e.ID, e.Sender, e.Receiver, e.CreatedAt = w.ID, w.Sender, w.Receiver, w.CreatedAt
	e.Payload = nil
	if w.Payload == nil {
		return nil
	}
	p, err := decodePayload(w.Payload)
	if err != nil {
		return fmt.Errorf("envelope %s: %w", w.ID, err)
	}
	e.Payload = p
	return nil
}
