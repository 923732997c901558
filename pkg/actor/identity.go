package actor

import (
	"fmt"

	"interviewsim/pkg/plan"
	"interviewsim/pkg/proto"
)

// Identity is who an actor is: its role, its instance name and the round it serves.
type Identity struct {
	Role  proto.Role
	Name  string
	Round plan.Round
}

func (id Identity) String() string {
	if id.Role.MultiInstance() {
		return fmt.Sprintf("%s:%s@%s", id.Role, id.Name, id.Round)
	}
	return fmt.Sprintf("%s@%s", id.Role, id.Round)
}

// Key is stable for the actor's lifetime. Panelists are keyed per round because one
// name may sit on several rounds; every other role has a single instance.
func (id Identity) Key() string {
	if id.Role.MultiInstance() {
		return fmt.Sprintf("%s:%s@%s", id.Role, id.Name, id.Round)
	}
	return string(id.Role)
}

// Drop reasons reported by Accepts.
const (
	DropNone     = ""
	DropSender   = "sender"
	DropReceiver = "receiver"
	DropPayload  = "payload"
	DropRound    = "round"
	DropName     = "name"
)

// Accepts applies the acceptance rule to an inbound envelope. Ordinary traffic only
// comes from the orchestrator; an envelope must be addressed to the actor's role or be a
// system broadcast; role-addressed payloads must carry the actor's round and, for
// multi-instance roles, the actor's name. The second return value names the failed
// check.
func (id Identity) Accepts(env *proto.Envelope) (bool, string) {
	if env == nil || env.Sender != proto.RoleOrchestrator {
		return false, DropSender
	}

	if env.Receiver == proto.RoleAll {
		if _, ok := env.Payload.(*proto.SystemPayload); ok {
			return true, DropNone
		}
		return false, DropPayload
	}
	if env.Receiver != id.Role {
		return false, DropReceiver
	}

	switch p := env.Payload.(type) {
	case *proto.MasterPayload:
		if p.Round != id.Round {
			return false, DropRound
		}
		if id.Role.MultiInstance() && p.Speaker != id.Name {
			return false, DropName
		}
		return true, DropNone
	case *proto.SystemPayload:
		if p.Round != "" && p.Round != id.Round {
			return false, DropRound
		}
		return true, DropNone
	case *proto.ReplyPayload:
		return false, DropPayload
	default:
		return false, DropPayload
	}
}
