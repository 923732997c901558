package orchestrator

import (
	"fmt"
)

// State is one step of the scheduler.
type State string

// Scheduler states. One pass from SELECT_TOPIC to ADVANCE is one turn.
const (
	StateIdle           State = "IDLE"
	StateSelectTopic    State = "SELECT_TOPIC"
	StateSelectSubtopic State = "SELECT_SUBTOPIC"
	StateSelectSection  State = "SELECT_SECTION"
	StateSelectSpeaker  State = "SELECT_SPEAKER"
	StateDispatch       State = "DISPATCH"
	StateAwaitReply     State = "AWAIT_REPLY"
	StateRecord         State = "RECORD"
	StateAdvance        State = "ADVANCE"
	StateRoundDone      State = "ROUND_DONE"
	StateDone           State = "DONE"
)

// transitions is the canonical transition map.
var transitions = map[State][]State{
	StateIdle: {StateSelectTopic, StateDone},

	// SELECT_TOPIC finds the round exhausted or descends.
	StateSelectTopic: {StateSelectSubtopic, StateRoundDone, StateDone},

	StateSelectSubtopic: {StateSelectSection, StateSelectTopic, StateDone},

	// SELECT_SECTION goes back to SELECT_TOPIC when a subtopic runs out of time.
	StateSelectSection: {StateSelectSpeaker, StateSelectTopic, StateDone},

	StateSelectSpeaker: {StateDispatch, StateDone},
	StateDispatch:      {StateAwaitReply, StateDone},
	StateAwaitReply:    {StateRecord, StateDone},
	StateRecord:        {StateAdvance, StateDone},
	StateAdvance:       {StateSelectTopic, StateDone},

	// ROUND_DONE moves to the next round or ends the session.
	StateRoundDone: {StateSelectTopic, StateDone},

	StateDone: {},
}

// ValidNextStates returns the allowed next states for a given state.
func ValidNextStates(from State) []State {
	return transitions[from]
}

// IsValidTransition reports whether from -> to is allowed.
func IsValidTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateState checks that s is a known state.
func ValidateState(s State) error {
	if _, ok := transitions[s]; !ok {
		return fmt.Errorf("invalid orchestrator state: %s", s)
	}
	return nil
}

// IsTerminalState reports whether s ends the session.
func IsTerminalState(s State) bool {
	return s == StateDone
}
