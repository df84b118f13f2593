package agenttypes

// State represents the current state of turn orchestration in the state machine.
type State int

const (
	// StateReason - Invoking the language model for the next decision (initial state)
	StateReason State = iota
	// StateDispatch - Executing the tool chosen by the latest reasoning
	StateDispatch
	// StateGuidance - Running the periodic meta-reasoning pass
	StateGuidance
	// StateEndTurn - Turn finalized; control returns to the caller awaiting user input
	StateEndTurn
	// StateEndConversation - Conversation terminated; proceeds to finalization and halts
	StateEndConversation
)

// String returns a human-readable representation of the orchestration state.
func (s State) String() string {
	switch s {
	case StateReason:
		return "Reason"
	case StateDispatch:
		return "Dispatch"
	case StateGuidance:
		return "Guidance"
	case StateEndTurn:
		return "EndTurn"
	case StateEndConversation:
		return "EndConversation"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state ends a state machine run.
func (s State) IsTerminal() bool {
	return s == StateEndTurn || s == StateEndConversation
}
