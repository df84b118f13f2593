package session

import (
	"fmt"

	"salesagent/pkg/agenttypes"
)

// StartTurn opens a new turn. A nil trigger records an agent_opening action that
// references the last transcript entry; otherwise a user_query action is recorded.
// It returns ErrTurnInProgress if the previous turn was never finalized; callers
// must treat that as an orchestration bug.
func (s *State) StartTurn(trigger *string) error {
	if len(s.current) > 0 {
		return fmt.Errorf("start turn %d: %w", s.turnCounter+1, agenttypes.ErrTurnInProgress)
	}

	s.turnCounter++
	s.current = make([]agenttypes.Action, 0, 4)

	if trigger == nil {
		opening := ""
		if last, ok := s.LastUtterance(); ok {
			opening = last.Text
		}
		s.Record(agenttypes.ActionAgentOpening, agenttypes.ActionDetails{AgentResponse: opening})
		return nil
	}

	s.Record(agenttypes.ActionUserQuery, agenttypes.ActionDetails{Query: *trigger})
	return nil
}

// Record appends an action with a fresh timestamp to the current turn and
// returns a copy of it. The buffer is created if absent.
func (s *State) Record(actionType agenttypes.ActionType, details agenttypes.ActionDetails) agenttypes.Action {
	action := agenttypes.Action{
		ID:        s.newID(),
		Timestamp: s.now(),
		Type:      actionType,
		Details:   details,
	}
	s.current = append(s.current, action)
	return action.Clone()
}

// Finalize closes the current turn with response, appends it to the history
// and clears the buffer.
func (s *State) Finalize(response string) (agenttypes.Turn, error) {
	if len(s.current) == 0 {
		return agenttypes.Turn{}, agenttypes.ErrNoTurnInProgress
	}

	s.Record(agenttypes.ActionFinalResponse, agenttypes.ActionDetails{Response: response})

	turn := agenttypes.Turn{
		Number:        s.turnCounter,
		Query:         originatingQuery(s.current),
		Actions:       s.current,
		FinalResponse: response,
		Summary:       summarizeActions(s.current),
		Timestamp:     s.now(),
	}
	s.history = append(s.history, turn)
	s.current = nil

	return turn.Clone(), nil
}

// InTurn reports whether a turn is in progress.
func (s *State) InTurn() bool {
	return len(s.current) > 0
}

// TurnCounter returns the number of turns started so far.
func (s *State) TurnCounter() int {
	return s.turnCounter
}

// CurrentActions returns a copy of the in-flight action buffer.
func (s *State) CurrentActions() []agenttypes.Action {
	if s.current == nil {
		return nil
	}
	out := make([]agenttypes.Action, len(s.current))
	for i, a := range s.current {
		out[i] = a.Clone()
	}
	return out
}

// LatestAction returns the most recent action of the current turn.
func (s *State) LatestAction() (agenttypes.Action, bool) {
	if len(s.current) == 0 {
		return agenttypes.Action{}, false
	}
	return s.current[len(s.current)-1].Clone(), true
}

// LatestReasoning returns the most recent llm_reasoning action of the current turn.
func (s *State) LatestReasoning() (agenttypes.Action, bool) {
	for i := len(s.current) - 1; i >= 0; i-- {
		if s.current[i].Type == agenttypes.ActionLLMReasoning {
			return s.current[i].Clone(), true
		}
	}
	return agenttypes.Action{}, false
}

// History returns deep copies of the finalized turns.
func (s *State) History() []agenttypes.Turn {
	out := make([]agenttypes.Turn, len(s.history))
	for i, t := range s.history {
		out[i] = t.Clone()
	}
	return out
}

func originatingQuery(actions []agenttypes.Action) string {
	for _, a := range actions {
		if a.Type == agenttypes.ActionUserQuery {
			return a.Details.Query
		}
	}
	return ""
}
