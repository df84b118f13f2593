package statemachine

import (
	"fmt"

	"salesagent/internal/parser"
	"salesagent/internal/session"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

// Decision is the outcome of routing after a reasoning step.
type Decision struct {
	// Next is the state to enter.
	Next agenttypes.State
	// Response is the reply that closes the turn when Next is terminal.
	Response string
	// Opening is set when the turn being closed is the agent's opening.
	Opening bool
	// Reason is a short description of the rule that applied, for logging.
	Reason string
}

// Route decides the next state from the current turn's action log. It reads the
// session only and never mutates it.
//
//  1. An agent_opening as latest action ends the turn with the opening text.
//  2. No pending reasoning, or reasoning that fails to decode, goes to Dispatch.
//  3. generate_response ends the turn and end_conversation ends the conversation,
//     whatever other fields the action carries. Every other tool goes to Dispatch.
func Route(st *session.State) Decision {
	latest, ok := st.LatestAction()
	if ok && latest.Type == agenttypes.ActionAgentOpening {
		return Decision{
			Next:     agenttypes.StateEndTurn,
			Response: latest.Details.AgentResponse,
			Opening:  true,
			Reason:   "opening",
		}
	}

	reasoning, pending := tools.PendingReasoning(st)
	if !pending {
		return Decision{Next: agenttypes.StateDispatch, Reason: "no reasoning"}
	}

	descriptor, err := parser.DecodeAction(reasoning.Details.ReasoningOutput)
	if err != nil {
		return Decision{Next: agenttypes.StateDispatch, Reason: "decode failure"}
	}

	switch descriptor.Tool {
	case tools.ToolGenerateResponse:
		return Decision{Next: agenttypes.StateEndTurn, Response: answerArg(descriptor), Reason: descriptor.Tool}
	case tools.ToolEndConversation:
		return Decision{Next: agenttypes.StateEndConversation, Response: answerArg(descriptor), Reason: descriptor.Tool}
	default:
		return Decision{Next: agenttypes.StateDispatch, Reason: descriptor.Tool}
	}
}

// CadenceApplies reports whether periodic guidance is due for the given turn
// counter: the counter is a positive multiple of n. A non-positive n disables guidance.
func CadenceApplies(turnCounter, n int) bool {
	return n > 0 && turnCounter > 0 && turnCounter%n == 0
}

func answerArg(d parser.Descriptor) string {
	if s, ok := d.StringArg("answer"); ok {
		return s
	}
	if v := d.Args["answer"]; v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
