// Package agenttypes defines the shared types and collaborator interfaces for the sales agent.
// This file contains the action log types: the closed set of action kinds, their payloads,
// and the finalized turn record built from them.
package agenttypes

import "time"

// ActionType identifies the kind of event recorded in a turn's action log.
type ActionType string

const (
	// ActionUserQuery records the user utterance that started a turn.
	ActionUserQuery ActionType = "user_query"
	// ActionAgentOpening records the agent-initiated opening statement.
	ActionAgentOpening ActionType = "agent_opening"
	// ActionLLMReasoning records one raw reasoning attempt from the language model.
	ActionLLMReasoning ActionType = "llm_reasoning"
	// ActionToolExecution records a dispatched tool and its result.
	ActionToolExecution ActionType = "tool_execution"
	// ActionContextUpdate records a merge into the session guidance fields.
	ActionContextUpdate ActionType = "context_update"
	// ActionError records a locally recovered failure.
	ActionError ActionType = "error"
	// ActionFinalResponse records the response that closed the turn.
	ActionFinalResponse ActionType = "final_response"
)

// AllActionTypes returns every action type in declaration order.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionUserQuery,
		ActionAgentOpening,
		ActionLLMReasoning,
		ActionToolExecution,
		ActionContextUpdate,
		ActionError,
		ActionFinalResponse,
	}
}

// IsValid reports whether t is one of the known action types.
func (t ActionType) IsValid() bool {
	for _, known := range AllActionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ErrorKind classifies the failure carried by an error action.
type ErrorKind string

const (
	// ErrorKindReasoning means the language model call failed or returned nothing usable.
	ErrorKindReasoning ErrorKind = "reasoning_failure"
	// ErrorKindDecode means the reasoning text held no parseable structured block.
	ErrorKindDecode ErrorKind = "decode_failure"
	// ErrorKindUnknownTool means the decoded tool name is not registered.
	ErrorKindUnknownTool ErrorKind = "unknown_tool"
	// ErrorKindToolInvocation means a registered tool rejected its arguments or failed.
	ErrorKindToolInvocation ErrorKind = "tool_invocation_failure"
	// ErrorKindDispatchLimit means the per-turn dispatch bound was exceeded.
	ErrorKindDispatchLimit ErrorKind = "dispatch_limit_exceeded"
	// ErrorKindNoReasoning means dispatch ran before any reasoning existed in the turn.
	ErrorKindNoReasoning ErrorKind = "no_reasoning"
)

// ActionDetails is the type-specific payload of an Action.
// Only the fields relevant to the action type are populated.
type ActionDetails struct {
	Query           string         `json:"query,omitempty"`
	AgentResponse   string         `json:"agent_response,omitempty"`
	ReasoningOutput string         `json:"reasoning_output,omitempty"`
	Tool            string         `json:"tool,omitempty"`
	Input           string         `json:"input,omitempty"`
	Result          string         `json:"result,omitempty"`
	Thought         string         `json:"thought,omitempty"`
	Error           string         `json:"error,omitempty"`
	ErrorKind       ErrorKind      `json:"error_kind,omitempty"`
	AttemptedTool   string         `json:"attempted_tool,omitempty"`
	Updates         map[string]any `json:"updates,omitempty"`
	Response        string         `json:"response,omitempty"`
}

// Action is one immutable event within a turn.
type Action struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      ActionType    `json:"action_type"`
	Details   ActionDetails `json:"details"`
}

// Clone returns a copy of the action that shares no mutable state with a.
func (a Action) Clone() Action {
	out := a
	if a.Details.Updates != nil {
		out.Details.Updates = make(map[string]any, len(a.Details.Updates))
		for k, v := range a.Details.Updates {
			out.Details.Updates[k] = v
		}
	}
	return out
}

// Turn is a finalized unit of conversation: everything between a trigger and
// the response that closed it.
type Turn struct {
	Number        int       `json:"turn_number"`
	Query         string    `json:"user_query"`
	Actions       []Action  `json:"actions_taken"`
	FinalResponse string    `json:"final_response"`
	Summary       string    `json:"turn_summary"`
	Timestamp     time.Time `json:"timestamp"`
}

// Clone returns a deep copy of the turn.
func (t Turn) Clone() Turn {
	out := t
	out.Actions = make([]Action, len(t.Actions))
	for i, a := range t.Actions {
		out.Actions[i] = a.Clone()
	}
	return out
}
