// Package tools defines the closed set of capabilities the sales agent can invoke
// and the dispatcher that executes them against a session.
package tools

import "salesagent/pkg/agenttypes"

// Tool names understood by the sales agent.
const (
	ToolSearchCaseStudies   = "search_company_case_studies"
	ToolSearchTechnical     = "search_technical_capabilities"
	ToolSearchPricing       = "search_pricing_models"
	ToolSearchProfile       = "search_company_profile"
	ToolSearchKnowledgeBase = "search_knowledge_base"
	ToolUpdateContext       = "update_context"
	ToolGenerateResponse    = "generate_response"
	ToolEndConversation     = "end_conversation"
	ToolUnactionable        = "report_task_unactionable"
	ToolDelegateOps         = "delegate_to_ops_agent"
)

// Call is a validated tool invocation. The set of implementations is closed.
type Call interface {
	// Name returns the tool name the call was resolved from.
	Name() string
	call()
}

// SearchCall queries one knowledge corpus.
type SearchCall struct {
	Tool   string
	Corpus agenttypes.Corpus
	Tag    string
	Input  string
}

// ContextUpdateCall merges advisory updates into the session guidance.
type ContextUpdateCall struct {
	Update agenttypes.Guidance
}

// RespondCall emits a reply and ends the turn.
type RespondCall struct {
	Answer string
}

// EndConversationCall emits a closing reply and ends the conversation.
type EndConversationCall struct {
	Answer string
}

// UnactionableCall reports that the request cannot be acted upon.
type UnactionableCall struct {
	Reason string
}

// DelegateCall hands an operational task to the ops agent.
type DelegateCall struct {
	Task string
}

func (c SearchCall) Name() string          { return c.Tool }
func (c ContextUpdateCall) Name() string   { return ToolUpdateContext }
func (c RespondCall) Name() string         { return ToolGenerateResponse }
func (c EndConversationCall) Name() string { return ToolEndConversation }
func (c UnactionableCall) Name() string    { return ToolUnactionable }
func (c DelegateCall) Name() string        { return ToolDelegateOps }

func (SearchCall) call()          {}
func (ContextUpdateCall) call()   {}
func (RespondCall) call()         {}
func (EndConversationCall) call() {}
func (UnactionableCall) call()    {}
func (DelegateCall) call()        {}

// Updates returns the context update as the map recorded in the action log.
func (c ContextUpdateCall) Updates() map[string]any {
	updates := make(map[string]any)
	if c.Update.Stage != "" {
		updates["stage"] = string(c.Update.Stage)
	}
	if c.Update.Advice != "" {
		updates["stage_guidance"] = c.Update.Advice
	}
	if len(c.Update.Scores) > 0 {
		updates["scores"] = c.Update.Scores
	}
	if len(c.Update.Signals) > 0 {
		updates["buying_signals"] = c.Update.Signals
	}
	if len(c.Update.Objections) > 0 {
		updates["objections"] = c.Update.Objections
	}
	if len(c.Update.Notes) > 0 {
		updates["notes"] = c.Update.Notes
	}
	return updates
}
