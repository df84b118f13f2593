package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/session"
	"salesagent/internal/statemachine"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

var (
	// ErrAlreadyOpened is returned when Open is called twice on one agent.
	ErrAlreadyOpened = errors.New("session already opened")

	// ErrEmptyMessage is returned when Advance receives only whitespace.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrSessionFailed wraps the turn bookkeeping violation that stopped a
	// session. Every later Open or Advance returns the same error.
	ErrSessionFailed = errors.New("session failed")
)

// Dependencies are the collaborators of one agent session.
type Dependencies struct {
	// LLM drives reasoning, guidance, the opening and the final summary.
	LLM agenttypes.LLMClient
	// Retriever serves the knowledge search tools.
	Retriever agenttypes.Retriever
	// Leads resolves the lead id given to New.
	Leads agenttypes.LeadDirectory
	// Memory loads and saves long-term memory. Optional.
	Memory agenttypes.MemoryStore
	// Delegator handles ops tasks. When nil the delegation tool is not offered.
	Delegator tools.Delegator
	// Company is the free-text company profile used in prompts.
	Company string
}

// LeadInfo is the lead's directory entry together with its long-term memory.
type LeadInfo struct {
	Lead   agenttypes.Lead         `json:"lead_data"`
	Memory agenttypes.MemoryRecord `json:"memory"`
}

// LookupLead loads the facts and memory of a lead without starting a session.
func LookupLead(ctx context.Context, leads agenttypes.LeadDirectory, memory agenttypes.MemoryStore, id string) (LeadInfo, error) {
	lead, err := leads.Lead(ctx, id)
	if err != nil {
		return LeadInfo{}, err
	}
	info := LeadInfo{Lead: lead}
	if memory != nil {
		if info.Memory, err = memory.Load(ctx, id); err != nil {
			return LeadInfo{}, fmt.Errorf("failed to load memory for %s: %w", id, err)
		}
	}
	return info, nil
}

// Agent runs one conversation with one lead. It is not safe for concurrent use.
type Agent struct {
	state     *session.State
	machine   *statemachine.StateMachine
	finalizer *Finalizer
	recorder  TurnRecorder
	opened    bool
	failed    error
	outcome   *Outcome
	logger    *log.Logger
}

// New loads the lead and its memory and prepares a session. opts configure the
// session clock and id source.
func New(ctx context.Context, leadID string, deps Dependencies, cfg agenttypes.Config, opts ...session.Option) (*Agent, error) {
	if deps.LLM == nil {
		return nil, fmt.Errorf("agent requires a language model client")
	}
	if deps.Leads == nil || deps.Retriever == nil {
		return nil, fmt.Errorf("agent requires a lead directory and a retriever")
	}

	info, err := LookupLead(ctx, deps.Leads, deps.Memory, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to start session for %s: %w", leadID, err)
	}

	st := session.New(leadID, info.Lead, deps.Company, info.Memory, opts...)
	registry := tools.NewSalesRegistry(deps.Delegator != nil)

	var guide statemachine.Guide
	if cfg.Orchestrator.GuidanceCadence > 0 {
		guide = NewGuide(deps.LLM, cfg.Persona)
	}

	machine := statemachine.NewStateMachine(
		NewReasoner(deps.LLM, registry, cfg.Persona, cfg.Orchestrator.RecentTurns),
		tools.NewDispatcher(registry, deps.Retriever, deps.Delegator),
		guide,
		cfg.Orchestrator,
	)

	a := &Agent{
		state:     st,
		machine:   machine,
		finalizer: NewFinalizer(deps.LLM, deps.Memory),
		logger:    logger.NewStyledLogger("Agent"),
	}
	if recorder, ok := deps.Memory.(TurnRecorder); ok {
		a.recorder = recorder
	}
	return a, nil
}

// Open produces the agent's opening statement. It may be called once.
func (a *Agent) Open(ctx context.Context) (string, error) {
	if a.failed != nil {
		return "", a.failed
	}
	if a.opened {
		return "", ErrAlreadyOpened
	}

	result, err := a.machine.Run(ctx, a.state)
	if err != nil {
		return "", a.fail(fmt.Errorf("failed to open session: %w", err))
	}
	a.opened = true
	a.recordTurn(ctx, result.Turn)
	return result.Response, nil
}

// Advance handles one user message and returns the agent's reply. When the
// reply ends the conversation the session is finalized; a persistence failure
// is returned alongside the reply.
func (a *Agent) Advance(ctx context.Context, text string) (string, error) {
	if a.failed != nil {
		return "", a.failed
	}
	if !a.opened {
		return "", agenttypes.ErrNotOpened
	}
	if a.state.Terminated() {
		return "", agenttypes.ErrConversationEnded
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	a.state.AppendUtterance(agenttypes.SpeakerUser, text)
	result, err := a.machine.Run(ctx, a.state)
	if err != nil {
		return "", a.fail(fmt.Errorf("turn %d failed: %w", a.state.TurnCounter(), err))
	}
	a.recordTurn(ctx, result.Turn)

	if result.Final != agenttypes.StateEndConversation {
		return result.Response, nil
	}

	a.logger.Info("Conversation ended", "session", a.state.ID, "turns", a.state.TurnCounter())
	outcome, err := a.finalizer.Finalize(ctx, a.state)
	a.outcome = &outcome
	return result.Response, err
}

// fail marks the session unusable. The transcript and any open turn are left
// as they were so the failure can be inspected or exported.
func (a *Agent) fail(err error) error {
	a.failed = fmt.Errorf("%w: %w", ErrSessionFailed, err)
	a.logger.Error("Session failed", "session", a.state.ID, "error", err)
	return a.failed
}

// Failed returns the error that stopped the session, or nil.
func (a *Agent) Failed() error {
	return a.failed
}

// Terminated reports whether the conversation has ended.
func (a *Agent) Terminated() bool {
	return a.state.Terminated()
}

// LeadInfo returns the lead facts and the memory loaded at session start.
func (a *Agent) LeadInfo() LeadInfo {
	return LeadInfo{Lead: a.state.Lead, Memory: a.state.Memory}
}

// State returns the session state for inspection and export.
func (a *Agent) State() *session.State {
	return a.state
}

// Outcome returns the finalization result once the conversation has ended.
func (a *Agent) Outcome() (Outcome, bool) {
	if a.outcome == nil {
		return Outcome{}, false
	}
	return *a.outcome, true
}

func (a *Agent) recordTurn(ctx context.Context, turn agenttypes.Turn) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.RecordTurn(ctx, a.state.ID, a.state.Lead.ID, turn); err != nil {
		a.logger.Warn("Failed to record turn", "session", a.state.ID, "turn", turn.Number, "error", err)
	}
}
