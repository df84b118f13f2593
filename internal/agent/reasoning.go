// Package agent wires the language model into the conversation state machine:
// the reasoning and guidance steps, end-of-conversation finalization and the
// Open/Advance entry points used by the CLI.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/prompts"
	"salesagent/internal/session"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

// Reasoner performs the reasoning step of a turn. It implements statemachine.Reasoner.
type Reasoner struct {
	llm         agenttypes.LLMClient
	registry    *tools.Registry
	persona     agenttypes.PersonaConfig
	recentTurns int
	logger      *log.Logger
}

// NewReasoner creates a reasoning step over the given tool catalogue.
func NewReasoner(llm agenttypes.LLMClient, registry *tools.Registry, persona agenttypes.PersonaConfig, recentTurns int) *Reasoner {
	return &Reasoner{
		llm:         llm,
		registry:    registry,
		persona:     persona,
		recentTurns: recentTurns,
		logger:      logger.NewStyledLogger("Reasoner"),
	}
}

// Reason records one reasoning attempt. An empty transcript produces the
// opening statement instead. Model failures are recorded as actions; the
// returned error is reserved for turn bookkeeping violations.
func (r *Reasoner) Reason(ctx context.Context, st *session.State) error {
	if len(st.Transcript()) == 0 {
		return r.open(ctx, st)
	}

	if last, ok := st.LastUtterance(); ok && last.Speaker == agenttypes.SpeakerUser && !st.InTurn() {
		text := last.Text
		if err := st.StartTurn(&text); err != nil {
			return err
		}
	}
	if !st.InTurn() {
		return fmt.Errorf("reasoning requested with no turn in progress: %w", agenttypes.ErrNoTurnInProgress)
	}

	prompt := prompts.Reasoning(st, r.persona, r.registry, r.recentTurns)
	output, err := r.llm.Invoke(ctx, prompt)
	if err == nil && strings.TrimSpace(output) == "" {
		err = fmt.Errorf("model returned an empty response")
	}
	if err != nil {
		r.logger.Warn("Reasoning failed", "turn", st.TurnCounter(), "error", err)
		st.Record(agenttypes.ActionLLMReasoning, agenttypes.ActionDetails{Error: err.Error()})
		st.Record(agenttypes.ActionError, agenttypes.ActionDetails{
			Error:     err.Error(),
			ErrorKind: agenttypes.ErrorKindReasoning,
		})
		return nil
	}

	r.logger.Debug("Reasoning recorded", "turn", st.TurnCounter(), "chars", len(output))
	st.Record(agenttypes.ActionLLMReasoning, agenttypes.ActionDetails{ReasoningOutput: output})
	return nil
}

// open generates the agent's first message and opens turn one with it.
func (r *Reasoner) open(ctx context.Context, st *session.State) error {
	opening, err := r.llm.Invoke(ctx, prompts.Opening(st, r.persona))
	opening = strings.TrimSpace(opening)
	if err != nil || opening == "" {
		r.logger.Warn("Opening generation failed, using fallback greeting", "session", st.ID, "error", err)
		opening = FallbackOpening(st.Lead, r.persona)
	}

	st.AppendUtterance(agenttypes.SpeakerAgent, opening)
	return st.StartTurn(nil)
}

// FallbackOpening is the greeting used when the model cannot produce one.
func FallbackOpening(lead agenttypes.Lead, persona agenttypes.PersonaConfig) string {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s, this is %s from %s. How can I help you today?", name, persona.AgentName, persona.CompanyName)
}
