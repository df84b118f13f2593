package agent

import (
	"context"

	"github.com/charmbracelet/log"

	"salesagent/internal/logger"
	"salesagent/internal/parser"
	"salesagent/internal/prompts"
	"salesagent/internal/session"
	"salesagent/pkg/agenttypes"
)

// Guide runs the periodic guidance step. It implements statemachine.Guide.
type Guide struct {
	llm     agenttypes.LLMClient
	persona agenttypes.PersonaConfig
	logger  *log.Logger
}

// NewGuide creates a guidance step.
func NewGuide(llm agenttypes.LLMClient, persona agenttypes.PersonaConfig) *Guide {
	return &Guide{
		llm:     llm,
		persona: persona,
		logger:  logger.NewStyledLogger("Guidance"),
	}
}

// Guide replaces the session guidance with a fresh assessment. When the model
// fails the previous guidance is kept; unstructured output becomes plain advice.
func (g *Guide) Guide(ctx context.Context, st *session.State) {
	raw, err := g.llm.Invoke(ctx, prompts.Guidance(st, g.persona))
	if err != nil {
		g.logger.Warn("Guidance failed, keeping previous guidance", "turn", st.TurnCounter(), "error", err)
		return
	}

	guidance, ok := parser.DecodeGuidance(raw)
	if !ok {
		g.logger.Warn("Guidance was not structured, storing as advice", "turn", st.TurnCounter())
	}

	st.ApplyGuidance(guidance)
	g.logger.Info("Guidance updated", "turn", st.TurnCounter(), "stage", guidance.Stage)
}
