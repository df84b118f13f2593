package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesagent/internal/session"
	"salesagent/internal/testutils"
	"salesagent/internal/tools"
	"salesagent/pkg/agenttypes"
)

var persona = agenttypes.PersonaConfig{AgentName: "Alex", CompanyName: "DevCraft Solutions"}

func newState() *session.State {
	gen := testutils.NewGenerator(true)
	lead := agenttypes.Lead{ID: "lead_1", Name: "Jennifer Martinez", Role: "CTO", Company: "MediCore", Industry: "Healthcare",
		Extra: map[string]any{"budget": "unknown"}}
	return session.New("lead_1", lead, "DevCraft builds web platforms.",
		agenttypes.MemoryRecord{Summary: "Discussed AWS migration last month."},
		session.WithClock(gen.Now), session.WithIDGenerator(gen.NewID))
}

func TestReasoning_IncludesAllContext(t *testing.T) {
	st := newState()
	st.AppendUtterance(agenttypes.SpeakerAgent, "Hello Jennifer")
	st.AppendUtterance(agenttypes.SpeakerUser, "What does a web app cost?")
	st.AppendSnippet("[PRICING] from $20k")
	st.ApplyGuidance(agenttypes.Guidance{Stage: agenttypes.StageInterest, Scores: map[string]int{"need": 4, "budget": 2}})
	query := "What does a web app cost?"
	require.NoError(t, st.StartTurn(&query))
	st.Record(agenttypes.ActionError, agenttypes.ActionDetails{Error: "unknown tool 'launch_missiles'", ErrorKind: agenttypes.ErrorKindUnknownTool, AttemptedTool: "launch_missiles"})

	prompt := Reasoning(st, persona, tools.NewSalesRegistry(false), 3)

	for _, want := range []string{
		"You are 'Alex'",
		"Name: Jennifer Martinez",
		"budget: unknown",
		"DevCraft builds web platforms.",
		"Stage: interest",
		"Qualification scores: budget=2, need=4",
		"Discussed AWS migration last month.",
		"User: What does a web app cost?",
		"- [PRICING] from $20k",
		"No previous turns recorded.",
		"[error:unknown_tool] unknown tool 'launch_missiles' (tool: launch_missiles)",
		"### Current User Query:\nWhat does a web app cost?",
		"`search_pricing_models`",
		"```json",
	} {
		assert.Contains(t, prompt, want)
	}

	assert.Equal(t, prompt, Reasoning(st, persona, tools.NewSalesRegistry(false), 3))
}

func TestOpening(t *testing.T) {
	prompt := Opening(newState(), persona)
	assert.Contains(t, prompt, "opening message")
	assert.Contains(t, prompt, "Role: CTO")
	assert.Contains(t, prompt, "Summary of Past Interactions")
	assert.NotContains(t, prompt, "Available Actions")
}

func TestGuidance(t *testing.T) {
	st := newState()
	st.AppendUtterance(agenttypes.SpeakerUser, "We are worried about timelines")

	prompt := Guidance(st, persona)
	assert.Contains(t, prompt, "Previous Guidance:\nNone yet.")
	assert.Contains(t, prompt, "User: We are worried about timelines")
	assert.Contains(t, prompt, "lead_qualification_score")

	st.ApplyGuidance(agenttypes.Guidance{Objections: []string{"timeline"}})
	assert.Contains(t, Guidance(st, persona), "Objections: timeline")
}

func TestCatalogue(t *testing.T) {
	catalogue := Catalogue(tools.NewSalesRegistry(true))
	lines := strings.Split(strings.TrimSpace(catalogue), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "1. `search_company_case_studies`"))
	assert.Contains(t, catalogue, "keywords (string, required)")
	assert.Contains(t, catalogue, "`delegate_to_ops_agent`")
}

func TestRenderAction(t *testing.T) {
	tests := []struct {
		action   agenttypes.Action
		expected string
	}{
		{agenttypes.Action{Type: agenttypes.ActionUserQuery, Details: agenttypes.ActionDetails{Query: "hi"}}, "- [user_query] hi"},
		{agenttypes.Action{Type: agenttypes.ActionToolExecution, Details: agenttypes.ActionDetails{Tool: "search_pricing_models", Input: "web", Result: "a\n b"}},
			"- [tool_execution] search_pricing_models(web) -> a b"},
		{agenttypes.Action{Type: agenttypes.ActionContextUpdate, Details: agenttypes.ActionDetails{Updates: map[string]any{"stage": "closing", "notes": []string{"x"}}}},
			"- [context_update] notes=[x], stage=closing"},
		{agenttypes.Action{Type: agenttypes.ActionError, Details: agenttypes.ActionDetails{Error: "boom", ErrorKind: agenttypes.ErrorKindReasoning}},
			"- [error:reasoning_failure] boom"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action.Type), func(t *testing.T) {
			assert.Equal(t, tt.expected, RenderAction(tt.action))
		})
	}
}
