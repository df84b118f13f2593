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

// TurnRecorder is implemented by memory stores that also keep a per-turn audit log.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID, leadID string, turn agenttypes.Turn) error
}

// Insights is the structured outcome of a finished conversation.
type Insights struct {
	Stage       agenttypes.ConversationStage `json:"stage,omitempty"`
	Scores      map[string]int               `json:"lead_qualification_score,omitempty"`
	Signals     []string                     `json:"buying_signals_detected,omitempty"`
	Objections  []string                     `json:"detected_objections,omitempty"`
	ToolsUsed   []string                     `json:"tools_used,omitempty"`
	TurnCount   int                          `json:"turn_count"`
	NextActions []string                     `json:"next_actions,omitempty"`
}

// Structured converts the insights to the memory store's structured form.
func (i Insights) Structured() map[string]any {
	out := map[string]any{
		"turn_count":   i.TurnCount,
		"next_actions": i.NextActions,
	}
	if i.Stage != "" {
		out["stage"] = string(i.Stage)
	}
	if len(i.Scores) > 0 {
		out["lead_qualification_score"] = i.Scores
	}
	if len(i.Signals) > 0 {
		out["buying_signals_detected"] = i.Signals
	}
	if len(i.Objections) > 0 {
		out["detected_objections"] = i.Objections
	}
	if len(i.ToolsUsed) > 0 {
		out["tools_used"] = i.ToolsUsed
	}
	return out
}

// Outcome is what finalization produced and persisted.
type Outcome struct {
	Summary  string
	Insights Insights
}

// Finalizer summarizes a finished conversation and persists it to long-term memory.
type Finalizer struct {
	llm    agenttypes.LLMClient
	store  agenttypes.MemoryStore
	logger *log.Logger
}

// NewFinalizer creates a finalizer. A nil store skips persistence.
func NewFinalizer(llm agenttypes.LLMClient, store agenttypes.MemoryStore) *Finalizer {
	return &Finalizer{
		llm:    llm,
		store:  store,
		logger: logger.NewStyledLogger("Finalizer"),
	}
}

// Finalize builds the summary and insights for st and saves them. The outcome is
// returned even when saving fails.
func (f *Finalizer) Finalize(ctx context.Context, st *session.State) (Outcome, error) {
	outcome := Outcome{
		Summary:  f.summarize(ctx, st),
		Insights: DeriveInsights(st),
	}

	if f.store == nil {
		return outcome, nil
	}
	if err := f.store.Save(ctx, st.ID, outcome.Insights.Structured(), outcome.Summary); err != nil {
		f.logger.Error("Failed to persist conversation memory", "session", st.ID, "error", err)
		return outcome, fmt.Errorf("failed to save memory for %s: %w", st.ID, err)
	}

	f.logger.Info("Conversation memory saved", "session", st.ID, "turns", outcome.Insights.TurnCount)
	return outcome, nil
}

// summarize asks the model for a short summary and falls back to the turn digest.
func (f *Finalizer) summarize(ctx context.Context, st *session.State) string {
	digest := st.RecentSummary(st.TurnCounter())
	if f.llm == nil {
		return digest
	}

	summary, err := f.llm.Invoke(ctx, prompts.Summary(st))
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		f.logger.Warn("Summary generation failed, using turn digest", "session", st.ID, "error", err)
		return digest
	}
	return summary
}

// DeriveInsights collects the guidance fields, tool usage and follow-ups of st.
func DeriveInsights(st *session.State) Insights {
	g := st.Guidance()
	insights := Insights{
		Stage:      g.Stage,
		Scores:     g.Scores,
		Signals:    g.Signals,
		Objections: g.Objections,
		ToolsUsed:  st.ToolsUsed(),
		TurnCount:  st.TurnCounter(),
	}
	insights.NextActions = nextActions(st.Lead, insights)
	return insights
}

func nextActions(lead agenttypes.Lead, i Insights) []string {
	name := lead.Name
	if name == "" {
		name = "the lead"
	}

	used := make(map[string]bool, len(i.ToolsUsed))
	for _, t := range i.ToolsUsed {
		used[t] = true
	}

	var actions []string
	if used[tools.ToolSearchCaseStudies] {
		actions = append(actions, fmt.Sprintf("Email %s the case studies discussed.", name))
	}
	if used[tools.ToolSearchPricing] {
		actions = append(actions, fmt.Sprintf("Prepare a pricing proposal for %s.", name))
	}
	if len(i.Objections) > 0 {
		actions = append(actions, "Address open objections: "+strings.Join(i.Objections, "; ")+".")
	}

	switch i.Stage {
	case agenttypes.StageClosing:
		actions = append(actions, "Confirm the agreed next step and send a meeting invite.")
	case agenttypes.StageNurturing:
		actions = append(actions, fmt.Sprintf("Add %s to the nurture sequence and check in next month.", name))
	default:
		actions = append(actions, "Schedule follow-up for next week.")
	}
	return actions
}
