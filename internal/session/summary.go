package session

import (
	"fmt"
	"strings"

	"salesagent/pkg/agenttypes"
)

const (
	summarySeparator = " → "
	queryPreviewLen  = 50
)

// summarizeActions derives the one-line description of a turn from the action
// types it contains. Tools are listed once each in first-use order.
func summarizeActions(actions []agenttypes.Action) string {
	if len(actions) == 0 {
		return "No actions taken"
	}

	var reasoned, updated, responded bool
	var tools []string
	seen := make(map[string]bool)

	for _, a := range actions {
		switch a.Type {
		case agenttypes.ActionLLMReasoning:
			reasoned = true
		case agenttypes.ActionToolExecution:
			if a.Details.Tool != "" && !seen[a.Details.Tool] {
				seen[a.Details.Tool] = true
				tools = append(tools, a.Details.Tool)
			}
		case agenttypes.ActionContextUpdate:
			updated = true
		case agenttypes.ActionFinalResponse:
			responded = true
		}
	}

	var parts []string
	if reasoned {
		parts = append(parts, "analyzed query")
	}
	if len(tools) > 0 {
		parts = append(parts, "searched using: "+strings.Join(tools, ", "))
	}
	if updated {
		parts = append(parts, "updated conversation context")
	}
	if responded {
		parts = append(parts, "generated response")
	}

	if len(parts) == 0 {
		return "completed turn"
	}
	return strings.Join(parts, summarySeparator)
}

// RecentSummary returns a digest of the last k finalized turns, one line per
// turn. The output depends only on the turn history.
func (s *State) RecentSummary(k int) string {
	if len(s.history) == 0 || k <= 0 {
		return "No previous turns recorded."
	}

	start := len(s.history) - k
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, len(s.history)-start)
	for _, turn := range s.history[start:] {
		lines = append(lines, fmt.Sprintf("Turn %d: '%s'%s%s", turn.Number, previewQuery(turn.Query), summarySeparator, turn.Summary))
	}
	return strings.Join(lines, "\n")
}

// ToolsUsed returns every tool executed across the finalized turns, once each.
func (s *State) ToolsUsed() []string {
	var tools []string
	seen := make(map[string]bool)
	for _, turn := range s.history {
		for _, a := range turn.Actions {
			if a.Type == agenttypes.ActionToolExecution && a.Details.Tool != "" && !seen[a.Details.Tool] {
				seen[a.Details.Tool] = true
				tools = append(tools, a.Details.Tool)
			}
		}
	}
	return tools
}

func previewQuery(query string) string {
	runes := []rune(query)
	if len(runes) > queryPreviewLen {
		return string(runes[:queryPreviewLen]) + "..."
	}
	return query
}
