// Package agenttypes defines the shared types and collaborator interfaces for the sales agent.
// This file contains conversation types: transcript utterances, lead facts, long-term
// memory records and the advisory guidance produced by periodic planning.
package agenttypes

import "time"

// Speaker identifies who produced an utterance.
type Speaker string

const (
	// SpeakerAgent is the sales agent.
	SpeakerAgent Speaker = "agent"
	// SpeakerUser is the lead on the other side of the conversation.
	SpeakerUser Speaker = "user"
)

// Utterance is a single transcript entry.
type Utterance struct {
	Speaker   Speaker   `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationStage is the sales stage the guidance step believes the lead is in.
type ConversationStage string

// Known conversation stages.
const (
	StageOpening           ConversationStage = "opening"
	StageDiscovery         ConversationStage = "discovery"
	StageInterest          ConversationStage = "interest"
	StageObjectionHandling ConversationStage = "objection_handling"
	StageClosing           ConversationStage = "closing"
	StageNurturing         ConversationStage = "nurturing"
)

// Guidance is the advisory state written by periodic guidance or the context-update tool.
type Guidance struct {
	Stage      ConversationStage `json:"stage,omitempty"`
	Advice     string            `json:"stage_guidance,omitempty"`
	Scores     map[string]int    `json:"lead_qualification_score,omitempty"`
	Signals    []string          `json:"buying_signals_detected,omitempty"`
	Objections []string          `json:"detected_objections,omitempty"`
	Notes      []string          `json:"notes,omitempty"`
}

// IsZero reports whether no guidance has been recorded yet.
func (g Guidance) IsZero() bool {
	return g.Stage == "" && g.Advice == "" && len(g.Scores) == 0 &&
		len(g.Signals) == 0 && len(g.Objections) == 0 && len(g.Notes) == 0
}

// Clone returns a deep copy of the guidance.
func (g Guidance) Clone() Guidance {
	out := g
	if g.Scores != nil {
		out.Scores = make(map[string]int, len(g.Scores))
		for k, v := range g.Scores {
			out.Scores[k] = v
		}
	}
	out.Signals = append([]string(nil), g.Signals...)
	out.Objections = append([]string(nil), g.Objections...)
	out.Notes = append([]string(nil), g.Notes...)
	return out
}

// Lead holds the facts known about a prospect before the conversation starts.
type Lead struct {
	ID                  string         `json:"id" yaml:"id"`
	Name                string         `json:"name" yaml:"name"`
	Role                string         `json:"role" yaml:"role"`
	Company             string         `json:"company" yaml:"company"`
	Email               string         `json:"email,omitempty" yaml:"email,omitempty"`
	Industry            string         `json:"industry,omitempty" yaml:"industry,omitempty"`
	TechStackPreference string         `json:"tech_stack_preference,omitempty" yaml:"tech_stack_preference,omitempty"`
	Extra               map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// MemoryRecord is the long-term memory persisted for a lead between sessions.
type MemoryRecord struct {
	Summary    string         `json:"last_interaction_summary"`
	Structured map[string]any `json:"structured,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// IsEmpty reports whether the record carries no information.
func (m MemoryRecord) IsEmpty() bool {
	return m.Summary == "" && len(m.Structured) == 0
}
