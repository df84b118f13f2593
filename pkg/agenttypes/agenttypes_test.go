package agenttypes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionType_IsValid(t *testing.T) {
	for _, at := range AllActionTypes() {
		assert.True(t, at.IsValid(), "expected %s to be valid", at)
	}
	assert.False(t, ActionType("launch_missiles").IsValid())
	assert.False(t, ActionType("").IsValid())
}

func TestTurn_CloneIsDeep(t *testing.T) {
	original := Turn{
		Number: 1,
		Actions: []Action{
			{ID: "a", Timestamp: time.Unix(0, 0), Type: ActionContextUpdate, Details: ActionDetails{Updates: map[string]any{"stage": "discovery"}}},
		},
	}

	clone := original.Clone()
	clone.Actions[0].Details.Updates["stage"] = "closing"
	clone.Actions = append(clone.Actions, Action{ID: "b"})

	assert.Len(t, original.Actions, 1)
	assert.Equal(t, "discovery", original.Actions[0].Details.Updates["stage"])
}

func TestGuidance_IsZeroAndClone(t *testing.T) {
	var g Guidance
	assert.True(t, g.IsZero())

	g = Guidance{Scores: map[string]int{"budget_fit": 3}, Signals: []string{"asked for pricing"}}
	assert.False(t, g.IsZero())

	clone := g.Clone()
	clone.Scores["budget_fit"] = 9
	clone.Signals[0] = "changed"
	assert.Equal(t, 3, g.Scores["budget_fit"])
	assert.Equal(t, "asked for pricing", g.Signals[0])
}

func TestMemoryRecord_IsEmpty(t *testing.T) {
	assert.True(t, MemoryRecord{}.IsEmpty())
	assert.False(t, MemoryRecord{Summary: "met last week"}.IsEmpty())
	assert.False(t, MemoryRecord{Structured: map[string]any{"k": 1}}.IsEmpty())
}

func TestDefaultOrchestratorConfig(t *testing.T) {
	cfg := DefaultOrchestratorConfig()
	assert.Equal(t, 3, cfg.GuidanceCadence)
	assert.Equal(t, CadencePerDispatch, cfg.CadenceMode)
	assert.Greater(t, cfg.MaxDispatchCycles, 0)
	assert.Equal(t, 3, cfg.RecentTurns)
}
