package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesagent/internal/testutils"
	"salesagent/internal/version"
	"salesagent/pkg/agenttypes"
)

func newTestState() *State {
	gen := testutils.NewGenerator(true)
	return New("lead_1", agenttypes.Lead{ID: "lead_1", Name: "Ada", Company: "Acme"}, "We build software.",
		agenttypes.MemoryRecord{}, WithClock(gen.Now), WithIDGenerator(gen.NewID))
}

func strPtr(s string) *string { return &s }

func runTurn(t *testing.T, s *State, query string, tools ...string) agenttypes.Turn {
	t.Helper()
	require.NoError(t, s.StartTurn(strPtr(query)))
	for _, tool := range tools {
		s.Record(agenttypes.ActionLLMReasoning, agenttypes.ActionDetails{ReasoningOutput: "use " + tool})
		s.Record(agenttypes.ActionToolExecution, agenttypes.ActionDetails{Tool: tool, Input: "x", Result: "y"})
	}
	s.Record(agenttypes.ActionLLMReasoning, agenttypes.ActionDetails{ReasoningOutput: "respond"})
	turn, err := s.Finalize("reply to " + query)
	require.NoError(t, err)
	return turn
}

func TestTurnCounter_EqualsFinalizedTurns(t *testing.T) {
	s := newTestState()
	for k := 1; k <= 5; k++ {
		runTurn(t, s, "question")
		assert.Equal(t, k, s.TurnCounter())
		assert.Len(t, s.History(), k)
	}
}

func TestBuffer_EmptyAroundTurnBoundaries(t *testing.T) {
	s := newTestState()
	assert.False(t, s.InTurn())
	assert.Nil(t, s.CurrentActions())

	runTurn(t, s, "hi", "search_pricing_models")
	assert.False(t, s.InTurn())
	assert.Nil(t, s.CurrentActions())
}

func TestStartTurn_FailsWhenBufferNotFinalized(t *testing.T) {
	s := newTestState()
	require.NoError(t, s.StartTurn(strPtr("first")))

	err := s.StartTurn(strPtr("second"))
	require.Error(t, err)
	assert.ErrorIs(t, err, agenttypes.ErrTurnInProgress)
	assert.Equal(t, 1, s.TurnCounter())
}

func TestStartTurn_OpeningReferencesLastUtterance(t *testing.T) {
	s := newTestState()
	s.AppendUtterance(agenttypes.SpeakerAgent, "Hello Ada")
	require.NoError(t, s.StartTurn(nil))

	latest, ok := s.LatestAction()
	require.True(t, ok)
	assert.Equal(t, agenttypes.ActionAgentOpening, latest.Type)
	assert.Equal(t, "Hello Ada", latest.Details.AgentResponse)
}

func TestFinalize_ExactlyOneFinalResponseLast(t *testing.T) {
	s := newTestState()
	for i := 0; i < 3; i++ {
		runTurn(t, s, "q", "search_company_profile", "update_context")
	}

	for _, turn := range s.History() {
		count := 0
		for _, a := range turn.Actions {
			if a.Type == agenttypes.ActionFinalResponse {
				count++
			}
		}
		assert.Equal(t, 1, count)
		assert.Equal(t, agenttypes.ActionFinalResponse, turn.Actions[len(turn.Actions)-1].Type)
	}
}

func TestFinalize_WithoutTurn(t *testing.T) {
	s := newTestState()
	_, err := s.Finalize("nothing")
	assert.ErrorIs(t, err, agenttypes.ErrNoTurnInProgress)
}

func TestFinalize_TurnFields(t *testing.T) {
	s := newTestState()
	turn := runTurn(t, s, "How much does it cost?", "search_pricing_models", "search_pricing_models", "search_case_studies")

	assert.Equal(t, 1, turn.Number)
	assert.Equal(t, "How much does it cost?", turn.Query)
	assert.Equal(t, "reply to How much does it cost?", turn.FinalResponse)
	assert.Equal(t, "analyzed query → searched using: search_pricing_models, search_case_studies → generated response", turn.Summary)
	assert.False(t, turn.Timestamp.IsZero())
}

func TestHistory_IsImmutableFromOutside(t *testing.T) {
	s := newTestState()
	runTurn(t, s, "q")

	history := s.History()
	history[0].Summary = "tampered"
	history[0].Actions[0].Details.Query = "tampered"

	assert.NotEqual(t, "tampered", s.History()[0].Summary)
	assert.Equal(t, "q", s.History()[0].Actions[0].Details.Query)
}

func TestRecentSummary(t *testing.T) {
	s := newTestState()
	assert.Equal(t, "No previous turns recorded.", s.RecentSummary(3))

	long := strings.Repeat("a", 60)
	runTurn(t, s, "first")
	runTurn(t, s, long, "search_knowledge_base")
	runTurn(t, s, "third")
	runTurn(t, s, "fourth")

	summary := s.RecentSummary(2)
	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Turn 3: 'third' → analyzed query → generated response", lines[0])
	assert.Equal(t, "Turn 4: 'fourth' → analyzed query → generated response", lines[1])

	all := s.RecentSummary(10)
	assert.Contains(t, all, "Turn 2: '"+strings.Repeat("a", 50)+"...' → analyzed query → searched using: search_knowledge_base → generated response")
	assert.Equal(t, all, s.RecentSummary(10))
}

func TestSummarizeActions(t *testing.T) {
	tests := []struct {
		name     string
		actions  []agenttypes.ActionType
		expected string
	}{
		{"empty", nil, "No actions taken"},
		{"opening only", []agenttypes.ActionType{agenttypes.ActionAgentOpening}, "completed turn"},
		{"context update", []agenttypes.ActionType{agenttypes.ActionLLMReasoning, agenttypes.ActionContextUpdate, agenttypes.ActionFinalResponse},
			"analyzed query → updated conversation context → generated response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actions []agenttypes.Action
			for _, at := range tt.actions {
				actions = append(actions, agenttypes.Action{Type: at})
			}
			assert.Equal(t, tt.expected, summarizeActions(actions))
		})
	}
}

func TestTranscript_OnlyGrows(t *testing.T) {
	s := newTestState()
	s.AppendUtterance(agenttypes.SpeakerAgent, "hello")
	s.AppendUtterance(agenttypes.SpeakerUser, "hi")

	copied := s.Transcript()
	copied[0].Text = "edited"
	_ = append(copied, agenttypes.Utterance{Text: "extra"})

	transcript := s.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "hello", transcript[0].Text)
	assert.Equal(t, "hello", s.LastAgentUtterance())
}

func TestTerminate_OnlyOnce(t *testing.T) {
	s := newTestState()
	assert.False(t, s.Terminated())
	require.NoError(t, s.Terminate())
	assert.True(t, s.Terminated())
	assert.ErrorIs(t, s.Terminate(), agenttypes.ErrAlreadyTerminated)
	assert.True(t, s.Terminated())
}

func TestMergeGuidance(t *testing.T) {
	s := newTestState()
	s.ApplyGuidance(agenttypes.Guidance{Advice: "ask about budget", Scores: map[string]int{"need": 2}, Signals: []string{"pricing"}})

	s.MergeGuidance(agenttypes.Guidance{
		Stage:      agenttypes.StageInterest,
		Scores:     map[string]int{"budget": 4},
		Signals:    []string{"pricing", "timeline"},
		Objections: []string{"cost"},
	})

	g := s.Guidance()
	assert.Equal(t, agenttypes.StageInterest, g.Stage)
	assert.Equal(t, "ask about budget", g.Advice)
	assert.Equal(t, map[string]int{"need": 2, "budget": 4}, g.Scores)
	assert.Equal(t, []string{"pricing", "timeline"}, g.Signals)
	assert.Equal(t, []string{"cost"}, g.Objections)
}

func TestSnapshot_ExportImport(t *testing.T) {
	s := newTestState()
	s.AppendUtterance(agenttypes.SpeakerAgent, "hello")
	s.AppendSnippet("[PRICING] from $10k")
	runTurn(t, s, "price?", "search_pricing_models")
	require.NoError(t, s.StartTurn(strPtr("in flight")))

	path := filepath.Join(t.TempDir(), "exports", "session.json")
	require.NoError(t, s.ExportFile(path))

	snap, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, version.GetVersion(), snap.Version)

	restored := Restore(snap)
	assert.Equal(t, s.TurnCounter(), restored.TurnCounter())
	assert.Equal(t, s.History()[0].Summary, restored.History()[0].Summary)
	assert.Equal(t, s.Snippets(), restored.Snippets())
	assert.True(t, restored.InTurn())
	assert.ErrorIs(t, restored.StartTurn(strPtr("again")), agenttypes.ErrTurnInProgress)
}

func TestReadSnapshot_Errors(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read session file")

	broken := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0644))
	_, err = ReadSnapshot(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse session file")
}
