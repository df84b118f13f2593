package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesagent/pkg/agenttypes"
)

func TestDecodeAction_PricingScenario(t *testing.T) {
	raw := "I think the user wants pricing.\n```json\n{\"action\":{\"tool\":\"search_pricing_models\",\"keywords\":\"web app\"}}\n```"

	d, err := DecodeAction(raw)
	require.NoError(t, err)
	assert.Equal(t, "search_pricing_models", d.Tool)
	keywords, ok := d.StringArg("keywords")
	require.True(t, ok)
	assert.Equal(t, "web app", keywords)
}

func TestDecodeAction_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"search", "search_knowledge_base", map[string]any{"query": "healthcare onboarding"}},
		{"respond", "generate_response", map[string]any{"answer": "Happy to help!"}},
		{"context", "update_context", map[string]any{"stage": "interest", "buying_signals": []any{"asked for pricing"}, "scores": map[string]any{"budget": float64(3)}}},
		{"no args", "report_task_unactionable", map[string]any{}},
		{"answer with code fence", "generate_response", map[string]any{"answer": "Sure:\n```go\nfmt.Println(1)\n```"}},
		{"input with braces", "search_technical_capabilities", map[string]any{"keywords": "{react} native ``` }"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := map[string]any{"tool": tt.tool}
			for k, v := range tt.args {
				action[k] = v
			}
			body, err := json.Marshal(map[string]any{"thought": "because", "action": action})
			require.NoError(t, err)

			d, err := DecodeAction("Some commentary.\n```json\n" + string(body) + "\n```\nTrailing text.")
			require.NoError(t, err)
			assert.Equal(t, tt.tool, d.Tool)
			assert.Equal(t, tt.args, d.Args)
			assert.Equal(t, "because", d.Thought)
		})
	}
}

func TestDecodeAction_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind DecodeErrorKind
	}{
		{"empty", "", ErrNoBlock},
		{"prose only", "I am not sure what to do here.", ErrNoBlock},
		{"unterminated json fence", "```json\n{\"action\": {\"tool\": ", ErrMalformed},
		{"malformed", "```json\n{not json}\n```", ErrMalformed},
		{"array", "```json\n[1,2,3]\n```", ErrMalformed},
		{"no tool", "```json\n{\"thought\": \"hmm\", \"action\": {\"query\": \"x\"}}\n```", ErrMissingTool},
		{"blank tool", `{"tool": "  "}`, ErrMissingTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := DecodeAction(tt.raw)
				require.Error(t, err)
				de, ok := IsDecodeError(err)
				require.True(t, ok)
				assert.Equal(t, tt.kind, de.Kind)
				assert.NotEmpty(t, de.Error())
			})
		})
	}
}

func TestDecodeAction_AlternateShapes(t *testing.T) {
	t.Run("flat object without fence", func(t *testing.T) {
		d, err := DecodeAction(`Sure: {"thought": "greet", "tool": "generate_response", "answer": "Hi"} done`)
		require.NoError(t, err)
		assert.Equal(t, "generate_response", d.Tool)
		assert.Equal(t, "greet", d.Thought)
		assert.Equal(t, map[string]any{"answer": "Hi"}, d.Args)
	})

	t.Run("untagged fence", func(t *testing.T) {
		d, err := DecodeAction("```\n{\"action\": {\"tool\": \"end_conversation\", \"answer\": \"Bye\"}}\n```")
		require.NoError(t, err)
		assert.Equal(t, "end_conversation", d.Tool)
	})

	t.Run("quoted fence inside json fence", func(t *testing.T) {
		raw := "Answering now.\n```json\n{\"thought\":\"show code\",\"action\":{\"tool\":\"generate_response\"," +
			"\"answer\":\"Sure:\\n```go\\nfmt.Println(1)\\n```\"}}\n```"
		d, err := DecodeAction(raw)
		require.NoError(t, err)
		assert.Equal(t, "generate_response", d.Tool)
		assert.Equal(t, "show code", d.Thought)
		assert.Equal(t, "Sure:\n```go\nfmt.Println(1)\n```", d.Args["answer"])
	})

	t.Run("malformed json fence falls back to later object", func(t *testing.T) {
		raw := "```json\n{oops}\n```\nRetrying: {\"tool\": \"generate_response\", \"answer\": \"Hi\"}"
		d, err := DecodeAction(raw)
		require.NoError(t, err)
		assert.Equal(t, "generate_response", d.Tool)
		assert.Equal(t, map[string]any{"answer": "Hi"}, d.Args)
	})

	t.Run("json fence preferred over earlier code fence", func(t *testing.T) {
		raw := "```python\nprint('x')\n```\n```JSON\n{\"action\": {\"tool\": \"search_company_profile\", \"keywords\": \"team\"}}\n```"
		d, err := DecodeAction(raw)
		require.NoError(t, err)
		assert.Equal(t, "search_company_profile", d.Tool)
	})
}

func TestExtractBlock(t *testing.T) {
	block, ok := ExtractBlock("prefix ```json\n{\"a\":1}\n``` suffix")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, block)

	_, ok = ExtractBlock("nothing structured")
	assert.False(t, ok)
}

func TestDecodeGuidance(t *testing.T) {
	t.Run("structured", func(t *testing.T) {
		raw := "```json\n" + `{"stage": "Interest", "stage_guidance": "Share a case study", ` +
			`"lead_qualification_score": {"budget": 3, "authority": "4", "need": 2.6, "bogus": "high"}, ` +
			`"buying_signals_detected": ["asked for pricing"], "detected_objections": ["timeline"]}` + "\n```"

		g, ok := DecodeGuidance(raw)
		require.True(t, ok)
		assert.Equal(t, agenttypes.StageInterest, g.Stage)
		assert.Equal(t, "Share a case study", g.Advice)
		assert.Equal(t, map[string]int{"budget": 3, "authority": 4, "need": 3}, g.Scores)
		assert.Equal(t, []string{"asked for pricing"}, g.Signals)
		assert.Equal(t, []string{"timeline"}, g.Objections)
	})

	t.Run("fallback to raw text", func(t *testing.T) {
		g, ok := DecodeGuidance("  Focus on discovery questions.  ")
		assert.False(t, ok)
		assert.Equal(t, "Focus on discovery questions.", g.Advice)
		assert.Empty(t, g.Scores)
		assert.Empty(t, g.Signals)
		assert.Empty(t, g.Objections)
	})

	t.Run("object without guidance keys", func(t *testing.T) {
		raw := "Lead is warming up.\n```json\n{\"summary\": \"x\"}\n```"
		g, ok := DecodeGuidance(raw)
		assert.False(t, ok)
		assert.Equal(t, strings.TrimSpace(raw), g.Advice)
		assert.Empty(t, g.Stage)
		assert.Empty(t, g.Scores)
	})

	t.Run("action block is not guidance", func(t *testing.T) {
		raw := `{"action": {"tool": "generate_response", "answer": "Hi"}}`
		g, ok := DecodeGuidance(raw)
		assert.False(t, ok)
		assert.Equal(t, raw, g.Advice)
	})

	t.Run("single guidance key is enough", func(t *testing.T) {
		g, ok := DecodeGuidance(`{"detected_objections": ["budget"]}`)
		require.True(t, ok)
		assert.Equal(t, []string{"budget"}, g.Objections)
	})
}
