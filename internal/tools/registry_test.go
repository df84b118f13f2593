package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesagent/internal/parser"
	"salesagent/pkg/agenttypes"
)

func TestNewSalesRegistry_Definitions(t *testing.T) {
	r := NewSalesRegistry(false)
	names := make([]string, 0)
	for _, def := range r.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{
		ToolSearchCaseStudies, ToolSearchTechnical, ToolSearchPricing, ToolSearchProfile,
		ToolSearchKnowledgeBase, ToolUpdateContext, ToolGenerateResponse, ToolEndConversation, ToolUnactionable,
	}, names)

	_, ok := r.Lookup(ToolDelegateOps)
	assert.False(t, ok)

	withOps := NewSalesRegistry(true)
	_, ok = withOps.Lookup(ToolDelegateOps)
	assert.True(t, ok)

	def, _ := r.Lookup(ToolGenerateResponse)
	assert.True(t, def.Terminal)
}

func TestResolve_Calls(t *testing.T) {
	r := NewSalesRegistry(true)

	tests := []struct {
		name     string
		desc     parser.Descriptor
		expected Call
	}{
		{
			name:     "pricing search",
			desc:     parser.Descriptor{Tool: ToolSearchPricing, Args: map[string]any{"keywords": "web app"}},
			expected: SearchCall{Tool: ToolSearchPricing, Corpus: agenttypes.CorpusPricing, Tag: "PRICING", Input: "web app"},
		},
		{
			name:     "general search",
			desc:     parser.Descriptor{Tool: ToolSearchKnowledgeBase, Args: map[string]any{"query": "healthcare"}},
			expected: SearchCall{Tool: ToolSearchKnowledgeBase, Corpus: agenttypes.CorpusGeneral, Tag: "GENERAL KB", Input: "healthcare"},
		},
		{
			name:     "respond ignores inline thought",
			desc:     parser.Descriptor{Tool: ToolGenerateResponse, Args: map[string]any{"answer": "Hi", "thought": "greet"}},
			expected: RespondCall{Answer: "Hi"},
		},
		{
			name:     "end",
			desc:     parser.Descriptor{Tool: ToolEndConversation, Args: map[string]any{"answer": "Bye"}},
			expected: EndConversationCall{Answer: "Bye"},
		},
		{
			name: "context update",
			desc: parser.Descriptor{Tool: ToolUpdateContext, Args: map[string]any{
				"stage":          "Interest",
				"buying_signals": []any{"asked for pricing"},
				"objections":     "budget",
				"scores":         map[string]any{"budget": float64(2)},
			}},
			expected: ContextUpdateCall{Update: agenttypes.Guidance{
				Stage:      agenttypes.StageInterest,
				Signals:    []string{"asked for pricing"},
				Objections: []string{"budget"},
				Scores:     map[string]int{"budget": 2},
			}},
		},
		{
			name:     "delegate",
			desc:     parser.Descriptor{Tool: ToolDelegateOps, Args: map[string]any{"task": "book a call"}},
			expected: DelegateCall{Task: "book a call"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := r.Resolve(tt.desc)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, call)
			assert.Equal(t, tt.desc.Tool, call.Name())
		})
	}
}

func TestResolve_UnknownTool(t *testing.T) {
	r := NewSalesRegistry(false)
	_, err := r.Resolve(parser.Descriptor{Tool: "launch_missiles"})
	require.Error(t, err)

	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "launch_missiles", unknown.Name)
	assert.Contains(t, err.Error(), "launch_missiles")
}

func TestResolve_ArgumentErrors(t *testing.T) {
	r := NewSalesRegistry(false)

	tests := []struct {
		name    string
		desc    parser.Descriptor
		missing []string
		extra   []string
		invalid []string
	}{
		{"missing keywords", parser.Descriptor{Tool: ToolSearchPricing, Args: map[string]any{}}, []string{"keywords"}, nil, nil},
		{"blank answer", parser.Descriptor{Tool: ToolGenerateResponse, Args: map[string]any{"answer": "  "}}, []string{"answer"}, nil, nil},
		{"wrong arg name", parser.Descriptor{Tool: ToolSearchKnowledgeBase, Args: map[string]any{"keywords": "x"}}, []string{"query"}, []string{"keywords"}, nil},
		{"wrong type", parser.Descriptor{Tool: ToolSearchTechnical, Args: map[string]any{"keywords": float64(3)}}, nil, nil, []string{"keywords"}},
		{"bad scores", parser.Descriptor{Tool: ToolUpdateContext, Args: map[string]any{"scores": map[string]any{"budget": "high"}}}, nil, nil, []string{"scores"}},
		{"empty update", parser.Descriptor{Tool: ToolUpdateContext, Args: map[string]any{}}, []string{"at least one update"}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.desc)
			require.Error(t, err)

			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.desc.Tool, argErr.Tool)
			assert.Equal(t, tt.missing, argErr.Missing)
			assert.Equal(t, tt.extra, argErr.Extra)
			for _, name := range tt.invalid {
				assert.Contains(t, argErr.Invalid, name)
			}
			assert.Contains(t, err.Error(), tt.desc.Tool)
		})
	}
}

func TestValidateArgs_Int(t *testing.T) {
	def := Definition{Name: "schedule", Args: []ArgSpec{{Name: "minutes", Kind: ArgInt, Required: true}}}

	args, err := ValidateArgs(def, map[string]any{"minutes": float64(30)})
	require.NoError(t, err)
	assert.Equal(t, 30, args.Int("minutes"))

	_, err = ValidateArgs(def, map[string]any{"minutes": 2.5})
	assert.Error(t, err)
}

func TestResolve_DefinitionWithoutConstructor(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "web_search", Args: []ArgSpec{{Name: "query", Kind: ArgString, Required: true}}}))
	assert.Error(t, r.Register(Definition{}))

	def, args, err := r.Validate(parser.Descriptor{Tool: "web_search", Args: map[string]any{"query": "trends"}})
	require.NoError(t, err)
	assert.Equal(t, "web_search", def.Name)
	assert.Equal(t, "trends", args.String("query"))

	_, err = r.Resolve(parser.Descriptor{Tool: "web_search", Args: map[string]any{"query": "trends"}})
	assert.Error(t, err)
}
