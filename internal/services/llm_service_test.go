package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesagent/internal/parser"
)

func TestMockLLMClient_Script(t *testing.T) {
	mock := NewMockLLMClient("first", "second")
	mock.QueueError(errors.New("provider down"))

	ctx := context.Background()
	out, err := mock.Invoke(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = mock.Invoke(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "second", out)

	_, err = mock.Invoke(ctx, "p3")
	assert.EqualError(t, err, "provider down")

	_, err = mock.Invoke(ctx, "p4")
	assert.ErrorIs(t, err, ErrNoScriptedResponse)

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, mock.Prompts())
	assert.Equal(t, 4, mock.CallCount())
	assert.Equal(t, 0, mock.Remaining())
	assert.Equal(t, "mock", mock.GetProviderName())
	assert.True(t, mock.IsConfigured())
}

func TestMockLLMClient_ResponderAfterQueue(t *testing.T) {
	mock := NewMockLLMClient("queued")
	mock.SetResponder(func(prompt string) (string, error) {
		return "echo: " + prompt, nil
	})

	out, _ := mock.Invoke(context.Background(), "a")
	assert.Equal(t, "queued", out)
	out, _ = mock.Invoke(context.Background(), "b")
	assert.Equal(t, "echo: b", out)
}

func TestMockLLMClient_CancelledContext(t *testing.T) {
	mock := NewMockLLMClient("never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.Invoke(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.Remaining())
}

func TestDemoResponder(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		tool   string
	}{
		{
			name:   "first reasoning step searches",
			prompt: "context\n### Current User Query:\nDo you work with healthcare companies?\n---\n",
			tool:   "search_knowledge_base",
		},
		{
			name:   "after a search it answers",
			prompt: "### Actions Taken So Far This Turn:\n- [tool_execution] search_knowledge_base(x) -> y\n### Current User Query:\nhealthcare?\n",
			tool:   "generate_response",
		},
		{
			name:   "goodbye ends the conversation",
			prompt: "### Current User Query:\nThanks, bye for now\n",
			tool:   "end_conversation",
		},
		{
			name:   "ops prompt is unactionable",
			prompt: "You are an operations assistant supporting a sales team.",
			tool:   "report_task_unactionable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DemoResponder(tt.prompt)
			require.NoError(t, err)
			d, err := parser.DecodeAction(out)
			require.NoError(t, err)
			assert.Equal(t, tt.tool, d.Tool)
		})
	}

	out, err := DemoResponder("Assess the conversation stage of this chat")
	require.NoError(t, err)
	g, ok := parser.DecodeGuidance(out)
	require.True(t, ok)
	assert.EqualValues(t, "discovery", g.Stage)

	out, err = DemoResponder("Write the opening message of a sales conversation")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello")
}

func TestDemoResponder_SearchUsesQuery(t *testing.T) {
	out, err := DemoResponder("### Current User Query:\nWhat does pricing look like?\n")
	require.NoError(t, err)
	d, err := parser.DecodeAction(out)
	require.NoError(t, err)
	query, ok := d.StringArg("query")
	require.True(t, ok)
	assert.Equal(t, "What does pricing look like?", query)

	out, err = DemoResponder("no query here")
	require.NoError(t, err)
	d, err = parser.DecodeAction(out)
	require.NoError(t, err)
	query, _ = d.StringArg("query")
	assert.Equal(t, "company services overview", query)
}
