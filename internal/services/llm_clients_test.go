package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"salesagent/pkg/agenttypes"
)

var testModel = agenttypes.ModelConfig{BaseModel: "test-model", Temperature: 0, MaxTokens: 256}

func TestLLMClients_ProviderAndConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		client   agenttypes.LLMClient
		provider string
		expected bool
	}{
		{"openai with key", NewOpenAIClient("sk-test", testModel), "openai", true},
		{"openai without key", NewOpenAIClient("", testModel), "openai", false},
		{"anthropic with key", NewAnthropicClient("sk-ant", testModel), "anthropic", true},
		{"anthropic without key", NewAnthropicClient("", testModel), "anthropic", false},
		{"gemini with key", NewGeminiClient("g-key", testModel), "gemini", true},
		{"gemini without key", NewGeminiClient("", testModel), "gemini", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.provider, tt.client.GetProviderName())
			assert.Equal(t, tt.expected, tt.client.IsConfigured())
		})
	}
}

func TestLLMClients_InvokeWithoutKey(t *testing.T) {
	clients := []agenttypes.LLMClient{
		NewOpenAIClient("", testModel),
		NewAnthropicClient("", testModel),
		NewGeminiClient("", testModel),
	}
	for _, c := range clients {
		t.Run(c.GetProviderName(), func(t *testing.T) {
			_, err := c.Invoke(context.Background(), "hello")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to initialize")
		})
	}
}

func TestOpenAIClient_Invoke(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":0,"model":"test-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello from OpenAI"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", testModel, option.WithBaseURL(server.URL+"/v1/"), option.WithMaxRetries(0))
	out, err := client.Invoke(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from OpenAI", out)

	assert.Equal(t, "test-model", received["model"])
	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "Say hello", messages[0].(map[string]any)["content"])
}

func TestOpenAIClient_InvokeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", testModel, option.WithBaseURL(server.URL+"/v1/"), option.WithMaxRetries(0))
	_, err := client.Invoke(context.Background(), "Say hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai request failed")
}

func TestAnthropicClient_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 256, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"test-model",
			"content":[{"type":"text","text":"Hello "},{"type":"text","text":"from Claude"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("sk-ant", testModel, anthropicoption.WithBaseURL(server.URL), anthropicoption.WithMaxRetries(0))
	out, err := client.Invoke(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from Claude", out)
}

func TestGeminiClient_BuildGenerationConfig(t *testing.T) {
	client := NewGeminiClient("key", agenttypes.ModelConfig{BaseModel: "gemini-2.0-flash", Temperature: 0.3, MaxTokens: 512})
	config := client.buildGenerationConfig()
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.3, *config.Temperature, 0.0001)
	assert.Equal(t, int32(512), config.MaxOutputTokens)

	unbounded := NewGeminiClient("key", agenttypes.ModelConfig{BaseModel: "gemini-2.0-flash"}).buildGenerationConfig()
	assert.Equal(t, int32(0), unbounded.MaxOutputTokens)
}

func TestExtractGeminiText(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking about it", Thought: true},
				{Text: "Hello "},
				nil,
				{Text: "world"},
			}},
		}, nil},
	}

	text, thoughts := extractGeminiText(result)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, 1, thoughts)

	text, thoughts = extractGeminiText(nil)
	assert.Empty(t, text)
	assert.Zero(t, thoughts)
}
