package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoScriptedResponse is returned by MockLLMClient when its script is exhausted
// and no responder is set.
var ErrNoScriptedResponse = errors.New("mock: no scripted response")

type mockReply struct {
	text string
	err  error
}

// MockLLMClient is a scripted LLMClient for tests and offline runs.
// Queued replies are consumed in order; once the queue is empty the responder,
// if any, answers every prompt.
type MockLLMClient struct {
	mu        sync.Mutex
	replies   []mockReply
	responder func(prompt string) (string, error)
	prompts   []string
}

// NewMockLLMClient creates a mock that returns the given responses in order.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	m := &MockLLMClient{}
	for _, r := range responses {
		m.replies = append(m.replies, mockReply{text: r})
	}
	return m
}

// NewDemoLLMClient creates a mock that answers every prompt with DemoResponder.
func NewDemoLLMClient() *MockLLMClient {
	m := &MockLLMClient{}
	m.SetResponder(DemoResponder)
	return m
}

// GetProviderName returns the provider name for this client.
func (m *MockLLMClient) GetProviderName() string {
	return "mock"
}

// IsConfigured always returns true; the mock needs no credentials.
func (m *MockLLMClient) IsConfigured() bool {
	return true
}

// QueueResponse appends a successful reply to the script.
func (m *MockLLMClient) QueueResponse(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{text: text})
}

// QueueError appends a failing reply to the script.
func (m *MockLLMClient) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
}

// SetResponder sets the function used once the queued replies run out.
func (m *MockLLMClient) SetResponder(fn func(prompt string) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// Invoke records the prompt and returns the next scripted reply.
func (m *MockLLMClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	if len(m.replies) > 0 {
		reply := m.replies[0]
		m.replies = m.replies[1:]
		m.mu.Unlock()
		return reply.text, reply.err
	}
	responder := m.responder
	m.mu.Unlock()

	if responder == nil {
		return "", ErrNoScriptedResponse
	}
	return responder(prompt)
}

// Prompts returns every prompt received so far.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// CallCount returns the number of Invoke calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Remaining returns the number of queued replies not yet consumed.
func (m *MockLLMClient) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replies)
}

// DemoResponder produces plausible replies for each prompt kind so the agent can
// run end to end without a provider. It searches the general knowledge base once
// per turn, then answers; a goodbye from the lead ends the conversation.
func DemoResponder(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Write the opening message"):
		return "Hello! Thanks for taking the time to chat. What are the main engineering challenges on your plate this quarter?", nil
	case strings.Contains(prompt, "Assess the conversation stage"):
		return "```json\n{\"stage\": \"discovery\", \"stage_guidance\": \"Keep asking about their current stack and timeline.\", " +
			"\"lead_qualification_score\": {\"need\": 3}, \"buying_signals_detected\": [], \"detected_objections\": []}\n```", nil
	case strings.Contains(prompt, "Summarize the following sales conversation"):
		return "The lead discussed their engineering priorities and asked about our services.", nil
	case strings.Contains(prompt, "operations assistant"):
		return "```json\n{\"thought\": \"Demo mode does not run operations.\", \"action\": " +
			"{\"tool\": \"report_task_unactionable\", \"reason\": \"operations are disabled in demo mode\"}}\n```", nil
	}

	query := demoCurrentQuery(prompt)
	if query == "" {
		query = "company services overview"
	}
	lower := strings.ToLower(query)
	if strings.Contains(lower, "bye") || strings.Contains(lower, "not interested") {
		return demoAction("The lead is wrapping up.", "end_conversation",
			"answer", "Thanks for your time today. I'll follow up by email with a short summary. Goodbye!"), nil
	}
	if !strings.Contains(prompt, "### Actions Taken So Far This Turn:") || !strings.Contains(prompt, "[tool_execution]") {
		return demoAction("Look up relevant material first.", "search_knowledge_base", "query", query), nil
	}
	return demoAction("I have enough context to answer.", "generate_response",
		"answer", "Great question. Based on what we've delivered for similar teams, I think we can help. Would a short call next week work?"), nil
}

func demoCurrentQuery(prompt string) string {
	const marker = "### Current User Query:"
	idx := strings.LastIndex(prompt, marker)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(prompt[idx+len(marker):])
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

func demoAction(thought, tool, argName, argValue string) string {
	return fmt.Sprintf("```json\n{\"thought\": %q, \"action\": {\"tool\": %q, %q: %q}}\n```", thought, tool, argName, argValue)
}
