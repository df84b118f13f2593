// Package services provides the language model clients, knowledge retrieval, memory
// persistence, lead lookup and configuration services used by the sales agent.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// defaultAnthropicMaxTokens is used when the configuration sets no limit; the API requires one.
const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements the LLMClient interface for Anthropic's Messages API.
// The underlying SDK client is created lazily on the first request.
type AnthropicClient struct {
	apiKey string
	model  agenttypes.ModelConfig
	client *anthropic.Client
	opts   []option.RequestOption
}

// NewAnthropicClient creates a new Anthropic client with lazy initialization.
func NewAnthropicClient(apiKey string, model agenttypes.ModelConfig, opts ...option.RequestOption) *AnthropicClient {
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		opts:   opts,
	}
}

// GetProviderName returns the provider name for this client.
func (c *AnthropicClient) GetProviderName() string {
	return "anthropic"
}

// IsConfigured returns true if the client has a valid API key.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the Anthropic client if it hasn't been initialized yet.
func (c *AnthropicClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}

	if c.apiKey == "" {
		return fmt.Errorf("anthropic API key not configured")
	}

	options := append([]option.RequestOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client := anthropic.NewClient(options...)
	c.client = &client

	logger.Debug("Anthropic client initialized", "provider", "anthropic", "model", c.model.BaseModel)
	return nil
}

// Invoke sends the prompt as a single user message and concatenates the text blocks of the reply.
func (c *AnthropicClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize Anthropic client: %w", err)
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if c.model.MaxTokens > 0 {
		maxTokens = int64(c.model.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model.BaseModel),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(c.model.Temperature),
	}

	logger.Debug("Sending Anthropic request", "model", c.model.BaseModel, "prompt_length", len(prompt))
	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("Anthropic request failed", "error", err)
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("no response content returned")
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("Anthropic response received", "content_length", content.Len())
	return content.String(), nil
}
