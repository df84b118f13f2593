package services

import (
	"context"
	"fmt"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements the LLMClient interface for OpenAI's chat completions API.
// The underlying SDK client is created lazily on the first request.
type OpenAIClient struct {
	apiKey string
	model  agenttypes.ModelConfig
	client *openai.Client
	opts   []option.RequestOption
}

// NewOpenAIClient creates a new OpenAI client with lazy initialization.
// Extra request options (base URL, HTTP client) are passed through to the SDK.
func NewOpenAIClient(apiKey string, model agenttypes.ModelConfig, opts ...option.RequestOption) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		opts:   opts,
	}
}

// GetProviderName returns the provider name for this client.
func (c *OpenAIClient) GetProviderName() string {
	return "openai"
}

// IsConfigured returns true if the client has a valid API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the OpenAI client if it hasn't been initialized yet.
func (c *OpenAIClient) initializeClientIfNeeded() error {
	if c.client != nil {
		return nil
	}

	if c.apiKey == "" {
		return fmt.Errorf("OpenAI API key not configured")
	}

	options := append([]option.RequestOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client := openai.NewClient(options...)
	c.client = &client

	logger.Debug("OpenAI client initialized", "provider", "openai", "model", c.model.BaseModel)
	return nil
}

// Invoke sends the prompt as a single user message and returns the first choice.
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := c.initializeClientIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model.BaseModel),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	params.Temperature = openai.Float(c.model.Temperature)
	if c.model.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.model.MaxTokens))
	}

	logger.Debug("Sending OpenAI request", "model", c.model.BaseModel, "prompt_length", len(prompt))
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI request failed", "error", err)
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("OpenAI response received", "content_length", len(content))
	return content, nil
}
