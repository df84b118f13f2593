package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"

	"google.golang.org/genai"
)

// GeminiClient implements the LLMClient interface for the Google Gemini API.
// The underlying SDK client is created lazily on the first request.
type GeminiClient struct {
	apiKey string
	model  agenttypes.ModelConfig
	client *genai.Client

	httpClient *http.Client
}

// NewGeminiClient creates a new Gemini client with lazy initialization.
func NewGeminiClient(apiKey string, model agenttypes.ModelConfig) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
	}
}

// GetProviderName returns the provider name for this client.
func (c *GeminiClient) GetProviderName() string {
	return "gemini"
}

// IsConfigured returns true if the client has a valid API key.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// initializeClientIfNeeded initializes the Gemini client if it hasn't been initialized yet.
func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	if c.apiKey == "" {
		return fmt.Errorf("google API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	})
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.client = client
	logger.Debug("Gemini client initialized", "provider", "gemini", "model", c.model.BaseModel)
	return nil
}

// Invoke sends the prompt as a single user turn and returns the non-thought text parts.
func (c *GeminiClient) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := c.initializeClientIfNeeded(ctx); err != nil {
		return "", fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  genai.RoleUser,
	}}

	logger.Debug("Sending Gemini request", "model", c.model.BaseModel, "prompt_length", len(prompt))
	result, err := c.client.Models.GenerateContent(ctx, c.model.BaseModel, contents, c.buildGenerationConfig())
	if err != nil {
		logger.Error("Gemini request failed", "error", err)
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	content, thoughts := extractGeminiText(result)
	if content == "" {
		return "", fmt.Errorf("empty response content")
	}

	logger.Debug("Gemini response received", "content_length", len(content), "thinking_blocks", thoughts)
	return content, nil
}

// buildGenerationConfig maps the model configuration onto Gemini generation settings.
func (c *GeminiClient) buildGenerationConfig() *genai.GenerateContentConfig {
	temperature := float32(c.model.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if c.model.MaxTokens > 0 {
		config.MaxOutputTokens = int32(c.model.MaxTokens)
	}
	return config
}

// extractGeminiText concatenates the text parts of every candidate, skipping
// thinking parts, and reports how many thinking parts were skipped.
func extractGeminiText(result *genai.GenerateContentResponse) (string, int) {
	if result == nil {
		return "", 0
	}

	var b strings.Builder
	thoughts := 0
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if part.Thought {
				thoughts++
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String(), thoughts
}
