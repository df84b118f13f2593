package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"sync"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// SupportedProviders lists the provider names accepted by the client factory.
var SupportedProviders = []string{"openai", "anthropic", "gemini", "mock"}

// ClientFactoryService manages the creation and caching of LLM clients.
// Clients are cached per provider, model and API key so sessions share SDK clients.
type ClientFactoryService struct {
	initialized bool
	clients     map[string]agenttypes.LLMClient
	mutex       sync.RWMutex
	mock        *MockLLMClient
	httpClient  *http.Client
}

// NewClientFactoryService creates a new ClientFactoryService instance.
func NewClientFactoryService() *ClientFactoryService {
	return &ClientFactoryService{
		initialized: false,
		clients:     make(map[string]agenttypes.LLMClient),
	}
}

// Name returns the service name "client_factory" for registration.
func (f *ClientFactoryService) Name() string {
	return "client_factory"
}

// Initialize sets up the ClientFactoryService for operation.
func (f *ClientFactoryService) Initialize() error {
	logger.ServiceOperation("client_factory", "initialize", "starting")
	f.initialized = true
	logger.ServiceOperation("client_factory", "initialize", "completed")
	return nil
}

// SetMockClient makes the "mock" provider return the given client instead of the demo mock.
func (f *ClientFactoryService) SetMockClient(mock *MockLLMClient) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.mock = mock
}

// SetHTTPClient makes clients created afterwards send requests through httpClient.
func (f *ClientFactoryService) SetHTTPClient(httpClient *http.Client) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.httpClient = httpClient
}

// GetClientForProvider returns an LLM client for the specified provider, API key and model.
// The "mock" provider needs no API key.
func (f *ClientFactoryService) GetClientForProvider(provider, apiKey string, model agenttypes.ModelConfig) (agenttypes.LLMClient, error) {
	if !f.initialized {
		return nil, fmt.Errorf("client factory service not initialized")
	}

	if provider == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}

	if provider == "mock" {
		f.mutex.Lock()
		defer f.mutex.Unlock()
		if f.mock == nil {
			f.mock = NewDemoLLMClient()
		}
		return f.mock, nil
	}

	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty for provider '%s'", provider)
	}

	cacheKey := clientCacheKey(provider, apiKey, model)

	f.mutex.RLock()
	if client, exists := f.clients[cacheKey]; exists {
		f.mutex.RUnlock()
		logger.Debug("Returning cached provider client", "provider", provider)
		return client, nil
	}
	f.mutex.RUnlock()

	f.mutex.Lock()
	defer f.mutex.Unlock()

	// Double-check pattern
	if client, exists := f.clients[cacheKey]; exists {
		logger.Debug("Returning cached provider client (double-check)", "provider", provider)
		return client, nil
	}

	var client agenttypes.LLMClient
	switch provider {
	case "openai":
		var opts []openaioption.RequestOption
		if f.httpClient != nil {
			opts = append(opts, openaioption.WithHTTPClient(f.httpClient))
		}
		client = NewOpenAIClient(apiKey, model, opts...)
	case "anthropic":
		var opts []anthropicoption.RequestOption
		if f.httpClient != nil {
			opts = append(opts, anthropicoption.WithHTTPClient(f.httpClient))
		}
		client = NewAnthropicClient(apiKey, model, opts...)
	case "gemini":
		gemini := NewGeminiClient(apiKey, model)
		gemini.httpClient = f.httpClient
		client = gemini
	default:
		return nil, fmt.Errorf("unsupported provider '%s'. Supported providers: openai, anthropic, gemini, mock", provider)
	}

	f.clients[cacheKey] = client

	logger.Debug("Created new provider client", "provider", provider, "model", model.BaseModel)
	return client, nil
}

// DetermineAPIKeyForProvider determines the API key for a specific provider.
// It checks provider-specific environment variables in order of preference.
func (f *ClientFactoryService) DetermineAPIKeyForProvider(provider string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("provider cannot be empty")
	}

	var envVars []string
	switch provider {
	case "openai":
		envVars = []string{"SALES_AGENT_OPENAI_API_KEY", "OPENAI_API_KEY"}
	case "anthropic":
		envVars = []string{"SALES_AGENT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"}
	case "gemini":
		envVars = []string{"SALES_AGENT_GOOGLE_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"}
	case "mock":
		return "", nil
	default:
		return "", fmt.Errorf("unsupported provider '%s'. Supported providers: openai, anthropic, gemini, mock", provider)
	}

	for _, envVarName := range envVars {
		if apiKey := os.Getenv(envVarName); apiKey != "" {
			logger.Debug("API key found for provider", "provider", provider, "env_var", envVarName)
			return apiKey, nil
		}
	}

	return "", fmt.Errorf("%s API key not found. Please set the %s environment variable",
		provider, envVars[len(envVars)-1])
}

// GetCachedClientCount returns the number of cached clients (for testing/debugging).
func (f *ClientFactoryService) GetCachedClientCount() int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return len(f.clients)
}

// ClearCache removes all cached clients (for testing/debugging).
func (f *ClientFactoryService) ClearCache() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.clients = make(map[string]agenttypes.LLMClient)
	logger.Debug("Client cache cleared")
}

// clientCacheKey hashes the API key so raw secrets never sit in map keys.
func clientCacheKey(provider, apiKey string, model agenttypes.ModelConfig) string {
	sum := sha256.Sum256([]byte(apiKey))
	return fmt.Sprintf("%s:%s:%g:%d:%s", provider, model.BaseModel, model.Temperature, model.MaxTokens, hex.EncodeToString(sum[:8]))
}
