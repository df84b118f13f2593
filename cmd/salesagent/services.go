package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"salesagent/internal/agent"
	"salesagent/internal/logger"
	"salesagent/internal/opsagent"
	"salesagent/internal/services"
	"salesagent/internal/session"
	"salesagent/internal/testutils"
	"salesagent/pkg/agenttypes"
)

// memoryService is a long-term memory backend managed by the service registry.
type memoryService interface {
	agenttypes.Service
	agenttypes.MemoryStore
}

// agentRuntime holds the initialized services a command needs.
type agentRuntime struct {
	config    agenttypes.Config
	leads     *services.LeadService
	knowledge *services.KnowledgeService
	memory    memoryService
	markdown  *services.MarkdownService
	llm       agenttypes.LLMClient
	opsLLM    agenttypes.LLMClient
	generator *testutils.Generator
}

// initializeServices loads configuration, registers every service in a fresh
// global registry and builds the language model clients.
func initializeServices(opts *globalOptions) (*agentRuntime, error) {
	registry := services.NewRegistry()
	services.SetGlobalRegistry(registry)

	// configuration decides the paths every other service is created with
	configService := services.NewConfigurationService(opts.v, opts.configFile)
	if err := configService.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := registry.RegisterService(configService); err != nil {
		return nil, err
	}
	cfg, err := configService.Config()
	if err != nil {
		return nil, err
	}

	dataDir := cfg.Storage.DataDir
	rt := &agentRuntime{
		config:    cfg,
		leads:     services.NewLeadService(filepath.Join(dataDir, "leads.json"), filepath.Join(dataDir, "company.txt")),
		knowledge: services.NewKnowledgeService(filepath.Join(dataDir, "knowledge"), cfg.Storage.KnowledgeCacheSize),
		markdown:  services.NewMarkdownService(opts.plain || cfg.TestMode),
		generator: testutils.NewGenerator(cfg.TestMode),
	}

	switch cfg.Storage.MemoryBackend {
	case "sqlite":
		rt.memory = services.NewSQLiteMemoryStore(cfg.Storage.MemoryPath)
	default:
		rt.memory = services.NewFileMemoryStore(cfg.Storage.MemoryPath)
	}

	factory := services.NewClientFactoryService()
	managed := []agenttypes.Service{rt.leads, rt.knowledge, rt.memory, rt.markdown, factory}
	if opts.debugHTTP {
		capture := services.NewHTTPCaptureService(nil)
		factory.SetHTTPClient(capture.Client())
		managed = append(managed, capture)
	}
	for _, service := range managed {
		if err := registry.RegisterService(service); err != nil {
			return nil, err
		}
	}
	if err := registry.InitializeAll(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if company := rt.leads.Company(); company != "" {
		rt.knowledge.AddEntries(agenttypes.CorpusCompanyProfile, services.KnowledgeEntry{
			Title:    "Company overview",
			Keywords: []string{"company", "about", "overview", "profile"},
			Content:  company,
		})
	}

	if rt.llm, err = buildClient(factory, cfg.Model); err != nil {
		return nil, err
	}
	opsModel := cfg.Model
	if opsModel.OpsModel != "" {
		opsModel.BaseModel = opsModel.OpsModel
	}
	if rt.opsLLM, err = buildClient(factory, opsModel); err != nil {
		return nil, err
	}

	logger.Info("Services initialized", "provider", cfg.Model.Provider, "model", cfg.Model.BaseModel,
		"memory", cfg.Storage.MemoryBackend, "corpora", len(rt.knowledge.Corpora()), "leads", len(rt.leads.IDs()))
	return rt, nil
}

// buildClient resolves the provider key and wraps the client in the rate limiter.
func buildClient(factory *services.ClientFactoryService, model agenttypes.ModelConfig) (agenttypes.LLMClient, error) {
	apiKey, err := factory.DetermineAPIKeyForProvider(model.Provider)
	if err != nil {
		return nil, err
	}
	client, err := factory.GetClientForProvider(model.Provider, apiKey, model)
	if err != nil {
		return nil, err
	}
	return services.NewLimitedClient(client, model.RequestsPerMinute, model.MaxRetries), nil
}

// newAgent starts a session for leadID with ops delegation enabled.
func (rt *agentRuntime) newAgent(ctx context.Context, leadID string) (*agent.Agent, error) {
	deps := agent.Dependencies{
		LLM:       rt.llm,
		Retriever: rt.knowledge,
		Leads:     rt.leads,
		Memory:    rt.memory,
		Delegator: opsagent.New(rt.opsLLM, rt.generator.Now),
		Company:   rt.leads.Company(),
	}
	return agent.New(ctx, leadID, deps, rt.config,
		session.WithClock(rt.generator.Now),
		session.WithIDGenerator(rt.generator.NewID),
	)
}

// render formats an agent reply for the terminal.
func (rt *agentRuntime) render(text string) string {
	out, err := rt.markdown.Render(text)
	if err != nil {
		logger.Debug("Markdown rendering failed", "error", err)
		return text
	}
	return out
}

// Close releases backends that hold open handles.
func (rt *agentRuntime) Close() {
	if capture, err := services.GetTyped[*services.HTTPCaptureService](services.GetGlobalRegistry(), "http_capture"); err == nil {
		logger.Debug("Provider HTTP exchanges captured", "count", capture.Count())
	}
	if closer, ok := rt.memory.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close memory store", "error", err)
		}
	}
}
