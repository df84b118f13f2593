// Package agenttypes defines the shared types and collaborator interfaces for the sales agent.
// This file contains the contracts for the external collaborators the orchestrator consumes.
package agenttypes

import "context"

// LLMClient is a blocking language-model invocation.
// Implementations wrap a provider SDK (OpenAI, Anthropic, Gemini) or a scripted mock.
type LLMClient interface {
	// Invoke sends a single prompt document and returns the model's text.
	Invoke(ctx context.Context, prompt string) (string, error)

	// GetProviderName returns the name of the provider (e.g., "openai", "gemini").
	GetProviderName() string

	// IsConfigured returns true if the client can make requests.
	IsConfigured() bool
}

// Corpus selects the backing index a retrieval call queries.
type Corpus string

// Known corpora.
const (
	CorpusCaseStudies    Corpus = "case_studies"
	CorpusTechnical      Corpus = "technical_capabilities"
	CorpusPricing        Corpus = "pricing_models"
	CorpusCompanyProfile Corpus = "company_profile"
	CorpusGeneral        Corpus = "general"
)

// Retriever searches a knowledge corpus.
type Retriever interface {
	Search(ctx context.Context, input string, corpus Corpus) (string, error)
}

// MemoryStore persists long-term memory per lead.
type MemoryStore interface {
	// Load returns the record for id; a missing record is an empty record, not an error.
	Load(ctx context.Context, id string) (MemoryRecord, error)
	// Save merges structured into the stored record and replaces its summary.
	Save(ctx context.Context, id string, structured map[string]any, summary string) error
}

// LeadDirectory resolves lead facts by id.
type LeadDirectory interface {
	Lead(ctx context.Context, id string) (Lead, error)
}

// Service is implemented by long-lived components registered at startup.
type Service interface {
	// Name returns the registry key of the service.
	Name() string
	// Initialize prepares the service for use; it must be idempotent.
	Initialize() error
}
