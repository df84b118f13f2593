// Package agenttypes defines the shared types and collaborator interfaces for the sales agent.
// This file contains the runtime configuration consumed by the orchestrator and its services.
package agenttypes

// CadenceMode controls where the periodic guidance predicate is evaluated.
type CadenceMode string

const (
	// CadencePerDispatch evaluates the predicate after every dispatch cycle,
	// so several tool calls within one qualifying turn each trigger guidance.
	CadencePerDispatch CadenceMode = "per_dispatch"
	// CadencePerTurn runs guidance at most once per qualifying turn.
	CadencePerTurn CadenceMode = "per_turn"
)

// ModelConfig selects the language model used for reasoning and guidance.
type ModelConfig struct {
	// Provider is the API provider name ("openai", "anthropic", "gemini" or "mock")
	Provider string `mapstructure:"provider" json:"provider"`

	// BaseModel is the provider's model identifier (e.g., "gemini-2.0-flash")
	BaseModel string `mapstructure:"model" json:"model"`

	// OpsModel is the model used by the delegated ops agent; defaults to BaseModel
	OpsModel string `mapstructure:"ops_model" json:"ops_model,omitempty"`

	// Temperature controls randomness; 0 keeps reasoning deterministic
	Temperature float64 `mapstructure:"temperature" json:"temperature"`

	// MaxTokens bounds the response length
	MaxTokens int `mapstructure:"max_tokens" json:"max_tokens"`

	// RequestsPerMinute throttles calls to the provider; 0 disables throttling
	RequestsPerMinute int `mapstructure:"requests_per_minute" json:"requests_per_minute"`

	// MaxRetries is the number of extra attempts after a failed call
	MaxRetries int `mapstructure:"max_retries" json:"max_retries"`
}

// OrchestratorConfig holds the control-loop knobs.
type OrchestratorConfig struct {
	// GuidanceCadence is N: guidance runs when the turn counter is a positive multiple of N.
	// Zero disables periodic guidance.
	GuidanceCadence int `mapstructure:"guidance_cadence" json:"guidance_cadence"`

	// CadenceMode selects per-dispatch or per-turn evaluation of the cadence predicate.
	CadenceMode CadenceMode `mapstructure:"cadence_mode" json:"cadence_mode"`

	// MaxDispatchCycles bounds reasoning/dispatch iterations within one turn.
	MaxDispatchCycles int `mapstructure:"max_dispatch_cycles" json:"max_dispatch_cycles"`

	// RecentTurns is k for the recent-turn digest included in reasoning prompts.
	RecentTurns int `mapstructure:"recent_turns" json:"recent_turns"`
}

// StorageConfig locates the data files and selects the memory backend.
type StorageConfig struct {
	// DataDir is the root of leads.json, company.txt and the knowledge directory
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// MemoryBackend is "file" (single JSON document) or "sqlite"
	MemoryBackend string `mapstructure:"memory_backend" json:"memory_backend"`

	// MemoryPath is the JSON file or SQLite database path
	MemoryPath string `mapstructure:"memory_path" json:"memory_path"`

	// KnowledgeCacheSize is the number of cached retrieval results
	KnowledgeCacheSize int `mapstructure:"knowledge_cache_size" json:"knowledge_cache_size"`
}

// PersonaConfig describes the agent persona used in prompts.
type PersonaConfig struct {
	AgentName   string `mapstructure:"agent_name" json:"agent_name"`
	CompanyName string `mapstructure:"company_name" json:"company_name"`
}

// Config is the complete runtime configuration.
type Config struct {
	Model        ModelConfig        `mapstructure:"model" json:"model"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" json:"orchestrator"`
	Storage      StorageConfig      `mapstructure:"storage" json:"storage"`
	Persona      PersonaConfig      `mapstructure:"persona" json:"persona"`
	TestMode     bool               `mapstructure:"test_mode" json:"test_mode"`
}

// DefaultOrchestratorConfig returns the control-loop defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		GuidanceCadence:   3,
		CadenceMode:       CadencePerDispatch,
		MaxDispatchCycles: 6,
		RecentTurns:       3,
	}
}
