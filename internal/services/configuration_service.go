package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"salesagent/internal/logger"
	"salesagent/pkg/agenttypes"
)

// EnvPrefix is the prefix of environment variables that override configuration keys,
// e.g. SALES_AGENT_MODEL_PROVIDER overrides model.provider.
const EnvPrefix = "SALES_AGENT"

// ConfigPaths reports which configuration sources were found during loading.
type ConfigPaths struct {
	ConfigFile      string // agent.yaml that was read, if any
	ConfigDir       string // user configuration directory
	ConfigEnvPath   string // config-dir .env path
	ConfigEnvLoaded bool   // whether the config-dir .env was loaded
	LocalEnvPath    string // working directory .env path
	LocalEnvLoaded  bool   // whether the local .env was loaded
}

// ConfigurationService loads the agent configuration with viper.
// Priority (highest to lowest): flags > environment variables > local .env >
// config .env > agent.yaml > defaults.
type ConfigurationService struct {
	initialized bool
	v           *viper.Viper
	configFile  string
	paths       ConfigPaths
	config      agenttypes.Config
}

// NewConfigurationService creates a ConfigurationService on v. A nil v gets a
// private viper instance. configFile, if set, replaces the agent.yaml search.
func NewConfigurationService(v *viper.Viper, configFile string) *ConfigurationService {
	if v == nil {
		v = viper.New()
	}
	return &ConfigurationService{v: v, configFile: configFile}
}

// Name returns the service name "configuration" for registration.
func (c *ConfigurationService) Name() string {
	return "configuration"
}

// Initialize orchestrates configuration loading from every source.
func (c *ConfigurationService) Initialize() error {
	if c.initialized {
		return nil
	}

	setDefaults(c.v)

	if err := c.readConfigFile(); err != nil {
		return err
	}

	if err := c.loadDotEnvFiles(); err != nil {
		return err
	}

	c.v.SetEnvPrefix(EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()

	var cfg agenttypes.Config
	if err := c.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	c.config = cfg
	c.initialized = true
	logger.ServiceOperation("configuration", "initialize", "completed", "provider", cfg.Model.Provider, "model", cfg.Model.BaseModel)
	return nil
}

// Config returns the decoded configuration.
func (c *ConfigurationService) Config() (agenttypes.Config, error) {
	if !c.initialized {
		return agenttypes.Config{}, fmt.Errorf("configuration service not initialized")
	}
	return c.config, nil
}

// GetConfigValue returns a raw configuration value by key.
// Returns empty string if the key doesn't exist (no error).
func (c *ConfigurationService) GetConfigValue(key string) (string, error) {
	if !c.initialized {
		return "", fmt.Errorf("configuration service not initialized")
	}
	return c.v.GetString(key), nil
}

// GetConfigurationPaths returns configuration file paths and their loading status.
func (c *ConfigurationService) GetConfigurationPaths() (ConfigPaths, error) {
	if !c.initialized {
		return ConfigPaths{}, fmt.Errorf("configuration service not initialized")
	}
	return c.paths, nil
}

// LoadConfiguration reloads all configuration sources.
func (c *ConfigurationService) LoadConfiguration() error {
	c.initialized = false
	return c.Initialize()
}

func setDefaults(v *viper.Viper) {
	orchestrator := agenttypes.DefaultOrchestratorConfig()

	v.SetDefault("model.provider", "gemini")
	v.SetDefault("model.model", "gemini-2.0-flash")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 1024)
	v.SetDefault("model.requests_per_minute", 0)
	v.SetDefault("model.max_retries", 2)

	v.SetDefault("orchestrator.guidance_cadence", orchestrator.GuidanceCadence)
	v.SetDefault("orchestrator.cadence_mode", string(orchestrator.CadenceMode))
	v.SetDefault("orchestrator.max_dispatch_cycles", orchestrator.MaxDispatchCycles)
	v.SetDefault("orchestrator.recent_turns", orchestrator.RecentTurns)

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.memory_backend", "file")
	v.SetDefault("storage.memory_path", filepath.Join("data", "long_term_memory.json"))
	v.SetDefault("storage.knowledge_cache_size", 256)

	v.SetDefault("persona.agent_name", "Alex")
	v.SetDefault("persona.company_name", "DevCraft Solutions")

	v.SetDefault("test_mode", false)
}

func (c *ConfigurationService) readConfigFile() error {
	if c.configFile != "" {
		c.v.SetConfigFile(c.configFile)
	} else {
		c.v.SetConfigName("agent")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")
		if dir, err := userConfigDir(); err == nil {
			c.v.AddConfigPath(dir)
		}
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("No agent.yaml found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	c.paths.ConfigFile = c.v.ConfigFileUsed()
	logger.Debug("Configuration file loaded", "path", c.paths.ConfigFile)
	return nil
}

// loadDotEnvFiles exports .env values into the process environment without
// overriding variables that are already set. The local .env wins over the config-dir one.
func (c *ConfigurationService) loadDotEnvFiles() error {
	if dir, err := userConfigDir(); err == nil {
		c.paths.ConfigDir = dir
		c.paths.ConfigEnvPath = filepath.Join(dir, ".env")
	}
	if wd, err := os.Getwd(); err == nil {
		c.paths.LocalEnvPath = filepath.Join(wd, ".env")
	}

	loaded, err := loadDotEnv(c.paths.LocalEnvPath)
	if err != nil {
		return err
	}
	c.paths.LocalEnvLoaded = loaded

	loaded, err = loadDotEnv(c.paths.ConfigEnvPath)
	if err != nil {
		return err
	}
	c.paths.ConfigEnvLoaded = loaded
	return nil
}

func loadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load .env file %s: %w", path, err)
	}
	return true, nil
}

func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "salesagent"), nil
}

func validateConfig(cfg agenttypes.Config) error {
	switch cfg.Orchestrator.CadenceMode {
	case agenttypes.CadencePerDispatch, agenttypes.CadencePerTurn, "":
	default:
		return fmt.Errorf("invalid cadence_mode %q (expected %s or %s)",
			cfg.Orchestrator.CadenceMode, agenttypes.CadencePerDispatch, agenttypes.CadencePerTurn)
	}

	switch cfg.Storage.MemoryBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid memory_backend %q (expected file or sqlite)", cfg.Storage.MemoryBackend)
	}

	if cfg.Orchestrator.GuidanceCadence < 0 {
		return fmt.Errorf("guidance_cadence cannot be negative")
	}

	provider := cfg.Model.Provider
	for _, p := range SupportedProviders {
		if p == provider {
			return nil
		}
	}
	return fmt.Errorf("unsupported provider '%s'. Supported providers: %s", provider, strings.Join(SupportedProviders, ", "))
}
