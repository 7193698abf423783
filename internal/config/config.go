package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all skillforge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Reasoning model configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Skill storage and execution
	Skills SkillsConfig `yaml:"skills"`

	// Router behavior
	Router RouterConfig `yaml:"router"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the reasoning collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // ollama, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama, gemini
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	Timeout    string `yaml:"timeout"`

	// Cache embeddings in the store, keyed by (model, sha256(text)).
	// Identical text always re-embeds to the same vector, so caching
	// changes latency only, never ranking.
	Cache bool `yaml:"cache"`
}

// SkillsConfig configures skill storage and execution.
type SkillsConfig struct {
	// Directory holding single-file skill sources
	Directory string `yaml:"directory"`

	// Per-invocation execution timeout
	ExecTimeout string `yaml:"exec_timeout"`

	// Debounce window for the directory watcher
	WatchDebounce string `yaml:"watch_debounce"`
}

// RouterConfig configures retrieval and classification.
type RouterConfig struct {
	// Number of candidate skills surfaced to the classifier
	TopK int `yaml:"top_k"`
}

// StoreConfig configures SQLite persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "skillforge",
		Version: "0.4.0",

		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen2.5-coder:7b",
			BaseURL:  "http://localhost:11434",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
			Timeout:    "30s",
			Cache:      true,
		},

		Skills: SkillsConfig{
			Directory:     "skills",
			ExecTimeout:   "30s",
			WatchDebounce: "500ms",
		},

		Router: RouterConfig{
			TopK: 3,
		},

		Store: StoreConfig{
			DatabasePath: filepath.Join(".forge", "forge.db"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "forge.log",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Gemini API key from environment (check in priority order)
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	// Explicit provider selection wins over key-derived selection
	if p := os.Getenv("FORGE_LLM_PROVIDER"); p != "" {
		c.LLM.Provider = p
	}
	if m := os.Getenv("FORGE_LLM_MODEL"); m != "" {
		c.LLM.Model = m
	}

	// Ollama endpoint applies to both collaborators
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.LLM.BaseURL = host
		c.Embedding.BaseURL = host
	}

	if p := os.Getenv("FORGE_EMBED_PROVIDER"); p != "" {
		c.Embedding.Provider = p
	}
	if m := os.Getenv("FORGE_EMBED_MODEL"); m != "" {
		c.Embedding.Model = m
	}

	// Skill directory and database path from environment
	if dir := os.Getenv("FORGE_SKILLS_DIR"); dir != "" {
		c.Skills.Directory = dir
	}
	if path := os.Getenv("FORGE_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// GetLLMTimeout returns the reasoning model timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetEmbedTimeout returns the embedding call timeout as a duration.
func (c *Config) GetEmbedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetExecTimeout returns the skill execution timeout as a duration.
func (c *Config) GetExecTimeout() time.Duration {
	d, err := time.ParseDuration(c.Skills.ExecTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWatchDebounce returns the watcher debounce window as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Skills.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ValidProviders lists all supported collaborator providers.
var ValidProviders = []string{"ollama", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	if c.LLM.Provider == "gemini" && c.LLM.APIKey == "" {
		return fmt.Errorf("gemini provider requires an API key (set GEMINI_API_KEY or GOOGLE_API_KEY)")
	}

	validEmbed := false
	for _, p := range ValidProviders {
		if c.Embedding.Provider == p {
			validEmbed = true
			break
		}
	}
	if !validEmbed {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidProviders)
	}

	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	if c.Router.TopK <= 0 {
		return fmt.Errorf("router top_k must be positive, got %d", c.Router.TopK)
	}

	if c.Skills.Directory == "" {
		return fmt.Errorf("skills directory not configured")
	}

	return nil
}
