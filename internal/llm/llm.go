// Package llm provides reasoning-model clients for routing and code
// synthesis. Two backends are supported: Ollama (local) and Google
// Gemini (cloud). Both satisfy types.LLMClient and types.StructuredClient,
// so callers get provider-side schema-constrained JSON where the backend
// offers it.
package llm

import (
	"fmt"
	"time"

	"skillforge/internal/config"
	"skillforge/internal/logging"
	"skillforge/internal/types"
)

// Both clients must satisfy the full collaborator surface.
var (
	_ types.LLMClient        = (*OllamaClient)(nil)
	_ types.StructuredClient = (*OllamaClient)(nil)
	_ types.HealthChecker    = (*OllamaClient)(nil)
	_ types.LLMClient        = (*GeminiClient)(nil)
	_ types.StructuredClient = (*GeminiClient)(nil)
	_ types.HealthChecker    = (*GeminiClient)(nil)
)

// NewClient builds the configured reasoning client.
func NewClient(cfg config.LLMConfig, timeout time.Duration) (types.LLMClient, error) {
	switch cfg.Provider {
	case "ollama", "":
		logging.LLM("Initializing Ollama client: model=%s endpoint=%s", cfg.Model, cfg.BaseURL)
		return NewOllamaClient(cfg.BaseURL, cfg.Model, timeout), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini llm requires an API key (set GEMINI_API_KEY or GOOGLE_API_KEY)")
		}
		logging.LLM("Initializing Gemini client: model=%s", cfg.Model)
		// cfg.BaseURL is the Ollama endpoint; Gemini always talks to the
		// Google API. Tests that need a stub construct NewGeminiClient
		// with an explicit BaseURL.
		return NewGeminiClient(GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
