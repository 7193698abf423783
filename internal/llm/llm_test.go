package llm

import (
	"strings"
	"testing"
	"time"

	"skillforge/internal/config"
)

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{
		Provider: "ollama",
		Model:    "qwen2.5-coder:7b",
		BaseURL:  "http://localhost:11434",
	}, 30*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	oc, ok := client.(*OllamaClient)
	if !ok {
		t.Fatalf("client = %T, want *OllamaClient", client)
	}
	if info := oc.Info(); info.Model != "qwen2.5-coder:7b" {
		t.Errorf("model = %q, want qwen2.5-coder:7b", info.Model)
	}
}

func TestNewClientDefaultsToOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{}, 0)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, ok := client.(*OllamaClient); !ok {
		t.Fatalf("client = %T, want *OllamaClient for empty provider", client)
	}
}

func TestNewClientGemini(t *testing.T) {
	// BaseURL in the config is the Ollama endpoint and must not leak into
	// the Gemini client.
	client, err := NewClient(config.LLMConfig{
		Provider: "gemini",
		APIKey:   "test-key",
		BaseURL:  "http://localhost:11434",
	}, 30*time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	gc, ok := client.(*GeminiClient)
	if !ok {
		t.Fatalf("client = %T, want *GeminiClient", client)
	}
	if gc.baseURL != defaultGeminiBaseURL {
		t.Errorf("baseURL = %q, want %q", gc.baseURL, defaultGeminiBaseURL)
	}
}

func TestNewClientGeminiRequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gemini"}, 0)
	if err == nil {
		t.Fatal("NewClient() error = nil, want missing key error")
	}
	if !strings.Contains(err.Error(), "API key") {
		t.Errorf("error = %v, want mention of the API key", err)
	}
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"}, 0)
	if err == nil {
		t.Fatal("NewClient() error = nil, want unsupported provider error")
	}
	if !strings.Contains(err.Error(), "anthropic") {
		t.Errorf("error = %v, want provider name in message", err)
	}
}
