package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skillforge/internal/logging"
	"skillforge/internal/types"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "qwen2.5-coder:7b"
	defaultOllamaTimeout  = 120 * time.Second
)

// OllamaClient talks to a local Ollama server over its chat API.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaClient creates a client for the given endpoint and model.
// Empty arguments fall back to the local defaults.
func NewOllamaClient(endpoint, model string, timeout time.Duration) *OllamaClient {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	if model == "" {
		model = defaultOllamaModel
	}
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the /api/chat body. Format is either the string
// "json" or a full JSON schema object; omitted, the output is free text.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   interface{}     `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

// Complete sends a bare prompt and returns the completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, []ollamaMessage{
		{Role: "user", Content: prompt},
	}, nil)
}

// CompleteWithSystem sends a prompt under a system message.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, []ollamaMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, nil)
}

// CompleteStructured constrains the completion to the given JSON schema
// via the chat API's format field. A nil schema still forces JSON mode.
func (c *OllamaClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	var format interface{} = "json"
	if len(schema) > 0 {
		format = schema
	}
	return c.chat(ctx, []ollamaMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, format)
}

func (c *OllamaClient) chat(ctx context.Context, messages []ollamaMessage, format interface{}) (string, error) {
	// Auto-apply timeout if context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.client.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.LLMDebug("[Ollama] Chat: model=%s messages=%d structured=%v", c.model, len(messages), format != nil)

	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Format:   format,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logging.LLMError("[Ollama] Chat failed after %v: %v", time.Since(start), err)
		logging.Audit().LLMCall(c.model, time.Since(start).Milliseconds(), false, err.Error())
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		logging.LLMError("[Ollama] Chat: %s", detail)
		logging.Audit().LLMCall(c.model, time.Since(start).Milliseconds(), false, detail)
		return "", fmt.Errorf("ollama chat %s", detail)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != "" {
		logging.Audit().LLMCall(c.model, time.Since(start).Milliseconds(), false, parsed.Error)
		return "", fmt.Errorf("ollama: %s", parsed.Error)
	}

	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return "", fmt.Errorf("ollama returned an empty completion (is %q pulled?)", c.model)
	}

	logging.LLM("[Ollama] Chat completed in %v response_len=%d", time.Since(start), len(content))
	logging.Audit().LLMCall(c.model, time.Since(start).Milliseconds(), true, "")
	return content, nil
}

// HealthCheck verifies the Ollama server answers at all.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check: status %d", resp.StatusCode)
	}
	return nil
}

// Info describes the configured backend for health reporting.
func (c *OllamaClient) Info() types.ModelInfo {
	return types.ModelInfo{Provider: "ollama", Model: c.model, Endpoint: c.endpoint}
}
