// Package types provides shared type definitions used across skillforge packages.
// This package exists to break import cycles between router, builder, and executor.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"context"
)

// LLMClient defines the interface for reasoning model interactions.
// Both the router (classification) and the builder (code generation,
// argument derivation) depend on this rather than a concrete provider.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StructuredClient is an optional interface for LLM clients that support
// provider-side schema-constrained output (Ollama format field, Gemini
// response schema). Use type assertion to check support:
//
//	if sc, ok := client.(types.StructuredClient); ok {
//	    raw, err = sc.CompleteStructured(ctx, system, user, schema)
//	}
//
// Callers must keep a prompt-side fallback: clients without this interface
// get the schema inlined into the system prompt instead.
type StructuredClient interface {
	// CompleteStructured sends a prompt with a JSON schema constraint and
	// returns the raw JSON text of the response.
	CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)
}

// ModelInfo describes a configured model endpoint for health reporting.
type ModelInfo struct {
	Provider string `json:"provider"` // "ollama" | "gemini"
	Model    string `json:"model"`
	Endpoint string `json:"endpoint,omitempty"`
}

// HealthChecker is an optional interface for collaborator clients that can
// verify their backend is reachable. Used by the doctor command.
type HealthChecker interface {
	// HealthCheck returns nil when the backend answers within the context
	// deadline, otherwise a descriptive error.
	HealthCheck(ctx context.Context) error
}
