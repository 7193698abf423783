// Package router classifies user turns into one of three actions: invoke an
// existing skill, synthesize a new one, or answer conversationally. It bounds
// the reasoning model's context through embedding retrieval and enforces the
// guardrail that a use_tool decision always references a registered skill.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillforge/internal/index"
	"skillforge/internal/logging"
	"skillforge/internal/skill"
	"skillforge/internal/types"
)

// Diagnostic responses for malformed classifier output. The outer loop
// receives these as ordinary chat decisions.
const (
	msgInvalidJSON     = "Internal Error: Router output invalid JSON."
	msgSchemaViolation = "Internal Error: Router violated schema."
)

var (
	errInvalidJSON     = errors.New("classifier output is not valid JSON")
	errSchemaViolation = errors.New("classifier output violates the decision schema")
)

// Config holds router tunables.
type Config struct {
	// TopK bounds how many candidate skills are shown to the classifier.
	// Only retrieved candidates ever appear in the prompt, so the model
	// cannot select a skill outside this set even if it exists.
	TopK int
}

// DefaultConfig returns the standard router configuration.
func DefaultConfig() Config {
	return Config{TopK: 3}
}

// Router combines embedding retrieval with a model-backed decision step.
type Router struct {
	registry *skill.Registry
	index    *index.Index
	client   types.LLMClient
	cfg      Config
}

// New builds a Router over the given registry, index and reasoning client.
func New(registry *skill.Registry, idx *index.Index, client types.LLMClient, cfg Config) *Router {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	return &Router{registry: registry, index: idx, client: client, cfg: cfg}
}

// Route classifies userText and returns a well-formed decision. It is total:
// transport failures, unparseable model output and schema violations all
// degrade to a chat decision carrying a diagnostic, never an error or panic.
func (r *Router) Route(ctx context.Context, userText string) *Decision {
	traceID := uuid.NewString()[:8]
	start := time.Now()

	// Retrieval bounds the context shown to the classifier. A failed
	// retrieval proceeds with zero candidates rather than aborting the turn.
	matches, err := r.index.TopK(ctx, userText, r.cfg.TopK)
	if err != nil {
		logging.RouterWarn("Retrieval failed, classifying without candidates: %v", err)
		matches = nil
	}

	logging.Router("Thinking... (context: %d/%d tools)", len(matches), r.registry.Count())

	sc, structured := r.client.(types.StructuredClient)
	systemPrompt := r.systemPrompt(matches, !structured)

	var content string
	if structured {
		content, err = sc.CompleteStructured(ctx, systemPrompt, userText, DecisionSchema())
	} else {
		content, err = r.client.CompleteWithSystem(ctx, systemPrompt, userText)
	}
	if err != nil {
		logging.RouterError("Classifier call failed: %v", err)
		return r.fallback(traceID, "transport", fmt.Sprintf("Internal Error: Router unavailable: %v", err))
	}

	decision, perr := parseDecision(content)
	if perr != nil {
		if errors.Is(perr, errSchemaViolation) {
			logging.RouterError("Schema validation error: %v", perr)
			return r.fallback(traceID, "schema", msgSchemaViolation)
		}
		logging.RouterError("JSON error: %s", snippet(content))
		return r.fallback(traceID, "json", msgInvalidJSON)
	}
	decision.TraceID = traceID

	// Guardrail: a use_tool decision must name a skill in the full registry,
	// not just the candidate set. Anything else is rewritten to build so the
	// host never attempts to execute a nonexistent capability.
	if decision.Action == ActionUseTool && !r.registry.Has(decision.ToolName) {
		logging.RouterWarn("Guardrail triggered: %q does not exist, switching to build", decision.ToolName)
		logging.Audit().Guardrail(traceID, decision.ToolName)
		decision.Action = ActionBuild
		decision.Description = "Create a tool to handle: " + userText
		decision.ToolName = ""
		decision.Arguments = nil
	}

	logging.Router("Decision: %s tool=%q in %v", decision.Action, decision.ToolName, time.Since(start))
	logging.Audit().RouteDecision(traceID, string(decision.Action), decision.ToolName, time.Since(start).Milliseconds())
	return decision
}

func (r *Router) fallback(traceID, reason, msg string) *Decision {
	logging.Audit().RouteFallback(traceID, reason)
	return &Decision{Action: ActionChat, Response: msg, TraceID: traceID}
}

// systemPrompt renders the decision request: candidate tool signatures, the
// classification instructions and, for clients without provider-side schema
// support, the response schema inline.
func (r *Router) systemPrompt(matches []index.Match, inlineSchema bool) string {
	tools := make(map[string]string, len(matches))
	for _, m := range matches {
		if s, err := r.registry.Get(m.Name); err == nil {
			tools[m.Name] = s.SignatureText()
		}
	}
	toolsJSON, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		toolsJSON = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString("You are SkillForge, an intelligent operating system.\n\n")
	sb.WriteString("RELEVANT TOOLS:\n")
	sb.Write(toolsJSON)
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("1. ANALYZE the user's request.\n")
	sb.WriteString("2. DECIDE on exactly one action:\n")
	sb.WriteString("   - \"use_tool\": ONLY if a tool in RELEVANT TOOLS matches EXACTLY.\n")
	sb.WriteString("   - \"build\": if NO tool matches, or the relevant tools are insufficient.\n")
	sb.WriteString("   - \"chat\": if the user is just saying hello or asking a general question.\n")
	sb.WriteString("3. NEVER invent tool names. tool_name must be copied verbatim from RELEVANT TOOLS.\n")
	if inlineSchema {
		sb.WriteString("4. OUTPUT JSON adhering to this schema:\n")
		sb.WriteString("   {\n")
		sb.WriteString("     \"thinking\": \"brief reasoning\",\n")
		sb.WriteString("     \"action\": \"use_tool\" | \"build\" | \"chat\",\n")
		sb.WriteString("     \"tool_name\": \"exact_tool_name\" (only for use_tool),\n")
		sb.WriteString("     \"arguments\": { \"arg\": value } (only for use_tool),\n")
		sb.WriteString("     \"description\": \"what to build\" (only for build),\n")
		sb.WriteString("     \"response\": \"chat message\" (only for chat)\n")
		sb.WriteString("   }\n")
	}
	return sb.String()
}

// parseDecision validates classifier output in two stages matching the two
// diagnostic fallbacks: malformed JSON first, then schema conformance. Extra
// fields are tolerated; a missing or unknown action is a schema violation.
func parseDecision(content string) (*Decision, error) {
	cleaned := cleanJSONResponse(content)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: %s", errInvalidJSON, snippet(cleaned))
	}
	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", errSchemaViolation, err)
	}
	d.Action = Action(strings.ToLower(strings.TrimSpace(string(d.Action))))
	switch d.Action {
	case ActionUseTool, ActionBuild, ActionChat:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", errSchemaViolation, d.Action)
	}
	return &d, nil
}

// cleanJSONResponse removes markdown code fences the model may wrap around
// its JSON output.
func cleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// snippet truncates model output for log lines.
func snippet(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= 120 {
		return s
	}
	return string(runes[:120]) + "..."
}
