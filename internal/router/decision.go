package router

// Action is the classifier's verdict for one user turn.
type Action string

const (
	// ActionUseTool invokes an existing registered skill.
	ActionUseTool Action = "use_tool"
	// ActionBuild synthesizes a new skill from a description.
	ActionBuild Action = "build"
	// ActionChat answers conversationally without touching any skill.
	ActionChat Action = "chat"
)

// Decision is the structured output of a routing turn. Exactly one action is
// set; the remaining fields are populated according to it (ToolName and
// Arguments for use_tool, Description for build, Response for chat).
//
// Invariant: when Route returns a use_tool decision, ToolName exists in the
// registry. The guardrail rewrites any decision that would violate this.
type Decision struct {
	Thinking    string                 `json:"thinking,omitempty"`
	Action      Action                 `json:"action"`
	ToolName    string                 `json:"tool_name,omitempty"`
	Arguments   map[string]interface{} `json:"arguments,omitempty"`
	Description string                 `json:"description,omitempty"`
	Response    string                 `json:"response,omitempty"`

	// TraceID correlates every log and audit line of the turn that produced
	// this decision. Assigned by Route, never sent to or read from the model.
	TraceID string `json:"-"`
}

// DecisionSchema returns the JSON schema the reasoning model is constrained
// to. Passed verbatim to structured clients (Ollama format field, Gemini
// response schema); rendered inline into the prompt for plain clients.
func DecisionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"thinking": map[string]interface{}{
				"type":        "string",
				"description": "Brief reasoning about the request.",
			},
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{"use_tool", "build", "chat"},
			},
			"tool_name": map[string]interface{}{
				"type":        "string",
				"description": "The EXACT name of the tool to use if action is use_tool.",
			},
			"arguments": map[string]interface{}{
				"type":        "object",
				"description": "Arguments strictly matching the tool's signature.",
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Precise description of code to write if action is build.",
			},
			"response": map[string]interface{}{
				"type":        "string",
				"description": "The chat response if action is chat.",
			},
		},
		"required": []string{"action"},
	}
}
