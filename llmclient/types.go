package llmclient

import (
	"encoding/json"
)

// Message roles understood by the gateway. Tool-result messages carry
// RoleTool inside the agent; the OpenAI adapter remaps them to the
// assistant role before sending, because chat-completions endpoints
// reject tool messages that lack a preceding tool_calls turn.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single flattened chat message bound for the model.
// Content is always a plain string by the time a Message reaches the
// gateway; structured payloads are flattened by the caller.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolSpec describes one callable tool advertised to the model.
// Parameters holds the JSON-schema object for the tool's arguments and
// is treated as opaque: it is relayed to the provider without
// validation beyond ensuring an object type is declared.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Arguments is
// the raw JSON produced by the provider: usually an object, sometimes
// a JSON string that itself encodes an object, occasionally garbage.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ParsedArguments decodes the call's arguments into a map. Providers
// disagree about the encoding, so three shapes are tolerated: a JSON
// object, a JSON string containing an object, and anything else, which
// decodes to an empty map rather than failing the call.
func (tc ToolCall) ParsedArguments() map[string]any {
	raw := []byte(tc.Arguments)
	if len(raw) == 0 {
		return map[string]any{}
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return obj
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
			return obj
		}
	}

	return map[string]any{}
}

// GenerateRequest is one chat-completion request. Model is optional;
// when empty the client's configured model is used.
type GenerateRequest struct {
	Model    string     `json:"model,omitempty"`
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
}

// GenerateResponse is the provider's reply in a provider-neutral
// shape. Content is kept as raw JSON because providers return null,
// a string, or a list of content parts; the caller flattens it.
type GenerateResponse struct {
	ID           string          `json:"id,omitempty"`
	Model        string          `json:"model,omitempty"`
	Content      json.RawMessage `json:"content"`
	ToolCalls    []ToolCall      `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        Usage           `json:"usage"`
}

// Usage reports token consumption for a single request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage from another response into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
