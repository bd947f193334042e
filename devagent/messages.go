package devagent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lathelabs/lathe/llmclient"
	"github.com/lathelabs/lathe/mcpclient"
)

// Transcript message roles, shared with the model gateway.
const (
	RoleSystem    = llmclient.RoleSystem
	RoleUser      = llmclient.RoleUser
	RoleAssistant = llmclient.RoleAssistant
	RoleTool      = llmclient.RoleTool
)

var validRoles = map[string]bool{
	RoleSystem:    true,
	RoleUser:      true,
	RoleAssistant: true,
	RoleTool:      true,
}

// Message is one transcript entry. Content is always flattened text:
// structured model output is reduced to a string before storage, so a
// saved transcript round-trips identically regardless of provider.
// Tool-call requests are not stored; only their rendered results are.
type Message struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage wraps rendered tool output for the transcript. The
// "Tool result:" prefix keeps results recognizable to the model after
// the gateway downgrades the role for providers that reject free-
// standing tool messages.
func ToolResultMessage(content, toolCallID, toolName string) Message {
	return Message{
		Role:       RoleTool,
		Content:    "Tool result:\n" + content,
		ToolCallID: toolCallID,
		Name:       toolName,
	}
}

// MessageFromMap validates and normalizes an untyped message, the
// shape persisted transcripts and API payloads arrive in. The role
// must be one of the known four and the content key must be present;
// content itself may be null, a string, or a list of typed parts.
// A tool_calls key is accepted but dropped.
func MessageFromMap(data map[string]any) (Message, error) {
	roleVal, ok := data["role"]
	if !ok {
		return Message{}, NewValidationError("message is missing the 'role' field")
	}
	role, _ := roleVal.(string)
	if !validRoles[role] {
		return Message{}, NewValidationError("invalid message role %q", fmt.Sprint(roleVal))
	}

	contentVal, ok := data["content"]
	if !ok {
		return Message{}, NewValidationError("message is missing the 'content' field")
	}

	msg := Message{Role: role, Content: FlattenContent(contentVal)}
	if v, ok := data["tool_call_id"]; ok && v != nil {
		msg.ToolCallID = fmt.Sprint(v)
	}
	if v, ok := data["name"]; ok && v != nil {
		msg.Name = fmt.Sprint(v)
	}
	return msg, nil
}

// FlattenContent reduces any content value to plain text. Strings pass
// through, null becomes empty, a list of parts joins the text of its
// "text"-typed parts with newlines and stringifies the rest, and any
// other value is stringified.
func FlattenContent(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		parts := make([]string, 0, len(c))
		for _, part := range c {
			if m, ok := part.(map[string]any); ok && m["type"] == "text" {
				text, _ := m["text"].(string)
				parts = append(parts, text)
				continue
			}
			parts = append(parts, stringifyValue(part))
		}
		return strings.Join(parts, "\n")
	default:
		return stringifyValue(v)
	}
}

// flattenRawContent decodes provider content JSON and flattens it.
func flattenRawContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return FlattenContent(v)
}

func stringifyValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// RenderToolResult flattens content blocks into the text stored on a
// tool-result message. Text blocks pass through, json blocks are
// pretty-printed with two-space indentation, and unrecognized types
// render generically so output from newer servers degrades instead of
// failing the step. Blocks are joined by a blank line.
func RenderToolResult(blocks []mcpclient.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case mcpclient.BlockText:
			if s, ok := block.Data.(string); ok {
				parts = append(parts, s)
			} else {
				parts = append(parts, stringifyValue(block.Data))
			}
		case mcpclient.BlockJSON:
			data, err := json.MarshalIndent(block.Data, "", "  ")
			if err != nil {
				parts = append(parts, stringifyValue(block.Data))
				continue
			}
			parts = append(parts, string(data))
		default:
			parts = append(parts, fmt.Sprintf("[%s]: %s", block.Type, stringifyValue(block.Data)))
		}
	}
	return strings.Join(parts, "\n\n")
}
