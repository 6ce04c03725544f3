// Package conversation holds the ordered, append-only message history of one assistant run.
package conversation

import "encoding/json"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is one tool invocation requested by the model.
// Malformed is set when Arguments could not be parsed as JSON; the call still needs a result.
type ToolCallRequest struct {
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Malformed bool            `json:"malformed,omitempty"`
}

// ToolCallResult answers exactly one ToolCallRequest. Output is always valid JSON; on failure it
// carries an error payload and IsError is set.
type ToolCallResult struct {
	CallID  string          `json:"call_id"`
	Name    string          `json:"name"`
	Output  json.RawMessage `json:"output"`
	IsError bool            `json:"is_error,omitempty"`
}

// Message is one entry of the conversation.
//
// System and user messages carry Text. Assistant messages carry Text and/or ToolCalls.
// Tool messages carry exactly one ToolResult.
type Message struct {
	Role       Role              `json:"role"`
	Text       string            `json:"text,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolResult *ToolCallResult   `json:"tool_result,omitempty"`
}

// System returns a system message.
func System(text string) Message { return Message{Role: RoleSystem, Text: text} }

// User returns a user message.
func User(text string) Message { return Message{Role: RoleUser, Text: text} }

// Assistant returns an assistant message with optional tool calls.
func Assistant(text string, calls ...ToolCallRequest) Message {
	return Message{Role: RoleAssistant, Text: text, ToolCalls: calls}
}

// ToolOutput returns a tool message answering callID.
func ToolOutput(callID, name string, output json.RawMessage, isError bool) Message {
	return Message{
		Role: RoleTool,
		ToolResult: &ToolCallResult{
			CallID:  callID,
			Name:    name,
			Output:  output,
			IsError: isError,
		},
	}
}

func (m Message) clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCallRequest, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			c.Arguments = append(json.RawMessage(nil), c.Arguments...)
			out.ToolCalls[i] = c
		}
	}
	if m.ToolResult != nil {
		r := *m.ToolResult
		r.Output = append(json.RawMessage(nil), r.Output...)
		out.ToolResult = &r
	}
	return out
}
