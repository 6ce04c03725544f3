package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrDanglingToolCall is returned when a user or assistant message is appended while
	// tool calls from the previous assistant turn are still unanswered.
	ErrDanglingToolCall = errors.New("conversation: tool call without result")
	// ErrUnexpectedToolResult is returned when a tool result answers no pending call.
	ErrUnexpectedToolResult = errors.New("conversation: tool result without pending call")
	// ErrInvalidMessage is returned for messages whose shape does not match their role.
	ErrInvalidMessage = errors.New("conversation: invalid message")
)

// Session is an ordered, append-only log of messages for one conversation.
// It guarantees every tool call of an assistant turn is answered exactly once before
// anything else is appended. Safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	messages []Message
	pending  []string // call ids of the last assistant turn not yet answered, in order
}

// NewSession returns a session seeded with msgs. It fails if msgs violate the append rules.
func NewSession(msgs ...Message) (*Session, error) {
	s := &Session{}
	for _, m := range msgs {
		if err := s.Append(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Append adds m to the end of the session.
func (s *Session) Append(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m.Role {
	case RoleSystem, RoleUser:
		if len(m.ToolCalls) > 0 || m.ToolResult != nil {
			return fmt.Errorf("%w: %s message with tool data", ErrInvalidMessage, m.Role)
		}
		if len(s.pending) > 0 {
			return fmt.Errorf("%w: %v", ErrDanglingToolCall, s.pending)
		}
	case RoleAssistant:
		if m.ToolResult != nil {
			return fmt.Errorf("%w: assistant message with tool result", ErrInvalidMessage)
		}
		if len(s.pending) > 0 {
			return fmt.Errorf("%w: %v", ErrDanglingToolCall, s.pending)
		}
		seen := make(map[string]struct{}, len(m.ToolCalls))
		for _, c := range m.ToolCalls {
			if c.CallID == "" {
				return fmt.Errorf("%w: tool call %q without id", ErrInvalidMessage, c.Name)
			}
			if _, dup := seen[c.CallID]; dup {
				return fmt.Errorf("%w: duplicate call id %q", ErrInvalidMessage, c.CallID)
			}
			seen[c.CallID] = struct{}{}
		}
		for _, c := range m.ToolCalls {
			s.pending = append(s.pending, c.CallID)
		}
	case RoleTool:
		if m.ToolResult == nil || len(m.ToolCalls) > 0 {
			return fmt.Errorf("%w: tool message must carry exactly one result", ErrInvalidMessage)
		}
		if !json.Valid(m.ToolResult.Output) {
			return fmt.Errorf("%w: tool output for %q is not JSON", ErrInvalidMessage, m.ToolResult.CallID)
		}
		i := slices.Index(s.pending, m.ToolResult.CallID)
		if i < 0 {
			return fmt.Errorf("%w: %q", ErrUnexpectedToolResult, m.ToolResult.CallID)
		}
		s.pending = slices.Delete(s.pending, i, i+1)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	s.messages = append(s.messages, m.clone())
	return nil
}

// All returns a copy of every message in order.
func (s *Session) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Pending returns the call ids still waiting for a result.
func (s *Session) Pending() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pending)
}

// LastToolOutputs scans backward for the most recent contiguous run of tool results and
// returns their outputs in the order they were appended. Trailing non-tool messages (such as
// the final assistant answer) are skipped. Returns nil when the session has no tool results.
func (s *Session) LastToolOutputs() []json.RawMessage {
	results := s.LastToolResults()
	if len(results) == 0 {
		return nil
	}
	out := make([]json.RawMessage, len(results))
	for i, r := range results {
		out[i] = r.Output
	}
	return out
}

// LastToolResults is LastToolOutputs with the call id, tool name and error flag kept.
func (s *Session) LastToolResults() []ToolCallResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	end := len(s.messages)
	for end > 0 && s.messages[end-1].Role != RoleTool {
		end--
	}
	start := end
	for start > 0 && s.messages[start-1].Role == RoleTool {
		start--
	}
	if start == end {
		return nil
	}
	out := make([]ToolCallResult, 0, end-start)
	for _, m := range s.messages[start:end] {
		r := m.clone().ToolResult
		out = append(out, *r)
	}
	return out
}

// LastText returns the text of the most recent assistant message that has any.
func (s *Session) LastText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Role == RoleAssistant && m.Text != "" {
			return m.Text
		}
	}
	return ""
}
