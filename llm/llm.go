// Package llm defines the provider-neutral model contract the orchestrator talks to.
// Concrete adapters live in llm/anthropic and llm/openai; llm/provider picks one from config.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
)

// BlockType distinguishes the content blocks of a model response.
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockToolCall BlockType = "tool_call"
)

// Block is one element of a model response in provider order.
// Text blocks set Text; tool-call blocks set CallID, Name and Arguments.
type Block struct {
	Type      BlockType
	Text      string
	CallID    string
	Name      string
	Arguments json.RawMessage
}

// TextBlock returns a text block.
func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

// ToolCallBlock returns a tool-call block.
func ToolCallBlock(callID, name string, args json.RawMessage) Block {
	return Block{Type: BlockToolCall, CallID: callID, Name: name, Arguments: args}
}

// Usage is token accounting reported by the provider, when available.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is one model turn.
type Response struct {
	Blocks     []Block
	StopReason string
	Usage      Usage
}

// Client produces the next model turn for a conversation and the tools it may call.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*Response, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*Response, error) {
	return f(ctx, messages, tools)
}

// ErrEmptyResponse is returned by adapters when the provider answered with no choices at all.
var ErrEmptyResponse = errors.New("llm: empty response")

// SplitSystem separates leading system messages (joined with blank lines) from the rest.
// Providers that take the system prompt out of band use it.
func SplitSystem(messages []conversation.Message) (string, []conversation.Message) {
	var system string
	i := 0
	for ; i < len(messages) && messages[i].Role == conversation.RoleSystem; i++ {
		if system != "" {
			system += "\n\n"
		}
		system += messages[i].Text
	}
	return system, messages[i:]
}
