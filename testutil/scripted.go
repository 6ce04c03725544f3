package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

// ErrScriptExhausted is returned by ScriptedClient when no step is left and no fallback is set.
var ErrScriptExhausted = errors.New("testutil: scripted client has no more steps")

// Step is one scripted model turn: either a response or an error.
type Step struct {
	Response *llm.Response
	Err      error
}

// Request is what the loop sent for one model call.
type Request struct {
	Messages []conversation.Message
	Tools    []shipdesk.Descriptor
}

// ScriptedClient is an llm.Client that replays Steps in order and records every request.
// When the steps run out it uses Fallback, if set.
type ScriptedClient struct {
	Fallback func(req Request) Step

	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedClient returns a client replaying steps.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Complete returns the next scripted step. It honors ctx cancellation.
func (s *ScriptedClient) Complete(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := Request{Messages: messages, Tools: tools}
	s.mu.Lock()
	n := len(s.requests)
	s.requests = append(s.requests, req)
	var step Step
	switch {
	case n < len(s.steps):
		step = s.steps[n]
	case s.Fallback != nil:
		s.mu.Unlock()
		step = s.Fallback(req)
		return step.Response, step.Err
	default:
		step = Step{Err: ErrScriptExhausted}
	}
	s.mu.Unlock()
	return step.Response, step.Err
}

// Calls returns how many times Complete was called.
func (s *ScriptedClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests.
func (s *ScriptedClient) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Reply is a step answering with plain text.
func Reply(text string) Step {
	return Step{Response: &llm.Response{Blocks: []llm.Block{llm.TextBlock(text)}, StopReason: "end_turn"}}
}

// CallTools is a step answering with the given blocks (usually ToolCall blocks).
func CallTools(blocks ...llm.Block) Step {
	return Step{Response: &llm.Response{Blocks: blocks, StopReason: "tool_use"}}
}

// ToolCall builds a tool-call block with raw JSON arguments.
func ToolCall(id, name, args string) llm.Block {
	return llm.ToolCallBlock(id, name, json.RawMessage(args))
}

// Fail is a step returning err.
func Fail(err error) Step { return Step{Err: err} }

var _ llm.Client = (*ScriptedClient)(nil)
