// Package openai adapts OpenAI-compatible chat completions to llm.Client.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

// Client implements llm.Client with the chat completions endpoint.
type Client struct {
	client *sdk.Client
	model  string
	strict bool
	logger *slog.Logger
}

type config struct {
	baseURL string
	strict  bool
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*config)

// WithBaseURL targets an OpenAI-compatible server (Azure, vLLM, tests).
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithStrictTools asks the server to enforce tool schemas (Structured Outputs).
// Register tools with shipdesk.WithStrict when enabling it.
func WithStrictTools() Option {
	return func(c *config) { c.strict = true }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New returns a Client for model (e.g. "gpt-4o-mini").
func New(apiKey, model string, opts ...Option) *Client {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	oc := sdk.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		oc.BaseURL = cfg.baseURL
	}
	return &Client{
		client: sdk.NewClientWithConfig(oc),
		model:  model,
		strict: cfg.strict,
		logger: cfg.logger,
	}
}

// Complete sends the conversation and tool list and converts the first choice into blocks.
func (c *Client) Complete(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*llm.Response, error) {
	req := sdk.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertMessages(messages),
	}
	for _, d := range tools {
		req.Tools = append(req.Tools, sdk.Tool{
			Type: sdk.ToolTypeFunction,
			Function: &sdk.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
				Strict:      c.strict,
			},
		})
	}
	out, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.Join(llm.ErrEmptyResponse, errors.New("openai: no choices"))
	}
	resp := convertChoice(out.Choices[0])
	resp.Usage = llm.Usage{
		InputTokens:  int64(out.Usage.PromptTokens),
		OutputTokens: int64(out.Usage.CompletionTokens),
	}
	c.logger.DebugContext(ctx, "openai completion",
		"model", c.model,
		"blocks", len(resp.Blocks),
		"finish_reason", resp.StopReason,
	)
	return resp, nil
}

func convertMessages(messages []conversation.Message) []sdk.ChatCompletionMessage {
	out := make([]sdk.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleSystem, Content: m.Text})
		case conversation.RoleUser:
			out = append(out, sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleUser, Content: m.Text})
		case conversation.RoleAssistant:
			msg := sdk.ChatCompletionMessage{Role: sdk.ChatMessageRoleAssistant, Content: m.Text}
			for _, call := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, sdk.ToolCall{
					ID:   call.CallID,
					Type: sdk.ToolTypeFunction,
					Function: sdk.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				})
			}
			out = append(out, msg)
		case conversation.RoleTool:
			r := m.ToolResult
			out = append(out, sdk.ChatCompletionMessage{
				Role:       sdk.ChatMessageRoleTool,
				Content:    string(r.Output),
				Name:       r.Name,
				ToolCallID: r.CallID,
			})
		}
	}
	return out
}

func convertChoice(choice sdk.ChatCompletionChoice) *llm.Response {
	resp := &llm.Response{StopReason: string(choice.FinishReason)}
	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, llm.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.Blocks = append(resp.Blocks, llm.ToolCallBlock(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}
	return resp
}

var _ llm.Client = (*Client)(nil)
