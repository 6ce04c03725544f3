// Package anthropic adapts the Anthropic Messages API to llm.Client.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

// DefaultMaxTokens bounds each completion when no WithMaxTokens option is given.
const DefaultMaxTokens = 1024

// Client implements llm.Client on top of the Messages API.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

type config struct {
	maxTokens int64
	logger    *slog.Logger
	reqOpts   []option.RequestOption
}

// Option configures a Client.
type Option func(*config)

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int64) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithBaseURL points the client at a different API host (proxies, tests).
func WithBaseURL(url string) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, option.WithBaseURL(url)) }
}

// WithMaxRetries sets how many times the SDK retries transient HTTP failures.
// The orchestrator itself never retries a model call.
func WithMaxRetries(n int) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, option.WithMaxRetries(n)) }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRequestOptions passes raw SDK request options through.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, opts...) }
}

// New returns a Client for model (e.g. "claude-sonnet-4-5").
func New(apiKey, model string, opts ...Option) *Client {
	cfg := config{maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.reqOpts...)
	return &Client{
		client:    sdk.NewClient(reqOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
		logger:    cfg.logger,
	}
}

// Complete sends the conversation and tool list and converts the reply into blocks.
func (c *Client) Complete(ctx context.Context, messages []conversation.Message, tools []shipdesk.Descriptor) (*llm.Response, error) {
	params, err := c.buildParams(messages, tools)
	if err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	resp := convertResponse(msg)
	c.logger.DebugContext(ctx, "anthropic completion",
		"model", c.model,
		"blocks", len(resp.Blocks),
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

func (c *Client) buildParams(messages []conversation.Message, tools []shipdesk.Descriptor) (sdk.MessageNewParams, error) {
	system, rest := llm.SplitSystem(messages)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  convertMessages(rest),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	for _, d := range tools {
		tp, err := convertTool(d)
		if err != nil {
			return params, err
		}
		params.Tools = append(params.Tools, sdk.ToolUnionParam{OfTool: &tp})
	}
	return params, nil
}

func convertTool(d shipdesk.Descriptor) (sdk.ToolParam, error) {
	schema := sdk.ToolInputSchemaParam{Properties: d.Parameters["properties"]}
	switch req := d.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			s, ok := r.(string)
			if !ok {
				return sdk.ToolParam{}, fmt.Errorf("anthropic: tool %s: non-string required entry %v", d.Name, r)
			}
			schema.Required = append(schema.Required, s)
		}
	}
	return sdk.ToolParam{
		Name:        d.Name,
		Description: sdk.String(d.Description),
		InputSchema: schema,
	}, nil
}

// convertMessages maps the conversation onto alternating user/assistant turns.
// Consecutive tool results are merged into one user message as the API requires.
func convertMessages(messages []conversation.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	var results []sdk.ContentBlockParamUnion
	flush := func() {
		if len(results) > 0 {
			out = append(out, sdk.NewUserMessage(results...))
			results = nil
		}
	}
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleTool:
			r := m.ToolResult
			results = append(results, sdk.NewToolResultBlock(r.CallID, string(r.Output), r.IsError))
		case conversation.RoleUser, conversation.RoleSystem:
			flush()
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case conversation.RoleAssistant:
			flush()
			var blocks []sdk.ContentBlockParamUnion
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, call := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(call.CallID, toolInput(call.Arguments), call.Name))
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out
}

// toolInput returns args when they are a JSON object and an empty object otherwise.
// Malformed arguments were already answered with an error result.
func toolInput(args json.RawMessage) any {
	var obj map[string]any
	if len(args) == 0 || json.Unmarshal(args, &obj) != nil || obj == nil {
		return map[string]any{}
	}
	return args
}

func convertResponse(msg *sdk.Message) *llm.Response {
	resp := &llm.Response{
		StopReason: string(msg.StopReason),
		Usage: llm.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Blocks = append(resp.Blocks, llm.TextBlock(b.Text))
		case sdk.ToolUseBlock:
			resp.Blocks = append(resp.Blocks, llm.ToolCallBlock(b.ID, b.Name, b.Input))
		}
	}
	return resp
}

var _ llm.Client = (*Client)(nil)
