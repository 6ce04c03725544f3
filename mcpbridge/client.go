package mcpbridge

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skosovsky/shipdesk"
)

// Dial connects an MCP client over transport.
func Dial(ctx context.Context, transport mcp.Transport) (*mcp.ClientSession, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "shipdesk-client", Version: Version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpbridge: connect: %w", err)
	}
	return session, nil
}

// CommandTransport starts command (split on whitespace) and speaks MCP over its stdio.
func CommandTransport(ctx context.Context, command string) (mcp.Transport, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, errors.New("mcpbridge: empty server command")
	}
	// #nosec G204 -- the command comes from operator configuration
	return &mcp.CommandTransport{Command: exec.CommandContext(ctx, parts[0], parts[1:]...)}, nil
}

// RemoteTools lists the tools of session and wraps each one as a shipdesk.Tool that calls
// back over the session, in the server's registration order (OrderMetaKey) when it sends
// one and in list order otherwise. The caller identity in ctx travels in IdentityArg.
// Remote error results are mapped back to the registry taxonomy by their error kind. Tools
// the server does not mark read-only are registered as mutating.
func RemoteTools(ctx context.Context, session *mcp.ClientSession, opts ...shipdesk.ToolOption) ([]shipdesk.Tool, error) {
	var listed []*mcp.Tool
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcpbridge: list tools: %w", err)
		}
		listed = append(listed, t)
	}
	sortByOrder(listed)

	tools := make([]shipdesk.Tool, 0, len(listed))
	for _, t := range listed {
		schema, err := schemaMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcpbridge: tool %s: %w", t.Name, err)
		}
		toolOpts := opts
		if t.Annotations != nil && !t.Annotations.ReadOnlyHint {
			toolOpts = append(append([]shipdesk.ToolOption(nil), opts...), shipdesk.WithMutating())
		}
		tool, err := shipdesk.NewDynamicTool(t.Name, t.Description, schema, remoteCall(session, t.Name), toolOpts...)
		if err != nil {
			return nil, fmt.Errorf("mcpbridge: tool %s: %w", t.Name, err)
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// sortByOrder stably sorts tools by OrderMetaKey. Tools without it keep their list
// position after the ordered ones.
func sortByOrder(tools []*mcp.Tool) {
	slices.SortStableFunc(tools, func(a, b *mcp.Tool) int {
		ai, aok := metaOrder(a)
		bi, bok := metaOrder(b)
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
}

func metaOrder(t *mcp.Tool) (float64, bool) {
	if t == nil || t.Meta == nil {
		return 0, false
	}
	switch v := t.Meta[OrderMetaKey].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func remoteCall(session *mcp.ClientSession, name string) func(context.Context, []byte) ([]byte, error) {
	return func(ctx context.Context, args []byte) ([]byte, error) {
		withID, err := attachIdentity(ctx, args)
		if err != nil {
			return nil, err
		}
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: withID})
		if err != nil {
			return nil, fmt.Errorf("mcp call %s: %w", name, err)
		}
		text := contentText(res.Content)
		if res.IsError {
			return nil, remoteError(text)
		}
		if !json.Valid([]byte(text)) {
			return json.Marshal(text)
		}
		return []byte(text), nil
	}
}

func attachIdentity(ctx context.Context, args []byte) (json.RawMessage, error) {
	id, ok := shipdesk.IdentityFrom(ctx)
	if !ok {
		return json.RawMessage(args), nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil {
		return nil, &shipdesk.ClientError{Reason: "arguments must be a JSON object"}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	idJSON, err := json.Marshal(identityPayload{Email: id.Email, Phone: id.Phone})
	if err != nil {
		return nil, err
	}
	fields[IdentityArg] = idJSON
	return json.Marshal(fields)
}

const clientErrorPrefix = "invalid tool input: "

// remoteError rebuilds a local error from a remote error payload.
func remoteError(text string) error {
	body, ok := shipdesk.ParseErrorPayload([]byte(text))
	if !ok {
		return fmt.Errorf("remote tool failed: %s", text)
	}
	msg := body.Error.Message
	switch body.Error.Kind {
	case shipdesk.KindInvalidInput, shipdesk.KindArgumentParse:
		return &shipdesk.ClientError{Reason: strings.TrimPrefix(msg, clientErrorPrefix)}
	case shipdesk.KindTimeout:
		return fmt.Errorf("remote: %w", shipdesk.ErrTimeout)
	case shipdesk.KindCanceled:
		return fmt.Errorf("remote: %w", context.Canceled)
	default:
		return fmt.Errorf("remote %s: %s", body.Error.Kind, msg)
	}
}

func contentText(content []mcp.Content) string {
	var b strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func schemaMap(schema any) (map[string]any, error) {
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{"type": "object"}
	}
	return m, nil
}
