// Package mcpbridge carries registry tools across a process boundary over the Model Context
// Protocol: NewServer publishes a registry, RemoteTools turns a remote server's tools back
// into registry tools.
package mcpbridge

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skosovsky/shipdesk"
)

// Version is reported in the MCP handshake.
const Version = "0.3.0"

// OrderMetaKey is the tool _meta key carrying the registration index. MCP servers list
// tools sorted by name; RemoteTools restores registration order from it.
const OrderMetaKey = "shipdesk/order"

// IdentityArg is the reserved argument key that carries the caller identity from
// RemoteTools to the server. The server removes it before dispatch. Only serve to clients
// you trust to authenticate callers, such as a parent process over stdio.
const IdentityArg = "_shipdesk_identity"

type identityPayload struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type serverOptions struct {
	name   string
	logger *slog.Logger
}

// ServerOption configures NewServer.
type ServerOption func(*serverOptions)

// WithServerName sets the implementation name reported to clients. Default is "shipdesk".
func WithServerName(name string) ServerOption {
	return func(o *serverOptions) { o.name = name }
}

// WithServerLogger sets the logger. Default is slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// NewServer returns an MCP server exposing every tool registered in reg, in registration order.
// Tool failures are returned as error results carrying shipdesk.ErrorPayload, never as
// protocol errors.
func NewServer(reg *shipdesk.Registry, opts ...ServerOption) *mcp.Server {
	o := serverOptions{name: "shipdesk"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	srv := mcp.NewServer(&mcp.Implementation{Name: o.name, Version: Version}, nil)
	for i, d := range reg.Descriptors() {
		srv.AddTool(&mcp.Tool{
			Meta:        mcp.Meta{OrderMetaKey: i},
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Parameters,
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: !mutating(reg, d.Name)},
		}, handler(reg, d.Name, o.logger))
	}
	return srv
}

// Serve runs NewServer(reg) over stdio until ctx is done or the client disconnects.
func Serve(ctx context.Context, reg *shipdesk.Registry, opts ...ServerOption) error {
	return NewServer(reg, opts...).Run(ctx, &mcp.StdioTransport{})
}

func handler(reg *shipdesk.Registry, name string, log *slog.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, id, err := splitIdentity(req.Params.Arguments)
		if err != nil {
			return errorResult(shipdesk.KindArgumentParse, "arguments are not a valid JSON object"), nil
		}
		if !id.IsZero() {
			ctx = shipdesk.WithIdentity(ctx, id)
		}
		res := reg.Execute(ctx, shipdesk.ToolCall{ID: "mcp-" + uuid.NewString(), ToolName: name, Args: args})
		if res.Error != nil {
			kind := shipdesk.ErrorKind(res.Error)
			log.WarnContext(ctx, "mcp tool error", "tool", name, "kind", kind, "error", res.Error)
			return errorResult(kind, shipdesk.PublicMessage(res.Error)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(res.Result)}},
		}, nil
	}
}

func mutating(reg *shipdesk.Registry, name string) bool {
	t, ok := reg.GetTool(name)
	if !ok {
		return false
	}
	m, ok := t.(shipdesk.ToolMetadata)
	return ok && m.IsMutating()
}

func errorResult(kind, message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(shipdesk.ErrorPayload(kind, message))}},
	}
}

// splitIdentity removes IdentityArg from raw arguments.
func splitIdentity(raw json.RawMessage) (json.RawMessage, shipdesk.Identity, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`), shipdesk.Identity{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, shipdesk.Identity{}, err
	}
	idRaw, ok := fields[IdentityArg]
	if !ok {
		return raw, shipdesk.Identity{}, nil
	}
	delete(fields, IdentityArg)
	var p identityPayload
	if err := json.Unmarshal(idRaw, &p); err != nil {
		return nil, shipdesk.Identity{}, err
	}
	args, err := json.Marshal(fields)
	if err != nil {
		return nil, shipdesk.Identity{}, err
	}
	return args, shipdesk.Identity{Email: p.Email, Phone: p.Phone}, nil
}
