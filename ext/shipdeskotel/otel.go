// Package shipdeskotel traces tool executions with OpenTelemetry.
//
// Install it as registry middleware:
//
//	reg.Use(shipdeskotel.Middleware(), shipdesk.WithLogging(logger))
//
// Each execution becomes one span named "tool <name>". Caller identity is never recorded.
package shipdeskotel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skosovsky/shipdesk"
)

// ScopeName is the instrumentation scope used for the tracer.
const ScopeName = "github.com/skosovsky/shipdesk/ext/shipdeskotel"

// Attribute keys set on tool spans.
const (
	AttrToolName  = attribute.Key("shipdesk.tool.name")
	AttrMutating  = attribute.Key("shipdesk.tool.mutating")
	AttrArgsBytes = attribute.Key("shipdesk.tool.args_bytes")
	AttrOutBytes  = attribute.Key("shipdesk.tool.result_bytes")
	AttrErrorKind = attribute.Key("shipdesk.error.kind")
	AttrIdentity  = attribute.Key("shipdesk.caller.verified")
)

type config struct {
	provider trace.TracerProvider
}

// Option configures Middleware.
type Option func(*config)

// WithTracerProvider sets the provider. Default is otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.provider = tp }
}

// Middleware returns a registry middleware that wraps every execution in a span.
// Client errors leave the span status unset since the model is expected to correct them;
// every other error marks the span as failed.
func Middleware(opts ...Option) shipdesk.Middleware {
	c := config{}
	for _, opt := range opts {
		opt(&c)
	}
	if c.provider == nil {
		c.provider = otel.GetTracerProvider()
	}
	tracer := c.provider.Tracer(ScopeName)
	return func(next shipdesk.Tool) shipdesk.Tool {
		return &tracedTool{next: next, tracer: tracer}
	}
}

type tracedTool struct {
	next   shipdesk.Tool
	tracer trace.Tracer
}

func (t *tracedTool) Name() string               { return t.next.Name() }
func (t *tracedTool) Description() string        { return t.next.Description() }
func (t *tracedTool) Parameters() map[string]any { return t.next.Parameters() }

func (t *tracedTool) Timeout() time.Duration {
	if m, ok := t.next.(shipdesk.ToolMetadata); ok {
		return m.Timeout()
	}
	return 0
}

func (t *tracedTool) Tags() []string {
	if m, ok := t.next.(shipdesk.ToolMetadata); ok {
		return m.Tags()
	}
	return nil
}

func (t *tracedTool) IsMutating() bool {
	if m, ok := t.next.(shipdesk.ToolMetadata); ok {
		return m.IsMutating()
	}
	return false
}

func (t *tracedTool) Execute(ctx context.Context, args []byte) ([]byte, error) {
	_, verified := shipdesk.IdentityFrom(ctx)
	ctx, span := t.tracer.Start(ctx, "tool "+t.next.Name(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrToolName.String(t.next.Name()),
			AttrMutating.Bool(t.IsMutating()),
			AttrArgsBytes.Int(len(args)),
			AttrIdentity.Bool(verified),
		),
	)
	defer span.End()

	res, err := t.next.Execute(ctx, args)
	if err != nil {
		span.SetAttributes(AttrErrorKind.String(shipdesk.ErrorKind(err)))
		if shipdesk.IsClientError(err) {
			span.AddEvent("client error", trace.WithAttributes(attribute.String("message", shipdesk.PublicMessage(err))))
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, shipdesk.ErrorKind(err))
		return nil, err
	}
	span.SetAttributes(AttrOutBytes.Int(len(res)))
	span.SetStatus(codes.Ok, "")
	return res, nil
}
