// Package orchestrator drives the tool-calling conversation between the model and the registry.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/conversation"
	"github.com/skosovsky/shipdesk/llm"
)

// State is the position of a run in the loop's state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dispatcher is the tool side of the loop. *shipdesk.Registry implements it.
type Dispatcher interface {
	Descriptors() []shipdesk.Descriptor
	Execute(ctx context.Context, call shipdesk.ToolCall) shipdesk.ToolResult
}

// Result is the outcome of one Run. Session always holds the full ordered conversation.
type Result struct {
	Session     *conversation.Session
	Text        string
	ToolOutputs []json.RawMessage
	Turns       int
	State       State
	Mode        ResultMode
}

// Loop runs conversations against one model client and one tool dispatcher.
// It holds no per-run state and is safe for concurrent Run calls.
type Loop struct {
	client llm.Client
	tools  Dispatcher
	opts   options
}

// New returns a Loop.
func New(client llm.Client, tools Dispatcher, opts ...Option) (*Loop, error) {
	if client == nil {
		return nil, errors.New("orchestrator: nil model client")
	}
	if tools == nil {
		return nil, errors.New("orchestrator: nil tool dispatcher")
	}
	o := options{
		maxTurns:     DefaultMaxTurns,
		systemPrompt: DefaultSystemPrompt,
		mode:         ResultProse,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Loop{client: client, tools: tools, opts: o}, nil
}

// MaxTurns returns the configured model-call limit.
func (l *Loop) MaxTurns() int { return l.opts.maxTurns }

// Mode returns the configured result mode.
func (l *Loop) Mode() ResultMode { return l.opts.mode }

// Run answers query. It returns a non-nil Result even on failure so callers can inspect
// the session. Only loop-level failures are returned as errors: *UpstreamModelError,
// *MaxTurnsError, ErrMalformedResponse and context cancellation. Tool failures are fed
// back to the model as error results.
func (l *Loop) Run(ctx context.Context, query string, opts ...RunOption) (*Result, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if !ro.identity.IsZero() {
		ctx = shipdesk.WithIdentity(ctx, ro.identity)
	}

	seed := make([]conversation.Message, 0, 2)
	if l.opts.systemPrompt != "" {
		seed = append(seed, conversation.System(l.opts.systemPrompt))
	}
	seed = append(seed, conversation.User(query))
	session, err := conversation.NewSession(seed...)
	if err != nil {
		return nil, err
	}
	res := &Result{Session: session, Mode: l.opts.mode, State: StateAwaitingModel}
	log := l.opts.logger.With("run_id", uuid.NewString())
	start := time.Now()

	fail := func(err error) (*Result, error) {
		res.State = StateFailed
		res.ToolOutputs = session.LastToolOutputs()
		log.ErrorContext(ctx, "run failed", "turns", res.Turns, "duration", time.Since(start), "error", err)
		return res, err
	}

	for turn := 1; turn <= l.opts.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run canceled before turn %d: %w", turn, err))
		}
		res.State = StateAwaitingModel
		res.Turns = turn
		log.DebugContext(ctx, "turn start", "turn", turn, "messages", session.Len())

		resp, err := l.client.Complete(ctx, session.All(), l.tools.Descriptors())
		if err != nil {
			return fail(&UpstreamModelError{Turn: turn, Err: err})
		}
		ext, parseErr := Extract(resp, turn)
		if ext.Empty() {
			return fail(fmt.Errorf("turn %d: %w", turn, ErrMalformedResponse))
		}
		if parseErr != nil {
			log.WarnContext(ctx, "malformed tool arguments", "turn", turn, "error", parseErr)
		}
		text := strings.Join(ext.Texts, "\n")

		if len(ext.Calls) == 0 {
			if strings.TrimSpace(text) == "" {
				return fail(fmt.Errorf("turn %d: blank text: %w", turn, ErrMalformedResponse))
			}
			if err := session.Append(conversation.Assistant(text)); err != nil {
				return fail(err)
			}
			res.State = StateDone
			res.Text = text
			res.ToolOutputs = session.LastToolOutputs()
			log.InfoContext(ctx, "run done", "turns", turn, "duration", time.Since(start))
			return res, nil
		}

		if err := session.Append(conversation.Assistant(text, ext.Calls...)); err != nil {
			return fail(fmt.Errorf("turn %d: %w: %w", turn, ErrMalformedResponse, err))
		}
		res.State = StateExecutingTools
		if err := l.dispatchAll(ctx, log, session, ext.Calls); err != nil {
			return fail(err)
		}
		log.DebugContext(ctx, "turn end", "turn", turn, "calls", len(ext.Calls))
	}
	return fail(&MaxTurnsError{Limit: l.opts.maxTurns})
}

// dispatchAll runs calls sequentially in order and appends one result per call.
// Once ctx is canceled the remaining calls are answered with a canceled result and
// the cancellation is returned.
func (l *Loop) dispatchAll(ctx context.Context, log *slog.Logger, session *conversation.Session, calls []conversation.ToolCallRequest) error {
	var canceled error
	for _, call := range calls {
		var (
			output  json.RawMessage
			isError bool
		)
		switch {
		case canceled != nil || ctx.Err() != nil:
			if canceled == nil {
				canceled = ctx.Err()
			}
			output, isError = shipdesk.ErrorPayload(shipdesk.KindCanceled, "the request was canceled before this tool ran"), true
		case call.Malformed:
			output, isError = shipdesk.ErrorPayload(shipdesk.KindArgumentParse, "arguments are not a valid JSON object; resend the call with corrected arguments"), true
		default:
			output, isError = l.dispatch(ctx, log, call)
		}
		if err := session.Append(conversation.ToolOutput(call.CallID, call.Name, output, isError)); err != nil {
			return err
		}
	}
	if canceled != nil {
		return fmt.Errorf("run canceled during tool execution: %w", canceled)
	}
	return nil
}

func (l *Loop) dispatch(ctx context.Context, log *slog.Logger, call conversation.ToolCallRequest) (json.RawMessage, bool) {
	log.DebugContext(ctx, "tool dispatch", "tool", call.Name, "call_id", call.CallID)
	tr := l.tools.Execute(ctx, shipdesk.ToolCall{ID: call.CallID, ToolName: call.Name, Args: call.Arguments})
	if tr.Error == nil {
		return tr.Result, false
	}
	kind := shipdesk.ErrorKind(tr.Error)
	log.WarnContext(ctx, "tool error", "tool", call.Name, "call_id", call.CallID, "kind", kind, "error", tr.Error)
	msg := shipdesk.PublicMessage(tr.Error)
	if kind == shipdesk.KindCanceled {
		msg = "the request was canceled while this tool ran"
	}
	return shipdesk.ErrorPayload(kind, msg), true
}

// Payload returns what the reply projector should render: the final text in ResultProse
// mode, the last tool outputs as a JSON array in ResultToolOutput mode.
func (r *Result) Payload() (string, error) {
	if r.Mode == ResultToolOutput {
		outs := r.ToolOutputs
		if outs == nil {
			outs = []json.RawMessage{}
		}
		data, err := json.Marshal(outs)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return r.Text, nil
}
