package orchestrator

import (
	"log/slog"

	"github.com/skosovsky/shipdesk"
)

// DefaultMaxTurns bounds the number of model calls in one Run.
const DefaultMaxTurns = 10

// DefaultSystemPrompt describes the assistant's job and tone to the model.
const DefaultSystemPrompt = `You are the customer-service assistant of a shipping company.
Answer questions from shippers and couriers about shipments using the available tools.
Look records up instead of guessing. Identity fields are filled in from the verified sender.
Be brief and factual. If a shipment cannot be found, say so and ask for the correct number.`

// ResultMode selects what a finished run hands to the reply projector.
type ResultMode int

const (
	// ResultProse forwards the model's final text.
	ResultProse ResultMode = iota
	// ResultToolOutput forwards the last tool outputs as structured data.
	ResultToolOutput
)

func (m ResultMode) String() string {
	switch m {
	case ResultProse:
		return "prose"
	case ResultToolOutput:
		return "tool_output"
	default:
		return "unknown"
	}
}

// ParseResultMode maps "prose" and "tool_output" to a ResultMode.
func ParseResultMode(s string) (ResultMode, bool) {
	switch s {
	case "", "prose":
		return ResultProse, true
	case "tool_output", "tool-output", "tools":
		return ResultToolOutput, true
	default:
		return ResultProse, false
	}
}

type options struct {
	maxTurns     int
	systemPrompt string
	mode         ResultMode
	logger       *slog.Logger
}

// Option configures a Loop.
type Option func(*options)

// WithMaxTurns sets the model-call limit. Values below 1 keep the default.
func WithMaxTurns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt. An empty prompt sends no system message.
func WithSystemPrompt(p string) Option {
	return func(o *options) { o.systemPrompt = p }
}

// WithResultMode sets the result mode. Default is ResultProse.
func WithResultMode(m ResultMode) Option {
	return func(o *options) { o.mode = m }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type runOptions struct {
	identity shipdesk.Identity
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

// WithIdentity attaches the caller identity established by the inbound channel.
// Identity-scoped tools use it instead of anything the model extracted from text.
func WithIdentity(id shipdesk.Identity) RunOption {
	return func(o *runOptions) { o.identity = id }
}
