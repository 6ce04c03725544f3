// Package channel is the boundary between inbound customer messages and the loop.
// A Handler normalizes the message, runs the loop under the sender's verified identity and
// projects the result into a reply. It always produces a reply.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/orchestrator"
)

// CouldNotProcess is the reply sent when a message cannot be answered.
const CouldNotProcess = "Sorry, we could not process your request right now. Our logistics team will get back to you shortly."

// Kind is the transport a message arrived on.
type Kind int

const (
	Email Kind = iota
	Chat
)

func (k Kind) String() string {
	if k == Chat {
		return "chat"
	}
	return "email"
}

// Inbound is one customer message. Sender is the identity the transport verified
// (the From address of a mail, the phone number behind a chat account).
type Inbound struct {
	Kind    Kind
	Sender  shipdesk.Identity
	Subject string
	Body    string
	HTML    bool
}

// Query returns the text handed to the model. HTML bodies are converted to markdown and
// a non-empty subject is prepended.
func (in Inbound) Query() (string, error) {
	body := in.Body
	if in.HTML {
		md, err := htmltomarkdown.ConvertString(body)
		if err != nil {
			return "", fmt.Errorf("channel: convert html body: %w", err)
		}
		body = md
	}
	body = strings.TrimSpace(body)
	subject := strings.TrimSpace(in.Subject)
	switch {
	case subject == "":
		return body, nil
	case body == "":
		return subject, nil
	default:
		return "Subject: " + subject + "\n\n" + body, nil
	}
}

// Reply is what goes back to the sender. Handled is false when Text is CouldNotProcess.
type Reply struct {
	Text    string
	Handled bool
}

// Runner runs one conversation. *orchestrator.Loop implements it.
type Runner interface {
	Run(ctx context.Context, query string, opts ...orchestrator.RunOption) (*orchestrator.Result, error)
}

// Handler answers inbound messages.
type Handler struct {
	runner    Runner
	projector Projector
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithProjector replaces DefaultProjector.
func WithProjector(p Projector) HandlerOption {
	return func(h *Handler) {
		if p != nil {
			h.projector = p
		}
	}
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler returns a Handler that runs messages through r.
func NewHandler(r Runner, opts ...HandlerOption) *Handler {
	h := &Handler{runner: r, projector: DefaultProjector{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle answers in. It never panics and never fails: anything that prevents an answer
// is logged and turned into the CouldNotProcess reply.
func (h *Handler) Handle(ctx context.Context, in Inbound) (reply Reply) {
	log := h.logger.With("channel", in.Kind.String())
	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "handler panic", "panic", p)
			reply = fallback()
		}
	}()

	if h.runner == nil {
		log.ErrorContext(ctx, "handler has no runner")
		return fallback()
	}
	query, err := in.Query()
	if err != nil {
		log.WarnContext(ctx, "unreadable message", "error", err)
		return fallback()
	}
	if query == "" {
		log.InfoContext(ctx, "empty message")
		return fallback()
	}

	res, err := h.runner.Run(ctx, query, orchestrator.WithIdentity(in.Sender))
	if err != nil {
		log.ErrorContext(ctx, "run failed", "error", err)
		return fallback()
	}
	text, ok := h.projector.Project(in, res)
	if !ok || strings.TrimSpace(text) == "" {
		log.WarnContext(ctx, "nothing to reply", "turns", res.Turns)
		return fallback()
	}
	return Reply{Text: text, Handled: true}
}

func fallback() Reply { return Reply{Text: CouldNotProcess} }
