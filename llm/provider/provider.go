// Package provider builds an llm.Client from configuration.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skosovsky/shipdesk/llm"
	"github.com/skosovsky/shipdesk/llm/anthropic"
	"github.com/skosovsky/shipdesk/llm/openai"
)

// Config selects and configures a model provider.
type Config struct {
	Provider   string // "anthropic" (alias "claude") or "openai"
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int64
	MaxRetries int
	Logger     *slog.Logger
}

// New returns the llm.Client for cfg.Provider.
func New(_ context.Context, cfg Config) (llm.Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %q: model is required", cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api key is required", cfg.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic", "claude":
		opts := []anthropic.Option{anthropic.WithLogger(cfg.Logger)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.MaxTokens))
		}
		if cfg.MaxRetries >= 0 {
			opts = append(opts, anthropic.WithMaxRetries(cfg.MaxRetries))
		}
		return anthropic.New(cfg.APIKey, cfg.Model, opts...), nil
	case "openai":
		opts := []openai.Option{openai.WithLogger(cfg.Logger)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, cfg.Model, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
