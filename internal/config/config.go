// Package config loads process configuration from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/skosovsky/shipdesk/llm/provider"
	"github.com/skosovsky/shipdesk/orchestrator"
	"github.com/skosovsky/shipdesk/toolkits/shipments"
)

// Defaults applied when a variable is unset.
const (
	DefaultProvider    = "anthropic"
	DefaultDBURL       = "shipdesk.db"
	DefaultToolTimeout = 10 * time.Second
	DefaultMaxRetries  = 2
)

// Config holds the application configuration.
type Config struct {
	LLMProvider   string
	LLMModel      string
	LLMAPIKey     string
	LLMBaseURL    string
	LLMMaxRetries int

	// DBURL is a SQLite path (or "file:" DSN) or a postgres:// URL.
	DBURL string

	MaxTurns       int
	ResultMode     orchestrator.ResultMode
	ToolTimeout    time.Duration
	IdentityPolicy shipments.IdentityPolicy

	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads the given .env files (".env" when none are given; missing files are
// skipped) and then the environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup, which has the signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		LLMProvider: strings.ToLower(get("LLM_PROVIDER", DefaultProvider)),
		LLMModel:    get("LLM_MODEL", ""),
		LLMBaseURL:  get("LLM_BASE_URL", ""),
		DBURL:       get("DB_URL", DefaultDBURL),
		LogFormat:   strings.ToLower(get("LOG_FORMAT", "text")),
	}
	c.LLMAPIKey = get("LLM_API_KEY", "")
	if c.LLMAPIKey == "" {
		switch c.LLMProvider {
		case "anthropic", "claude":
			c.LLMAPIKey = get("ANTHROPIC_API_KEY", "")
		case "openai":
			c.LLMAPIKey = get("OPENAI_API_KEY", "")
		}
	}
	if c.LLMModel == "" {
		c.LLMModel = defaultModel(c.LLMProvider)
	}

	var err error
	if c.LLMMaxRetries, err = intVar(get, "LLM_MAX_RETRIES", DefaultMaxRetries); err != nil {
		return nil, err
	}
	if c.MaxTurns, err = intVar(get, "MAX_TURNS", orchestrator.DefaultMaxTurns); err != nil {
		return nil, err
	}
	if c.MaxTurns < 1 {
		return nil, fmt.Errorf("config: MAX_TURNS must be at least 1, got %d", c.MaxTurns)
	}

	var ok bool
	if c.ResultMode, ok = orchestrator.ParseResultMode(get("RESULT_MODE", "prose")); !ok {
		return nil, fmt.Errorf("config: unknown RESULT_MODE %q", get("RESULT_MODE", ""))
	}
	if c.IdentityPolicy, ok = shipments.ParseIdentityPolicy(get("IDENTITY_POLICY", "channel")); !ok {
		return nil, fmt.Errorf("config: unknown IDENTITY_POLICY %q", get("IDENTITY_POLICY", ""))
	}

	c.ToolTimeout = DefaultToolTimeout
	if v := get("TOOL_TIMEOUT", ""); v != "" {
		if c.ToolTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("config: TOOL_TIMEOUT: %w", err)
		}
	}

	if err := c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	return c, nil
}

func intVar(get func(string, string) string, key string, def int) (int, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func defaultModel(p string) string {
	switch p {
	case "openai":
		return "gpt-4o-mini"
	default:
		return "claude-sonnet-4-5"
	}
}

// Postgres reports whether DBURL points at PostgreSQL.
func (c *Config) Postgres() bool {
	return strings.HasPrefix(c.DBURL, "postgres://") || strings.HasPrefix(c.DBURL, "postgresql://")
}

// Provider returns the model provider configuration.
func (c *Config) Provider(logger *slog.Logger) provider.Config {
	return provider.Config{
		Provider:   c.LLMProvider,
		Model:      c.LLMModel,
		APIKey:     c.LLMAPIKey,
		BaseURL:    c.LLMBaseURL,
		MaxRetries: c.LLMMaxRetries,
		Logger:     logger,
	}
}

// Logger builds a slog.Logger writing to w in LogFormat at LogLevel.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
