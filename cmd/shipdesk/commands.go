package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/skosovsky/shipdesk"
	"github.com/skosovsky/shipdesk/channel"
	"github.com/skosovsky/shipdesk/ext/shipdeskotel"
	"github.com/skosovsky/shipdesk/gateway"
	"github.com/skosovsky/shipdesk/internal/config"
	"github.com/skosovsky/shipdesk/llm/provider"
	"github.com/skosovsky/shipdesk/mcpbridge"
	"github.com/skosovsky/shipdesk/orchestrator"
	"github.com/skosovsky/shipdesk/toolkits/shipments"
)

func loadConfig(envFile string, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger(stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newRegistry returns a registry with tracing, logging and panic recovery installed.
func newRegistry(cfg *config.Config, logger *slog.Logger) *shipdesk.Registry {
	reg := shipdesk.NewRegistry(
		shipdesk.WithDefaultTimeout(cfg.ToolTimeout),
		shipdesk.WithRecoverPanics(true),
	)
	reg.Use(shipdeskotel.Middleware(), shipdesk.WithLogging(logger), shipdesk.WithRecovery())
	return reg
}

func localTools(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *shipdesk.Registry) (func(), error) {
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	k, err := shipments.New(st,
		shipments.WithIdentityPolicy(cfg.IdentityPolicy),
		shipments.WithLogger(logger),
	)
	if err == nil {
		err = k.Register(reg)
	}
	if err != nil {
		closeStore()
		return nil, err
	}
	return closeStore, nil
}

func remoteTools(ctx context.Context, command string, reg *shipdesk.Registry) (func(), error) {
	transport, err := mcpbridge.CommandTransport(ctx, command)
	if err != nil {
		return nil, err
	}
	session, err := mcpbridge.Dial(ctx, transport)
	if err != nil {
		return nil, err
	}
	tools, err := mcpbridge.RemoteTools(ctx, session)
	if err == nil {
		for _, t := range tools {
			if err = reg.Register(t); err != nil {
				break
			}
		}
	}
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return func() { _ = session.Close() }, nil
}

func runAsk(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile = fs.String("env", "", "Optional .env file (default .env)")
		email   = fs.String("email", "", "Verified sender email")
		phone   = fs.String("phone", "", "Verified sender phone number")
		subject = fs.String("subject", "", "Mail subject")
		html    = fs.Bool("html", false, "Message body is HTML")
		chat    = fs.Bool("chat", false, "Reply in chat style instead of mail style")
		remote  = fs.String("remote", "", `Dispatch tools through an MCP server command, e.g. "shipdesk mcp-serve"`)
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	body := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(body) == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" && strings.TrimSpace(*subject) == "" {
		return errors.New("ask: no message given")
	}

	cfg, logger, err := loadConfig(*envFile, stderr)
	if err != nil {
		return err
	}
	client, err := provider.New(ctx, cfg.Provider(logger))
	if err != nil {
		return err
	}

	reg := newRegistry(cfg, logger)
	defer func() { _ = reg.Shutdown(context.WithoutCancel(ctx)) }()
	var closeTools func()
	if *remote != "" {
		closeTools, err = remoteTools(ctx, *remote, reg)
	} else {
		closeTools, err = localTools(ctx, cfg, logger, reg)
	}
	if err != nil {
		return err
	}
	defer closeTools()

	loop, err := orchestrator.New(client, reg,
		orchestrator.WithMaxTurns(cfg.MaxTurns),
		orchestrator.WithResultMode(cfg.ResultMode),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	in := channel.Inbound{
		Sender:  shipdesk.Identity{Email: *email, Phone: *phone},
		Subject: *subject,
		Body:    body,
		HTML:    *html,
	}
	if *chat {
		in.Kind = channel.Chat
	}
	reply := channel.NewHandler(loop, channel.WithLogger(logger)).Handle(ctx, in)
	_, err = fmt.Fprintln(stdout, strings.TrimRight(reply.Text, "\n"))
	return err
}

func runSeed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	def := gateway.DefaultFixtureOptions()
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile   = fs.String("env", "", "Optional .env file (default .env)")
		seed      = fs.Uint64("random-seed", def.Seed, "Generator seed")
		shippers  = fs.Int("shippers", def.Shippers, "Number of shippers")
		couriers  = fs.Int("couriers", def.Couriers, "Number of couriers")
		shipCount = fs.Int("shipments", def.Shipments, "Number of shipments")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := loadConfig(*envFile, stderr)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	opts := def
	opts.Seed, opts.Shippers, opts.Couriers, opts.Shipments = *seed, *shippers, *couriers, *shipCount
	f := gateway.GenerateFixtures(opts)
	if err := st.Seed(ctx, f); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "seeded %d shippers, %d couriers, %d shipments into %s\n",
		len(f.Shippers), len(f.Couriers), len(f.Shipments), cfg.DBURL)
	return err
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("mcp-serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "Optional .env file (default .env)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := loadConfig(*envFile, stderr)
	if err != nil {
		return err
	}
	reg := newRegistry(cfg, logger)
	defer func() { _ = reg.Shutdown(context.WithoutCancel(ctx)) }()
	closeStore, err := localTools(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.InfoContext(ctx, "serving tools over stdio", "tools", reg.Len(), "identity_policy", cfg.IdentityPolicy.String())
	return mcpbridge.Serve(ctx, reg, mcpbridge.WithServerLogger(logger))
}
