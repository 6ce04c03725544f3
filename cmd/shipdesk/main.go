// Command shipdesk answers shipping customer-service questions with a tool-calling model.
//
// Usage:
//
//	shipdesk seed [-shipments 100] [-random-seed 42]
//	shipdesk ask -email mclark@bryant.com "What is up with my shipment order 5?"
//	shipdesk ask -remote "shipdesk mcp-serve" -email mclark@bryant.com "Where is BOL 139712?"
//	shipdesk mcp-serve
//
// Configuration comes from .env and the environment, see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

var errUsage = errors.New("usage: shipdesk <ask|seed|mcp-serve> [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "shipdesk:", err)
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "ask":
		return runAsk(ctx, args[1:], stdin, stdout, stderr)
	case "seed":
		return runSeed(ctx, args[1:], stdout, stderr)
	case "mcp-serve":
		return runServe(ctx, args[1:], stderr)
	case "-h", "-help", "--help", "help":
		_, _ = fmt.Fprintln(stdout, errUsage.Error())
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}
