// Package app provides the aegis server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/aegis/cmd/aegis/app/options"
	"github.com/kart-io/aegis/pkg/app"
)

const (
	// Name is the name of the application.
	Name = "aegis"

	// commandDesc is the description of the command.
	commandDesc = `Aegis security alert triage service

Aegis routes incoming security alerts to category experts, produces
LLM-backed analysis with a rule-based fallback, and answers questions
over an operator-maintained knowledge base.

This server provides:
  - Lexical alert routing (web attack, vulnerability attack, illegal connection)
  - Expert analysis with risk scoring and degraded rule-based fallback
  - Document indexing with vector embeddings
  - RAG-based question answering with source citations`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal forces immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
