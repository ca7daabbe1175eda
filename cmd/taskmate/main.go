// Package main is the entry point for the taskmate CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"taskmate/internal/backend/firebase"
	"taskmate/internal/backend/memory"
	"taskmate/internal/backend/postgres"
	"taskmate/internal/cli"
	"taskmate/internal/commands"
	"taskmate/internal/config"
	"taskmate/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newBackend)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newBackend selects the backend named in cfg.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.Backend, error) {
	switch cfg.Backend {
	case config.BackendFirebase:
		return firebase.New(ctx, cfg, logger)
	case config.BackendPostgres:
		return postgres.New(ctx, cfg, logger)
	case config.BackendMemory:
		return memory.New(logger), nil
	}
	return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
}
