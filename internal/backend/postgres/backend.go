// Package postgres implements the service capabilities on PostgreSQL, for
// self-hosted deployments.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskmate/internal/config"
	"taskmate/internal/service"
)

// New connects to the database in cfg, creates the schema if needed and
// restores the persisted session.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.Backend, error) {
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sessions := NewSessions(pool, cfg.SessionPath(), logger)
	store := NewPgStore(pool, logger)

	setup := func() error {
		if err := sessions.EnsureTables(ctx); err != nil {
			return fmt.Errorf("create session tables: %w", err)
		}
		if err := store.EnsureTable(ctx); err != nil {
			return fmt.Errorf("create tasks table: %w", err)
		}
		if err := sessions.Restore(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		return nil
	}
	if err := setup(); err != nil {
		pool.Close()
		return nil, err
	}

	return &service.Backend{
		Name:     config.BackendPostgres,
		Sessions: sessions,
		Tasks:    store,
		Logger:   logger,
		Closer: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// newToken returns an opaque session token (UUIDv4, crypto/rand backed).
func newToken() string {
	return uuid.NewString()
}
