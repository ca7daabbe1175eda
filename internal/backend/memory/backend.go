package memory

import (
	"log/slog"

	"taskmate/internal/service"
)

// New returns a backend whose accounts and tasks live only as long as the
// process.
func New(logger *slog.Logger) *service.Backend {
	return &service.Backend{
		Name:     "memory",
		Sessions: NewSessions(),
		Tasks:    NewStore(),
		Logger:   logger,
	}
}
