// Package firebase implements the service capabilities with Firebase
// Authentication (Identity Toolkit REST API) and Cloud Firestore.
package firebase

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"taskmate/internal/config"
	"taskmate/internal/service"
)

// New connects to the Firebase project in cfg. Firestore calls are
// authorized with the signed-in user's ID token, so the project's security
// rules see request.auth.uid.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.Backend, error) {
	sessions, err := NewSessions(ctx, Options{
		APIKey:      cfg.Firebase.APIKey,
		SessionPath: cfg.SessionPath(),
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	client, err := firestore.NewClient(ctx, cfg.Firebase.ProjectID, option.WithTokenSource(sessions))
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &service.Backend{
		Name:     config.BackendFirebase,
		Sessions: sessions,
		Tasks:    NewStore(client, logger),
		Logger:   logger,
		Closer:   client.Close,
	}, nil
}
