package service

import (
	"context"
	"log/slog"
)

// SessionProvider issues and validates user credentials.
// Backends implement it; commands and screens never import an SDK directly.
type SessionProvider interface {
	// Authenticate signs in an existing account.
	// Failures are returned as *AuthError.
	Authenticate(ctx context.Context, email, password string) (Identity, error)

	// CreateAccount registers a new account and signs it in.
	// Failures are returned as *AuthError.
	CreateAccount(ctx context.Context, email, password string) (Identity, error)

	// Current returns the signed-in identity, if any.
	Current() (Identity, bool)

	// OnChange registers fn to be called on every identity transition,
	// including ones the provider initiates (revoked session).
	OnChange(fn func(id Identity, ok bool)) (cancel func())

	// SignOut ends the current session.
	SignOut(ctx context.Context) error
}

// SnapshotFunc receives the full current collection on every change.
type SnapshotFunc func(tasks []Task)

// Subscription is a live feed of one owner's collection.
type Subscription interface {
	// Unsubscribe stops the feed. It is safe to call more than once.
	Unsubscribe()

	// Done is closed once the feed has stopped, for any reason.
	Done() <-chan struct{}

	// Err returns a *SubscriptionError if the feed dropped on its own,
	// nil if it is still running or was unsubscribed.
	Err() error
}

// TaskStore holds per-owner task collections.
type TaskStore interface {
	// Subscribe starts a feed that pushes the owner's full collection,
	// ordered by creation time, now and after every change.
	Subscribe(ctx context.Context, ownerID string, fn SnapshotFunc) (Subscription, error)

	// Create adds a task and returns its store-assigned ID.
	Create(ctx context.Context, ownerID string, fields TaskFields) (string, error)

	// Update applies a partial update to a task.
	Update(ctx context.Context, ownerID, taskID string, patch TaskPatch) error

	// Delete removes a task. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, ownerID, taskID string) error
}

// Backend bundles the two capabilities a session of taskmate runs against.
type Backend struct {
	Name     string
	Sessions SessionProvider
	Tasks    TaskStore
	Logger   *slog.Logger

	// Closer releases backend resources (clients, pools). May be nil.
	Closer func() error
}

// Close releases backend resources.
func (b *Backend) Close() error {
	if b == nil || b.Closer == nil {
		return nil
	}
	return b.Closer()
}

// Log returns the backend logger, or a discarding logger if none is set.
func (b *Backend) Log() *slog.Logger {
	if b == nil || b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}
