// Package auth holds the process-wide signed-in identity.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"taskmate/internal/service"
)

// Manager is the single owner of the current identity. It is built once at
// startup and injected wherever the identity is needed.
type Manager struct {
	provider service.SessionProvider
	logger   *slog.Logger

	mu       sync.Mutex
	current  service.Identity
	signedIn bool
	watchers map[int]func(service.Identity, bool)
	nextID   int

	stopProvider func()
}

// New creates a Manager seeded from the provider's current session.
func New(provider service.SessionProvider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		provider: provider,
		logger:   logger,
		watchers: make(map[int]func(service.Identity, bool)),
	}
	m.current, m.signedIn = provider.Current()
	m.stopProvider = provider.OnChange(m.transition)
	return m
}

// Login signs in with email and password. On failure the current identity
// is unchanged and the error is a *service.AuthError.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := checkCredentials(email, password); err != nil {
		return err
	}
	id, err := m.provider.Authenticate(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return asAuthError(err)
	}
	m.logger.Debug("logged in", "uid", id.UID)
	m.transition(id, true)
	return nil
}

// Register creates an account and signs it in, like Login.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	if err := checkCredentials(email, password); err != nil {
		return err
	}
	id, err := m.provider.CreateAccount(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return asAuthError(err)
	}
	m.logger.Debug("registered", "uid", id.UID)
	m.transition(id, true)
	return nil
}

// Logout clears the identity and notifies watchers even if the provider
// failed to end its session; that failure is returned.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.provider.SignOut(ctx)
	m.transition(service.Identity{}, false)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Current returns the signed-in identity.
func (m *Manager) Current() (service.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.signedIn
}

// Watch registers fn for identity transitions. fn is called synchronously,
// before the Login, Register or Logout that caused it returns.
func (m *Manager) Watch(fn func(service.Identity, bool)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Close detaches from the provider.
func (m *Manager) Close() {
	if m.stopProvider != nil {
		m.stopProvider()
	}
}

// transition records a new state and broadcasts it. Repeats of the current
// state (the provider echoing a change this manager already applied) are
// dropped.
func (m *Manager) transition(id service.Identity, ok bool) {
	m.mu.Lock()
	if ok == m.signedIn && (!ok || id.UID == m.current.UID) {
		m.mu.Unlock()
		return
	}
	if !ok {
		m.logger.Debug("identity cleared", "uid", m.current.UID)
		id = service.Identity{}
	}
	m.current, m.signedIn = id, ok
	fns := make([]func(service.Identity, bool), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(id, ok)
	}
}

func checkCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return service.NewAuthError(service.ReasonMalformedInput, "email required", nil)
	}
	if password == "" {
		return service.NewAuthError(service.ReasonMalformedInput, "password required", nil)
	}
	return nil
}

func asAuthError(err error) error {
	if service.IsAuthError(err) {
		return err
	}
	return service.NewAuthError(service.ReasonUnknown, "", err)
}
