package auth_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskmate/internal/auth"
	"taskmate/internal/backend/memory"
	"taskmate/internal/service"
)

type transition struct {
	uid string
	ok  bool
}

func newProvider(t *testing.T) *memory.Sessions {
	t.Helper()
	p := memory.NewSessions()
	p.SetCost(bcrypt.MinCost)
	if _, err := p.CreateAccount(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	p.Invalidate()
	return p
}

func record(m *auth.Manager) *[]transition {
	var seen []transition
	m.Watch(func(id service.Identity, ok bool) {
		seen = append(seen, transition{id.UID, ok})
	})
	return &seen
}

func TestManager_Login(t *testing.T) {
	m := auth.New(newProvider(t), nil)
	defer m.Close()
	seen := record(m)

	if err := m.Login(context.Background(), " a@example.com ", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	id, ok := m.Current()
	if !ok || id.Email != "a@example.com" {
		t.Fatalf("expected a@example.com signed in, got %+v %v", id, ok)
	}
	// Watchers have run by the time Login returns, and the provider's own
	// notification of the same change is not delivered twice.
	if len(*seen) != 1 || (*seen)[0] != (transition{id.UID, true}) {
		t.Errorf("expected one sign-in transition, got %+v", *seen)
	}
}

func TestManager_LoginFailureKeepsIdentity(t *testing.T) {
	p := newProvider(t)
	if _, err := p.CreateAccount(context.Background(), "b@example.com", "secret2"); err != nil {
		t.Fatal(err)
	}
	m := auth.New(p, nil)
	defer m.Close()
	before, _ := m.Current()
	seen := record(m)

	err := m.Login(context.Background(), "a@example.com", "wrong")

	var aerr *service.AuthError
	if !errors.As(err, &aerr) || aerr.Reason != service.ReasonInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	after, ok := m.Current()
	if !ok || after != before {
		t.Errorf("identity changed on failed login: before %+v, after %+v", before, after)
	}
	if len(*seen) != 0 {
		t.Errorf("expected no transitions, got %+v", *seen)
	}
}

func TestManager_UnknownAccount(t *testing.T) {
	m := auth.New(newProvider(t), nil)
	defer m.Close()

	err := m.Login(context.Background(), "nobody@example.com", "secret1")

	var aerr *service.AuthError
	if !errors.As(err, &aerr) || aerr.Reason != service.ReasonUnknownAccount {
		t.Errorf("expected unknown account, got %v", err)
	}
	if _, ok := m.Current(); ok {
		t.Error("expected no identity")
	}
}

func TestManager_MalformedInput(t *testing.T) {
	tests := []struct {
		name            string
		email, password string
	}{
		{"empty email", "", "secret1"},
		{"blank email", "   ", "secret1"},
		{"empty password", "a@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := auth.New(newProvider(t), nil)
			defer m.Close()

			for _, fn := range []func(context.Context, string, string) error{m.Login, m.Register} {
				err := fn(context.Background(), tt.email, tt.password)
				var aerr *service.AuthError
				if !errors.As(err, &aerr) || aerr.Reason != service.ReasonMalformedInput {
					t.Errorf("expected malformed input, got %v", err)
				}
			}
		})
	}
}

func TestManager_Register(t *testing.T) {
	m := auth.New(newProvider(t), nil)
	defer m.Close()
	seen := record(m)

	if err := m.Register(context.Background(), "new@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	id, ok := m.Current()
	if !ok || id.Email != "new@example.com" {
		t.Errorf("expected new@example.com signed in, got %+v %v", id, ok)
	}
	if len(*seen) != 1 {
		t.Errorf("expected one transition, got %+v", *seen)
	}

	err := m.Register(context.Background(), "a@example.com", "secret1")
	var aerr *service.AuthError
	if !errors.As(err, &aerr) || aerr.Reason != service.ReasonAccountExists {
		t.Errorf("expected account exists, got %v", err)
	}
	if cur, _ := m.Current(); cur != id {
		t.Errorf("failed register changed identity to %+v", cur)
	}
}

func TestManager_Logout(t *testing.T) {
	m := auth.New(newProvider(t), nil)
	defer m.Close()
	if err := m.Login(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	seen := record(m)

	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := m.Current(); ok {
		t.Error("expected no identity after logout")
	}
	if len(*seen) != 1 || (*seen)[0].ok {
		t.Errorf("expected one sign-out transition, got %+v", *seen)
	}
}

func TestManager_ProviderEndsSession(t *testing.T) {
	p := newProvider(t)
	m := auth.New(p, nil)
	defer m.Close()
	if err := m.Login(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	seen := record(m)

	p.Invalidate()

	if _, ok := m.Current(); ok {
		t.Error("expected no identity after the provider ended the session")
	}
	if len(*seen) != 1 || (*seen)[0].ok {
		t.Errorf("expected one sign-out transition, got %+v", *seen)
	}
}

func TestManager_SeededFromProvider(t *testing.T) {
	p := newProvider(t)
	id, err := p.Authenticate(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	m := auth.New(p, nil)
	defer m.Close()

	if cur, ok := m.Current(); !ok || cur != id {
		t.Errorf("expected restored identity %+v, got %+v %v", id, cur, ok)
	}
}

// failingSignOut is a provider whose session cannot be ended remotely.
type failingSignOut struct {
	*memory.Sessions
}

func (f failingSignOut) SignOut(ctx context.Context) error {
	return errors.New("network unreachable")
}

func TestManager_LogoutFailureStillClears(t *testing.T) {
	p := newProvider(t)
	m := auth.New(failingSignOut{p}, nil)
	defer m.Close()
	if err := m.Login(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	seen := record(m)

	err := m.Logout(context.Background())
	if err == nil {
		t.Fatal("expected the sign-out failure")
	}
	if _, ok := m.Current(); ok {
		t.Error("expected identity cleared despite the failure")
	}
	if len(*seen) != 1 {
		t.Errorf("expected one transition, got %+v", *seen)
	}
}

func TestManager_WatchCancel(t *testing.T) {
	m := auth.New(newProvider(t), nil)
	defer m.Close()

	calls := 0
	cancel := m.Watch(func(service.Identity, bool) { calls++ })
	cancel()

	if err := m.Login(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("cancelled watcher called %d times", calls)
	}
}
