package memory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskmate/internal/service"
)

func newSessions() *Sessions {
	s := NewSessions()
	s.SetCost(bcrypt.MinCost)
	return s
}

func reason(err error) service.AuthReason {
	var aerr *service.AuthError
	if !errors.As(err, &aerr) {
		return -1
	}
	return aerr.Reason
}

func TestSessions_CreateAndAuthenticate(t *testing.T) {
	s := newSessions()
	ctx := context.Background()

	created, err := s.CreateAccount(ctx, " A@Example.com ", "secret1")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if created.Email != "a@example.com" || created.UID == "" {
		t.Errorf("unexpected identity: %+v", created)
	}
	if cur, ok := s.Current(); !ok || cur != created {
		t.Errorf("expected the new account signed in, got %+v %v", cur, ok)
	}

	if err := s.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected no session after SignOut")
	}

	got, err := s.Authenticate(ctx, "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.UID != created.UID {
		t.Errorf("expected the same UID, got %s and %s", created.UID, got.UID)
	}
}

func TestSessions_Errors(t *testing.T) {
	s := newSessions()
	ctx := context.Background()
	if _, err := s.CreateAccount(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	s.Invalidate()

	tests := []struct {
		name string
		call func() error
		want service.AuthReason
	}{
		{"wrong password", func() error {
			_, err := s.Authenticate(ctx, "a@example.com", "nope")
			return err
		}, service.ReasonInvalidCredentials},
		{"unknown account", func() error {
			_, err := s.Authenticate(ctx, "b@example.com", "secret1")
			return err
		}, service.ReasonUnknownAccount},
		{"duplicate", func() error {
			_, err := s.CreateAccount(ctx, "A@EXAMPLE.COM", "secret1")
			return err
		}, service.ReasonAccountExists},
		{"weak password", func() error {
			_, err := s.CreateAccount(ctx, "c@example.com", "12345")
			return err
		}, service.ReasonWeakPassword},
		{"malformed email", func() error {
			_, err := s.CreateAccount(ctx, "example.com", "secret1")
			return err
		}, service.ReasonMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reason(tt.call()); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if _, ok := s.Current(); ok {
				t.Error("a failed call left a session")
			}
		})
	}
}

func TestSessions_OnChange(t *testing.T) {
	s := newSessions()
	ctx := context.Background()

	var seen []bool
	cancel := s.OnChange(func(_ service.Identity, ok bool) { seen = append(seen, ok) })

	if _, err := s.CreateAccount(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	s.Invalidate()
	cancel()
	if _, err := s.Authenticate(ctx, "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("expected [true false], got %v", seen)
	}
}
