package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskmate/internal/service"
)

// MinPasswordLength matches the Firebase Authentication password policy.
const MinPasswordLength = 6

type account struct {
	uid  string
	hash []byte
}

// Sessions is an in-memory service.SessionProvider with bcrypt-hashed passwords.
type Sessions struct {
	mu        sync.Mutex
	accounts  map[string]account // lower-cased email -> account
	current   *service.Identity
	observers map[int]func(service.Identity, bool)
	nextObs   int
	cost      int
}

// NewSessions creates a provider with no accounts.
func NewSessions() *Sessions {
	return &Sessions{
		accounts:  make(map[string]account),
		observers: make(map[int]func(service.Identity, bool)),
		cost:      bcrypt.DefaultCost,
	}
}

// SetCost sets the bcrypt cost (tests use bcrypt.MinCost).
func (s *Sessions) SetCost(cost int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cost = cost
}

// Authenticate implements service.SessionProvider.
func (s *Sessions) Authenticate(ctx context.Context, email, password string) (service.Identity, error) {
	key := normalizeEmail(email)

	s.mu.Lock()
	acct, ok := s.accounts[key]
	s.mu.Unlock()
	if !ok {
		return service.Identity{}, service.NewAuthError(service.ReasonUnknownAccount, "no account for "+strings.TrimSpace(email), nil)
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return service.Identity{}, service.NewAuthError(service.ReasonInvalidCredentials, "wrong password", err)
	}

	id := service.Identity{UID: acct.uid, Email: key}
	s.setCurrent(&id)
	return id, nil
}

// CreateAccount implements service.SessionProvider.
func (s *Sessions) CreateAccount(ctx context.Context, email, password string) (service.Identity, error) {
	key := normalizeEmail(email)
	if !strings.Contains(key, "@") {
		return service.Identity{}, service.NewAuthError(service.ReasonMalformedInput, "invalid email address", nil)
	}
	if len(password) < MinPasswordLength {
		return service.Identity{}, service.NewAuthError(service.ReasonWeakPassword, "password should be at least 6 characters", nil)
	}

	s.mu.Lock()
	if _, exists := s.accounts[key]; exists {
		s.mu.Unlock()
		return service.Identity{}, service.NewAuthError(service.ReasonAccountExists, key, nil)
	}
	cost := s.cost
	s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return service.Identity{}, service.NewAuthError(service.ReasonUnknown, "", err)
	}

	s.mu.Lock()
	if _, exists := s.accounts[key]; exists {
		s.mu.Unlock()
		return service.Identity{}, service.NewAuthError(service.ReasonAccountExists, key, nil)
	}
	acct := account{uid: uuid.NewString(), hash: hash}
	s.accounts[key] = acct
	s.mu.Unlock()

	id := service.Identity{UID: acct.uid, Email: key}
	s.setCurrent(&id)
	return id, nil
}

// Current implements service.SessionProvider.
func (s *Sessions) Current() (service.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return service.Identity{}, false
	}
	return *s.current, true
}

// OnChange implements service.SessionProvider.
func (s *Sessions) OnChange(fn func(service.Identity, bool)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// SignOut implements service.SessionProvider.
func (s *Sessions) SignOut(ctx context.Context) error {
	s.setCurrent(nil)
	return nil
}

// Invalidate ends the current session from the provider side, as a
// revoked token would.
func (s *Sessions) Invalidate() {
	s.setCurrent(nil)
}

func (s *Sessions) setCurrent(id *service.Identity) {
	s.mu.Lock()
	s.current = id
	fns := make([]func(service.Identity, bool), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	var ident service.Identity
	if id != nil {
		ident = *id
	}
	for _, fn := range fns {
		fn(ident, id != nil)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
