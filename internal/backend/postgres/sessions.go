package postgres

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"taskmate/internal/service"
	"taskmate/internal/sessionfile"
)

const (
	minPasswordLength = 6

	// sessionTTL bounds how long a persisted session stays valid.
	sessionTTL = 30 * 24 * time.Hour

	uniqueViolation = "23505"
)

// persistedSession is the session file content. Token is checked against
// the sessions table on restore.
type persistedSession struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions implements service.SessionProvider with an accounts table of
// bcrypt password hashes and a sessions table of opaque tokens.
type Sessions struct {
	pool   *pgxpool.Pool
	path   string
	logger *slog.Logger
	cost   int

	mu        sync.Mutex
	current   *persistedSession
	observers map[int]func(service.Identity, bool)
	nextObs   int
}

// NewSessions creates the provider. Call Restore to pick up a persisted
// session.
func NewSessions(pool *pgxpool.Pool, sessionPath string, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sessions{
		pool:      pool,
		path:      sessionPath,
		logger:    logger,
		cost:      bcrypt.DefaultCost,
		observers: make(map[int]func(service.Identity, bool)),
	}
}

// SetCost sets the bcrypt cost.
func (s *Sessions) SetCost(cost int) { s.cost = cost }

// EnsureTables creates the accounts and sessions tables if they don't exist.
func (s *Sessions) EnsureTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	return err
}

// Restore loads the persisted session and keeps it if the token is still
// known to the database. A stale session file is removed.
func (s *Sessions) Restore(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	var p persistedSession
	if err := sessionfile.Load(s.path, &p); err != nil {
		if errors.Is(err, sessionfile.ErrNoSession) {
			return nil
		}
		s.logger.Warn("ignoring session file", "err", err)
		return nil
	}

	var email string
	err := s.pool.QueryRow(ctx, `
		SELECT a.email FROM sessions s JOIN accounts a ON a.id = s.account_id
		WHERE s.token = $1 AND s.account_id = $2 AND s.expires_at > NOW()`, p.Token, p.UID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("session no longer valid", "uid", p.UID)
		return sessionfile.Remove(s.path)
	}
	if err != nil {
		return err
	}
	p.Email = email

	s.mu.Lock()
	s.current = &p
	s.mu.Unlock()
	s.logger.Debug("session restored", "uid", p.UID)
	return nil
}

// Authenticate implements service.SessionProvider.
func (s *Sessions) Authenticate(ctx context.Context, email, password string) (service.Identity, error) {
	key := normalizeEmail(email)

	var uid, hash string
	err := s.pool.QueryRow(ctx, `SELECT id, password_hash FROM accounts WHERE email = $1`, key).Scan(&uid, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.Identity{}, service.NewAuthError(service.ReasonUnknownAccount, "no account for "+key, nil)
	}
	if err != nil {
		return service.Identity{}, mapAuthError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return service.Identity{}, service.NewAuthError(service.ReasonInvalidCredentials, "wrong password", err)
	}
	return s.establish(ctx, uid, key)
}

// CreateAccount implements service.SessionProvider.
func (s *Sessions) CreateAccount(ctx context.Context, email, password string) (service.Identity, error) {
	key := normalizeEmail(email)
	if !strings.Contains(key, "@") {
		return service.Identity{}, service.NewAuthError(service.ReasonMalformedInput, "invalid email address", nil)
	}
	if len(password) < minPasswordLength {
		return service.Identity{}, service.NewAuthError(service.ReasonWeakPassword, "password should be at least 6 characters", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return service.Identity{}, service.NewAuthError(service.ReasonUnknown, "", err)
	}
	uid := newID()

	// The account and its first session commit together, so a failed
	// session leaves no account behind to block a retry.
	var p *persistedSession
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, email, password_hash) VALUES ($1, $2, $3)`, uid, key, string(hash)); err != nil {
			return err
		}
		p, err = s.issue(ctx, tx, uid, key)
		return err
	})
	if err != nil {
		return service.Identity{}, mapAuthError(err)
	}
	return s.publish(p), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// establish issues a session for an existing account and makes it current.
func (s *Sessions) establish(ctx context.Context, uid, email string) (service.Identity, error) {
	p, err := s.issue(ctx, s.pool, uid, email)
	if err != nil {
		return service.Identity{}, mapAuthError(err)
	}
	return s.publish(p), nil
}

// issue inserts a session row through db and writes the session file.
func (s *Sessions) issue(ctx context.Context, db execer, uid, email string) (*persistedSession, error) {
	p := &persistedSession{
		UID:       uid,
		Email:     email,
		Token:     newToken(),
		ExpiresAt: time.Now().Add(sessionTTL).Truncate(time.Microsecond),
	}
	if _, err := db.Exec(ctx, `INSERT INTO sessions (token, account_id, expires_at) VALUES ($1, $2, $3)`, p.Token, uid, p.ExpiresAt); err != nil {
		return nil, err
	}
	if s.path != "" {
		if err := sessionfile.Save(s.path, p); err != nil {
			return nil, service.NewAuthError(service.ReasonUnknown, "", err)
		}
	}
	return p, nil
}

func (s *Sessions) publish(p *persistedSession) service.Identity {
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	id := service.Identity{UID: p.UID, Email: p.Email}
	s.broadcast(id, true)
	return id
}

// Current implements service.SessionProvider.
func (s *Sessions) Current() (service.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return service.Identity{}, false
	}
	return service.Identity{UID: s.current.UID, Email: s.current.Email}, true
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

// SignOut implements service.SessionProvider. The token row is deleted so
// copies of the session file stop working too.
func (s *Sessions) SignOut(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	s.current = nil
	s.mu.Unlock()
	if cur == nil {
		return nil
	}

	var errs []error
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, cur.Token); err != nil {
		errs = append(errs, err)
	}
	if s.path != "" {
		if err := sessionfile.Remove(s.path); err != nil {
			errs = append(errs, err)
		}
	}
	s.broadcast(service.Identity{}, false)
	return errors.Join(errs...)
}

func (s *Sessions) broadcast(id service.Identity, ok bool) {
	s.mu.Lock()
	fns := make([]func(service.Identity, bool), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(id, ok)
	}
}

// mapAuthError converts a database failure during sign-in into a
// *service.AuthError.
func mapAuthError(err error) error {
	var aerr *service.AuthError
	if errors.As(err, &aerr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return service.NewAuthError(service.ReasonAccountExists, "an account with this email already exists", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return service.NewAuthError(service.ReasonNetwork, "", err)
	}
	return service.NewAuthError(service.ReasonUnknown, "", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
