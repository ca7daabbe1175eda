package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"taskmate/internal/service"
	"taskmate/internal/sessionfile"
)

const (
	// APITimeout is the timeout for Identity Toolkit and Firestore calls.
	APITimeout = 5 * time.Second

	// SecureTokenURL is the Firebase ID-token refresh endpoint.
	SecureTokenURL = "https://securetoken.googleapis.com/v1/token"
)

// persistedSession is the session file content.
// Token.AccessToken holds the Firebase ID token.
type persistedSession struct {
	UID   string        `json:"uid"`
	Email string        `json:"email"`
	Token *oauth2.Token `json:"token"`
}

// Options configures Sessions.
type Options struct {
	APIKey string

	// SessionPath is where the session is persisted. Empty disables persistence.
	SessionPath string

	// HTTPClient, Endpoint and TokenURL override transport and URLs (for testing).
	HTTPClient *http.Client
	Endpoint   string
	TokenURL   string

	Logger *slog.Logger
}

// Sessions implements service.SessionProvider with Firebase Authentication
// email/password accounts. It is also the oauth2.TokenSource that
// authorizes Firestore calls as the signed-in user.
type Sessions struct {
	svc        *identitytoolkit.Service
	apiKey     string
	tokenURL   string
	path       string
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	current   *persistedSession
	source    oauth2.TokenSource
	observers map[int]func(service.Identity, bool)
	nextObs   int
}

// NewSessions creates the provider and restores a persisted session, if any.
func NewSessions(ctx context.Context, opts Options) (*Sessions, error) {
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit service: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = SecureTokenURL
	}

	s := &Sessions{
		svc:        svc,
		apiKey:     opts.APIKey,
		tokenURL:   tokenURL,
		path:       opts.SessionPath,
		httpClient: opts.HTTPClient,
		logger:     logger,
		observers:  make(map[int]func(service.Identity, bool)),
	}
	s.restore()
	return s, nil
}

func (s *Sessions) restore() {
	if s.path == "" {
		return
	}
	var p persistedSession
	if err := sessionfile.Load(s.path, &p); err != nil {
		if !errors.Is(err, sessionfile.ErrNoSession) {
			s.logger.Warn("ignoring session file", "err", err)
		}
		return
	}
	if p.UID == "" || p.Token == nil || p.Token.RefreshToken == "" {
		s.logger.Warn("ignoring incomplete session file", "path", s.path)
		return
	}
	s.current = &p
	s.source = s.newTokenSource(p.Token)
	s.logger.Debug("session restored", "uid", p.UID)
}

// Authenticate implements service.SessionProvider.
func (s *Sessions) Authenticate(ctx context.Context, email, password string) (service.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := s.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return service.Identity{}, mapAuthError(err)
	}
	return s.establish(resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

// CreateAccount implements service.SessionProvider.
func (s *Sessions) CreateAccount(ctx context.Context, email, password string) (service.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := s.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return service.Identity{}, mapAuthError(err)
	}
	return s.establish(resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken, resp.ExpiresIn)
}

func (s *Sessions) establish(uid, email, idToken, refreshToken string, expiresIn int64) (service.Identity, error) {
	if uid == "" || idToken == "" {
		return service.Identity{}, service.NewAuthError(service.ReasonUnknown, "response carried no token", nil)
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	tok := &oauth2.Token{
		AccessToken:  idToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	p := &persistedSession{UID: uid, Email: email, Token: tok}
	if s.path != "" {
		if err := sessionfile.Save(s.path, p); err != nil {
			return service.Identity{}, service.NewAuthError(service.ReasonUnknown, "", err)
		}
	}

	s.mu.Lock()
	s.current = p
	s.source = s.newTokenSource(tok)
	s.mu.Unlock()

	id := service.Identity{UID: uid, Email: email}
	s.broadcast(id, true)
	return id, nil
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

// SignOut implements service.SessionProvider. Firebase sign-out is local:
// the persisted tokens are discarded.
func (s *Sessions) SignOut(ctx context.Context) error {
	return s.clear()
}

// Token implements oauth2.TokenSource, returning a fresh ID token for the
// signed-in user. A refresh rejected by the server ends the session.
func (s *Sessions) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	src, cur := s.source, s.current
	s.mu.Unlock()
	if src == nil {
		return nil, service.ErrNotAuthenticated
	}

	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusBadRequest {
			s.logger.Warn("session revoked", "uid", cur.UID, "err", err)
			if cerr := s.clear(); cerr != nil {
				s.logger.Warn("clear session", "err", cerr)
			}
			return nil, service.NewAuthError(service.ReasonInvalidCredentials, "session expired (run: taskmate login)", err)
		}
		return nil, err
	}

	s.mu.Lock()
	if s.current == cur && tok.AccessToken != cur.Token.AccessToken {
		cur.Token = tok
		if s.path != "" {
			if err := sessionfile.Save(s.path, cur); err != nil {
				s.logger.Warn("persist refreshed token", "err", err)
			}
		}
	}
	s.mu.Unlock()
	return tok, nil
}

func (s *Sessions) clear() error {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.source = nil
	s.mu.Unlock()

	var err error
	if s.path != "" {
		err = sessionfile.Remove(s.path)
	}
	if had {
		s.broadcast(service.Identity{}, false)
	}
	return err
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

// newTokenSource refreshes Firebase ID tokens through the Secure Token
// endpoint, which speaks the OAuth2 refresh_token grant.
func (s *Sessions) newTokenSource(tok *oauth2.Token) oauth2.TokenSource {
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.tokenURL + "?key=" + url.QueryEscape(s.apiKey),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx := context.Background()
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	return conf.TokenSource(ctx, tok)
}
