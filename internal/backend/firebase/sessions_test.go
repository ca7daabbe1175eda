package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"taskmate/internal/service"
	"taskmate/internal/sessionfile"
)

// fakeAuth serves the Identity Toolkit relying-party calls and the Secure
// Token refresh endpoint.
type fakeAuth struct {
	mu        sync.Mutex
	accounts  map[string]string // email -> password
	expiresIn string
	refreshes int
	revoked   bool
}

func (f *fakeAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/verifyPassword"):
		var req struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&req)
		pw, ok := f.accounts[req.Email]
		if !ok {
			apiError(w, "EMAIL_NOT_FOUND")
			return
		}
		if pw != req.Password {
			apiError(w, "INVALID_PASSWORD")
			return
		}
		f.signedIn(w, req.Email)
	case strings.HasSuffix(r.URL.Path, "/signupNewUser"):
		var req struct{ Email, Password string }
		json.NewDecoder(r.Body).Decode(&req)
		if _, ok := f.accounts[req.Email]; ok {
			apiError(w, "EMAIL_EXISTS")
			return
		}
		if len(req.Password) < 6 {
			apiError(w, "WEAK_PASSWORD : Password should be at least 6 characters")
			return
		}
		f.accounts[req.Email] = req.Password
		f.signedIn(w, req.Email)
	case r.URL.Path == "/token":
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if f.revoked {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"TOKEN_EXPIRED"}`))
			return
		}
		f.refreshes++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "refreshed-id-token",
			"token_type":    "Bearer",
			"refresh_token": "refresh-2",
			"expires_in":    3600,
		})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAuth) signedIn(w http.ResponseWriter, email string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"localId":      "uid-" + email,
		"email":        email,
		"idToken":      "id-token",
		"refreshToken": "refresh-1",
		"expiresIn":    f.expiresIn,
	})
}

func apiError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 400, "message": message},
	})
}

func newTestSessions(t *testing.T, f *fakeAuth, path string) *Sessions {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	s, err := NewSessions(context.Background(), Options{
		APIKey:      "test-key",
		SessionPath: path,
		HTTPClient:  srv.Client(),
		Endpoint:    srv.URL + "/identitytoolkit/v3/relyingparty/",
		TokenURL:    srv.URL + "/token",
	})
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return s
}

func authReason(err error) service.AuthReason {
	var aerr *service.AuthError
	if !errors.As(err, &aerr) {
		return -1
	}
	return aerr.Reason
}

func TestSessions_Authenticate(t *testing.T) {
	f := &fakeAuth{accounts: map[string]string{"a@example.com": "secret1"}, expiresIn: "3600"}
	path := filepath.Join(t.TempDir(), "session.json")
	s := newTestSessions(t, f, path)

	var seen []bool
	s.OnChange(func(_ service.Identity, ok bool) { seen = append(seen, ok) })

	id, err := s.Authenticate(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UID != "uid-a@example.com" || id.Email != "a@example.com" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if cur, ok := s.Current(); !ok || cur != id {
		t.Errorf("expected Current to be %+v, got %+v %v", id, cur, ok)
	}
	if len(seen) != 1 || !seen[0] {
		t.Errorf("expected one sign-in notification, got %v", seen)
	}

	var p persistedSession
	if err := sessionfile.Load(path, &p); err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if p.UID != id.UID || p.Token == nil || p.Token.RefreshToken != "refresh-1" {
		t.Errorf("unexpected persisted session: %+v", p)
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "id-token" {
		t.Errorf("expected the unexpired ID token, got %q", tok.AccessToken)
	}
}

func TestSessions_AuthenticateErrors(t *testing.T) {
	f := &fakeAuth{accounts: map[string]string{"a@example.com": "secret1"}, expiresIn: "3600"}
	s := newTestSessions(t, f, "")

	_, err := s.Authenticate(context.Background(), "a@example.com", "wrong")
	if got := authReason(err); got != service.ReasonInvalidCredentials {
		t.Errorf("wrong password: expected invalid credentials, got %v", err)
	}
	_, err = s.Authenticate(context.Background(), "b@example.com", "secret1")
	if got := authReason(err); got != service.ReasonUnknownAccount {
		t.Errorf("unknown email: expected unknown account, got %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Error("failed sign-in left a session")
	}
}

func TestSessions_CreateAccount(t *testing.T) {
	f := &fakeAuth{accounts: map[string]string{"a@example.com": "secret1"}, expiresIn: "3600"}
	s := newTestSessions(t, f, "")
	ctx := context.Background()

	id, err := s.CreateAccount(ctx, "new@example.com", "secret1")
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if id.Email != "new@example.com" {
		t.Errorf("unexpected identity %+v", id)
	}

	_, err = s.CreateAccount(ctx, "a@example.com", "secret1")
	if got := authReason(err); got != service.ReasonAccountExists {
		t.Errorf("expected account exists, got %v", err)
	}

	_, err = s.CreateAccount(ctx, "c@example.com", "123")
	var aerr *service.AuthError
	if !errors.As(err, &aerr) || aerr.Reason != service.ReasonWeakPassword {
		t.Fatalf("expected weak password, got %v", err)
	}
	if aerr.Message != "Password should be at least 6 characters" {
		t.Errorf("expected the server's detail, got %q", aerr.Message)
	}
}

func TestSessions_RefreshesExpiredToken(t *testing.T) {
	f := &fakeAuth{accounts: map[string]string{"a@example.com": "secret1"}, expiresIn: "1"}
	path := filepath.Join(t.TempDir(), "session.json")
	s := newTestSessions(t, f, path)

	if _, err := s.Authenticate(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}

	tok, err := s.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "refreshed-id-token" {
		t.Errorf("expected a refreshed token, got %q", tok.AccessToken)
	}
	f.mu.Lock()
	refreshes := f.refreshes
	f.mu.Unlock()
	if refreshes != 1 {
		t.Errorf("expected one refresh, got %d", refreshes)
	}

	var p persistedSession
	if err := sessionfile.Load(path, &p); err != nil {
		t.Fatal(err)
	}
	if p.Token.AccessToken != "refreshed-id-token" {
		t.Errorf("refreshed token not persisted: %+v", p.Token)
	}
}

func TestSessions_RevokedRefreshEndsSession(t *testing.T) {
	f := &fakeAuth{accounts: map[string]string{"a@example.com": "secret1"}, expiresIn: "1", revoked: true}
	path := filepath.Join(t.TempDir(), "session.json")
	s := newTestSessions(t, f, path)

	if _, err := s.Authenticate(context.Background(), "a@example.com", "secret1"); err != nil {
		t.Fatal(err)
	}
	var seen []bool
	s.OnChange(func(_ service.Identity, ok bool) { seen = append(seen, ok) })

	_, err := s.Token()
	if got := authReason(err); got != service.ReasonInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Error("expected the session to end")
	}
	if len(seen) != 1 || seen[0] {
		t.Errorf("expected one sign-out notification, got %v", seen)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("session file not removed")
	}
}

func TestSessions_RestoreAndSignOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	saved := persistedSession{
		UID:   "uid-1",
		Email: "a@example.com",
		Token: &oauth2.Token{AccessToken: "id", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)},
	}
	if err := sessionfile.Save(path, saved); err != nil {
		t.Fatal(err)
	}

	s := newTestSessions(t, &fakeAuth{accounts: map[string]string{}}, path)

	id, ok := s.Current()
	if !ok || id.UID != "uid-1" || id.Email != "a@example.com" {
		t.Fatalf("expected restored session, got %+v %v", id, ok)
	}

	if err := s.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Error("expected no session after SignOut")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("session file not removed")
	}
	if _, err := s.Token(); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSessions_IgnoresIncompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := sessionfile.Save(path, persistedSession{UID: "uid-1"}); err != nil {
		t.Fatal(err)
	}

	s := newTestSessions(t, &fakeAuth{accounts: map[string]string{}}, path)

	if _, ok := s.Current(); ok {
		t.Error("a session without a refresh token was restored")
	}
}
