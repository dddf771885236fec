// Package auth owns the bearer token lifecycle and is the single point of
// truth for whether the user is authenticated.
package auth

import (
	"context"
	"sync"

	"github.com/dataquill/quill/internal/api"
	"github.com/dataquill/quill/internal/logx"
)

// State is the session lifecycle state.
type State string

const (
	StateLoading       State = "loading"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// Result is the structured outcome of a login or registration attempt.
// Failures are returned inline, never raised; callers render Error next to
// the form.
type Result struct {
	Success bool
	Error   string
}

// Session manages authentication state. It is the only component that
// installs or clears the client's bearer token.
type Session struct {
	client *api.Client
	keys   *Keystore

	mu        sync.Mutex
	state     State
	email     string
	onExpired func()
}

// NewSession wires a session to the API client and credential store, and
// registers itself as the client's 401 observer.
func NewSession(client *api.Client, keys *Keystore) *Session {
	s := &Session{client: client, keys: keys, state: StateLoading}
	client.OnUnauthorized(s.expire)
	return s
}

// Restore rehydrates a persisted session. A stored token optimistically
// reconstructs authenticated state without server-side revalidation; the
// first 401 is the correction mechanism.
func (s *Session) Restore() {
	token, email, err := s.keys.Load()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil || token == "" {
		if err != nil {
			logx.Warn().Err(err).Msg("session restore failed")
		}
		s.state = StateAnonymous
		return
	}
	s.client.SetToken(token)
	s.email = email
	s.state = StateAuthenticated
	logx.Info().Str("email", email).Msg("session restored")
}

// Login exchanges credentials for a bearer token. On success the token is
// persisted and installed on the client; on failure nothing changes and the
// server's detail message (or a fixed fallback) comes back inline.
func (s *Session) Login(ctx context.Context, email, password string) Result {
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		logx.Info().Str("email", email).Err(err).Msg("login failed")
		return Result{Error: api.Detail(err, "Login failed")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.keys.Save(token, email); err != nil {
		logx.Error().Err(err).Msg("persist session")
	}
	s.client.SetToken(token)
	s.email = email
	s.state = StateAuthenticated
	logx.Info().Str("email", email).Msg("logged in")
	return Result{Success: true}
}

// Register creates an account. It does not log the new user in.
func (s *Session) Register(ctx context.Context, req api.RegisterRequest) Result {
	if _, err := s.client.Register(ctx, req); err != nil {
		return Result{Error: api.Detail(err, "Registration failed")}
	}
	return Result{Success: true}
}

// Logout clears the persisted credentials and returns to anonymous.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	logx.Info().Msg("logged out")
}

// OnExpired registers the hook fired when any response comes back 401. The
// TUI uses it to route back to the login view regardless of which component
// issued the originating call.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	s.onExpired = fn
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Email returns the authenticated user's email, empty when anonymous.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// expire is the 401 handler: forced logout plus redirect hook. The hook only
// fires when the session was authenticated; a rejected login attempt is a
// 401 too, and that one belongs to the form, not the redirect path.
func (s *Session) expire() {
	s.mu.Lock()
	wasAuthenticated := s.state == StateAuthenticated
	s.clearLocked()
	hook := s.onExpired
	s.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	logx.Warn().Msg("session expired")
	if hook != nil {
		hook()
	}
}

func (s *Session) clearLocked() {
	if err := s.keys.Clear(); err != nil {
		logx.Error().Err(err).Msg("clear session store")
	}
	s.client.ClearToken()
	s.email = ""
	s.state = StateAnonymous
}
