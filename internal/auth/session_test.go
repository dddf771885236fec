package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dataquill/quill/internal/api"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		if r.FormValue("username") == "a@b.com" && r.FormValue("password") == "hunter2" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"})
	})
	mux.HandleFunc("POST /register", func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Email == "taken@b.com" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Email already registered"})
			return
		}
		_ = json.NewEncoder(w).Encode(api.User{ID: 1, Email: req.Email})
	})
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]api.Project{})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginSuccessPersistsAndInstallsToken(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	keys := NewKeystoreAt(t.TempDir())
	s := NewSession(client, keys)
	s.Restore()
	require.Equal(t, StateAnonymous, s.State())

	res := s.Login(context.Background(), "a@b.com", "hunter2")
	require.True(t, res.Success)
	require.Empty(t, res.Error)

	require.Equal(t, StateAuthenticated, s.State())
	require.Equal(t, "a@b.com", s.Email())
	require.Equal(t, "tok-123", client.Token())

	token, email, err := keys.Load()
	require.NoError(t, err)
	require.Equal(t, "tok-123", token)
	require.Equal(t, "a@b.com", email)
}

func TestLoginFailureLeavesNothingBehind(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	keys := NewKeystoreAt(t.TempDir())
	s := NewSession(client, keys)
	s.Restore()

	res := s.Login(context.Background(), "a@b.com", "wrong")
	require.False(t, res.Success)
	require.Equal(t, "Incorrect email or password", res.Error)

	require.Equal(t, StateAnonymous, s.State())
	require.Empty(t, client.Token(), "auth header must remain unset")

	token, email, err := keys.Load()
	require.NoError(t, err)
	require.Empty(t, token)
	require.Empty(t, email)
}

func TestRegisterResults(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	s := NewSession(client, NewKeystoreAt(t.TempDir()))

	res := s.Register(context.Background(), api.RegisterRequest{Email: "new@b.com", Password: "pw"})
	require.True(t, res.Success)

	res = s.Register(context.Background(), api.RegisterRequest{Email: "taken@b.com", Password: "pw"})
	require.False(t, res.Success)
	require.Equal(t, "Email already registered", res.Error)
}

func TestRestoreRehydratesWithoutRevalidation(t *testing.T) {
	t.Parallel()

	// no server at all: restore must not attempt a network call
	client := api.New("http://127.0.0.1:0", time.Second)
	keys := NewKeystoreAt(t.TempDir())
	require.NoError(t, keys.Save("tok-old", "a@b.com"))

	s := NewSession(client, keys)
	s.Restore()
	require.Equal(t, StateAuthenticated, s.State())
	require.Equal(t, "a@b.com", s.Email())
	require.Equal(t, "tok-old", client.Token())
}

func TestLogoutClearsEverything(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	keys := NewKeystoreAt(t.TempDir())
	s := NewSession(client, keys)
	s.Restore()
	require.True(t, s.Login(context.Background(), "a@b.com", "hunter2").Success)

	s.Logout()
	require.Equal(t, StateAnonymous, s.State())
	require.Empty(t, s.Email())
	require.Empty(t, client.Token())
	token, _, err := keys.Load()
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestFailedLoginDoesNotFireExpiry(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	s := NewSession(client, NewKeystoreAt(t.TempDir()))
	s.Restore()

	var fired atomic.Int64
	s.OnExpired(func() { fired.Add(1) })

	res := s.Login(context.Background(), "a@b.com", "wrong")
	require.False(t, res.Success)
	require.Equal(t, "Incorrect email or password", res.Error)
	require.Zero(t, fired.Load(), "a rejected login belongs to the form, not the redirect path")
}

func TestUnauthorizedAnywhereExpiresSession(t *testing.T) {
	t.Parallel()

	srv := newAuthServer(t)
	client := api.New(srv.URL, 2*time.Second)
	keys := NewKeystoreAt(t.TempDir())
	s := NewSession(client, keys)
	s.Restore()
	require.True(t, s.Login(context.Background(), "a@b.com", "hunter2").Success)

	var expired atomic.Int64
	s.OnExpired(func() { expired.Add(1) })

	// client-side token corruption stands in for server-side expiry
	client.SetToken("tok-stale")
	_, err := client.Projects(context.Background())
	require.ErrorIs(t, err, api.ErrUnauthorized)

	require.Equal(t, int64(1), expired.Load(), "redirect hook must fire")
	require.Equal(t, StateAnonymous, s.State())
	require.Empty(t, s.Email())
	require.Empty(t, client.Token())
	token, email, loadErr := keys.Load()
	require.NoError(t, loadErr)
	require.Empty(t, token)
	require.Empty(t, email)
}
