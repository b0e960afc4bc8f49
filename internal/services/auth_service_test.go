package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/session"
)

func TestSignupEstablishesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Signup(ctx, "ada", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.NotEmpty(t, user.ID)

	assert.True(t, env.manager.Authenticated())
	assert.NotEmpty(t, env.store.Token())
	require.NotNil(t, env.store.User())
	assert.Equal(t, "ada", env.store.User().Username)
}

func TestSignupValidationMessagesAreJoined(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Signup(context.Background(), "", "short")
	require.Error(t, err)
	assert.Equal(t, "username: field required, password: too short",
		api.Message(err, "Signup failed"))
	assert.False(t, env.manager.Authenticated())
}

func TestLoginWithWrongPasswordFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, "ada", "correct horse battery")
	require.NoError(t, err)
	env.auth.Logout()

	_, err = env.auth.Login(ctx, "ada", "wrong password")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", api.Message(err, "Login failed"))
	assert.False(t, env.manager.Authenticated())
	assert.Empty(t, env.store.Token())
}

// A login whose profile fetch fails must leave no partial session behind:
// neither a stored token nor a cached user.
func TestLoginRollsBackWhenProfileFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"status":"success","data":{"access_token":"issued-token"}}`))
		case "/auth/me":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"status":"error","message":"profile backend down"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error"}`))
		}
	}))
	defer srv.Close()

	store, err := session.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	manager := session.NewManager(store, nil)
	auth := NewAuthService(api.New(srv.URL, 2*time.Second), manager)

	_, err = auth.Login(context.Background(), "ada", "irrelevant")
	require.Error(t, err)

	assert.Empty(t, store.Token(), "issued token must be rolled back")
	assert.Nil(t, store.User())
	assert.False(t, manager.Authenticated())
}

func TestLoginToleratesLegacyTokenField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			w.Write([]byte(`{"status":"success","data":{"token":"legacy-token"}}`))
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer legacy-token" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"status":"error","message":"bad token"}`))
				return
			}
			w.Write([]byte(`{"status":"success","data":{"id":"u1","username":"ada"}}`))
		}
	}))
	defer srv.Close()

	store, err := session.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	manager := session.NewManager(store, nil)
	auth := NewAuthService(api.New(srv.URL, 2*time.Second), manager)

	user, err := auth.Login(context.Background(), "ada", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "legacy-token", store.Token())
	assert.True(t, manager.Authenticated())
}

func TestMeWithStaleTokenClearsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.manager.Establish("not-a-real-token", env.store.User()))

	_, err := env.auth.Me(ctx)
	require.Error(t, err)
	assert.True(t, api.IsAuthFailure(err))
	assert.Empty(t, env.store.Token())
	assert.False(t, env.manager.Authenticated())
}

func TestLogoutClearsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, "ada", "correct horse battery")
	require.NoError(t, err)

	env.auth.Logout()

	assert.False(t, env.manager.Authenticated())
	assert.Empty(t, env.store.Token())
	assert.Nil(t, env.store.User())
	assert.Empty(t, env.manager.Token())
	assert.Nil(t, env.manager.CurrentUser())
}

func TestBootstrapAgainstRealBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, "ada", "correct horse battery")
	require.NoError(t, err)
	token := env.store.Token()

	// A fresh manager over the same store simulates a restart.
	manager := session.NewManager(env.store, nil)
	auth := NewAuthService(env.client, manager)
	manager.Bootstrap(ctx, auth)

	assert.True(t, manager.Authenticated())
	assert.Equal(t, token, manager.Token())
	require.NotNil(t, manager.CurrentUser())
	assert.Equal(t, "ada", manager.CurrentUser().Username)
}
