package services

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/devserver"
	"github.com/avargasm/medchat-cli/internal/session"
)

// testEnv wires the real services against a devserver over HTTP, the same
// way main does against a real backend.
type testEnv struct {
	client  *api.Client
	store   *session.Store
	manager *session.Manager
	auth    *AuthService
	chat    *ChatService
	pacs    *PACSService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend, err := devserver.NewInMemory("test-secret")
	require.NoError(t, err)

	srv := httptest.NewServer(backend.Router())
	t.Cleanup(srv.Close)

	store, err := session.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	manager := session.NewManager(store, []string{"/agent/chat"})
	client := api.New(srv.URL, 5*time.Second)

	return &testEnv{
		client:  client,
		store:   store,
		manager: manager,
		auth:    NewAuthService(client, manager),
		chat:    NewChatService(client, manager, store),
		pacs:    NewPACSService(client, manager, store),
	}
}
