package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
)

// Validator re-checks the stored credential against the backend. Implemented
// by the auth service; declared here so the manager does not depend on the
// services package.
type Validator interface {
	Me(ctx context.Context) (*models.User, error)
}

// Manager is the single holder of authentication state. Every mutation
// funnels through it so the CLI and the services observe the same session.
// It is safe for use from the background revalidation loop alongside
// foreground calls.
type Manager struct {
	mu      sync.Mutex
	store   *Store
	token   string
	user    *models.User
	loading bool
	exempt  map[string]bool

	ticker *time.Ticker
	done   chan bool
}

// NewManager creates a manager over the given store. exemptPaths lists the
// request paths whose auth failures must not invalidate the session.
func NewManager(store *Store, exemptPaths []string) *Manager {
	exempt := make(map[string]bool, len(exemptPaths))
	for _, path := range exemptPaths {
		exempt[path] = true
	}
	return &Manager{store: store, exempt: exempt, done: make(chan bool)}
}

// Authenticated reports whether a full session is present. Both the token
// and the confirmed profile are required; a token alone is not a session.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != "" && m.user != nil
}

// Token returns the current bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// CurrentUser returns the confirmed user, or nil.
func (m *Manager) CurrentUser() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// Loading reports whether a startup revalidation is still in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Bootstrap rehydrates the session from the store and, when a token is
// present, revalidates it against the backend. A rejected token clears the
// store so a stale credential is not retried forever; a transport failure
// keeps the cached session so the client still works offline.
func (m *Manager) Bootstrap(ctx context.Context, validator Validator) {
	m.mu.Lock()
	m.token = m.store.Token()
	m.user = m.store.User()
	hasToken := m.token != ""
	m.loading = hasToken
	m.mu.Unlock()

	if !hasToken {
		return
	}

	user, err := validator.Me(ctx)

	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()

	if err != nil {
		if api.IsAuthFailure(err) {
			log.Warn().Msg("stored session rejected by backend, signing out")
			m.Invalidate()
		} else {
			log.Debug().Err(err).Msg("session revalidation unreachable, keeping cached session")
		}
		return
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}

// Establish records a session. A nil user stores the token alone, which is
// the intermediate state of a login whose identity is not yet confirmed;
// Authenticated stays false until the user is present.
func (m *Manager) Establish(token string, user *models.User) error {
	if err := m.store.SetSession(token, user); err != nil {
		return err
	}
	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()
	return nil
}

// Invalidate clears both the in-memory session and the store. It never
// fails: a storage error is logged and the in-memory state is cleared
// regardless.
func (m *Manager) Invalidate() {
	if err := m.store.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear session store")
	}
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
}

// HandleAuthFailure applies the auto-logout policy for a 401/403 seen on
// path. Exempt paths keep the session; everything else signs out.
func (m *Manager) HandleAuthFailure(path string) {
	if m.exempt[path] {
		log.Debug().Str("path", path).Msg("auth failure on exempt path, keeping session")
		return
	}
	log.Warn().Str("path", path).Msg("auth failure, invalidating session")
	m.Invalidate()
}

// Run starts the background revalidation loop. Call from a goroutine.
func (m *Manager) Run(validator Validator, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	m.ticker = time.NewTicker(interval)
	defer m.ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.revalidate(validator)
		}
	}
}

// Stop halts the background loop.
func (m *Manager) Stop() {
	m.done <- true
}

func (m *Manager) revalidate(validator Validator) {
	if !m.Authenticated() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := validator.Me(ctx)
	if err != nil {
		if api.IsAuthFailure(err) {
			log.Warn().Msg("session expired, signing out")
			m.Invalidate()
		} else {
			log.Debug().Err(err).Msg("background revalidation failed, will retry")
		}
		return
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
}
