package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
	"github.com/avargasm/medchat-cli/internal/session"
)

// AuthServiceProvider defines the interface for authentication flows.
type AuthServiceProvider interface {
	Login(ctx context.Context, username, password string) (*models.User, error)
	Signup(ctx context.Context, username, password string) (*models.User, error)
	Logout()
	Me(ctx context.Context) (*models.User, error)
}

// AuthService drives login/signup/logout against the backend and keeps the
// session manager in sync. None of its operations retry.
type AuthService struct {
	client  *api.Client
	session *session.Manager
}

// NewAuthService creates a new AuthService.
func NewAuthService(client *api.Client, sess *session.Manager) *AuthService {
	return &AuthService{client: client, session: sess}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token and confirms the identity
// behind it. The two steps form one logical operation: the token is stored
// first so the profile call authenticates like any other request, and when
// that call fails the token is rolled back. The client never ends up
// holding a token without a confirmed user.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	env, err := s.client.Post(ctx, "/auth/login", credentials{Username: username, Password: password}, "")
	if err != nil {
		return nil, opError(err, "Login failed")
	}

	token, ok := api.ExtractToken(env.Data)
	if !ok {
		return nil, &api.Error{Kind: api.KindMalformed, Msg: "login response carried no token"}
	}

	if err := s.session.Establish(token, nil); err != nil {
		return nil, err
	}

	user, err := s.Me(ctx)
	if err != nil {
		s.session.Invalidate()
		return nil, opError(err, "Login failed")
	}

	if err := s.session.Establish(token, user); err != nil {
		s.session.Invalidate()
		return nil, err
	}

	log.Info().Str("username", user.Username).Msg("logged in")
	return user, nil
}

// Signup registers the account and then signs in with the same credentials;
// the signup endpoint itself returns no usable session.
func (s *AuthService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	_, err := s.client.Post(ctx, "/auth/signup", credentials{Username: username, Password: password}, "")
	if err != nil {
		return nil, opError(err, "Signup failed")
	}
	return s.Login(ctx, username, password)
}

// Logout discards the session unconditionally. It never fails.
func (s *AuthService) Logout() {
	s.session.Invalidate()
	log.Info().Msg("logged out")
}

// Me fetches the profile for the stored token. A 401/403 clears the stored
// session: the credential is stale and retrying it cannot succeed.
func (s *AuthService) Me(ctx context.Context) (*models.User, error) {
	env, err := s.client.Get(ctx, "/auth/me", s.session.Token())
	if err != nil {
		if api.IsAuthFailure(err) {
			s.session.Invalidate()
		}
		return nil, opError(err, "Session check failed")
	}

	var user models.User
	if err := env.DecodeData(&user); err != nil {
		return nil, &api.Error{Kind: api.KindMalformed, Msg: "profile response was unreadable"}
	}
	return &user, nil
}
