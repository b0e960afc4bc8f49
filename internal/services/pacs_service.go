package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
	"github.com/avargasm/medchat-cli/internal/session"
)

// PACSServiceProvider defines the interface for PACS configuration
// management.
type PACSServiceProvider interface {
	List(ctx context.Context) ([]models.PACSConfig, error)
	Get(ctx context.Context, id string) (models.PACSConfig, error)
	Create(ctx context.Context, cfg models.PACSConfig) (models.PACSConfig, error)
	Update(ctx context.Context, id string, cfg models.PACSConfig) (models.PACSConfig, error)
	Delete(ctx context.Context, id string) error
	Cached() ([]models.PACSConfig, error)
}

// PACSService manages PACS connection records on the backend and keeps a
// local snapshot of the last listing for offline reads.
type PACSService struct {
	client  *api.Client
	session *session.Manager
	store   *session.Store
}

// NewPACSService creates a new PACSService.
func NewPACSService(client *api.Client, sess *session.Manager, store *session.Store) *PACSService {
	return &PACSService{client: client, session: sess, store: store}
}

type pacsPayload struct {
	DisplayName string   `json:"display_name"`
	BaseRS      string   `json:"base_rs"`
	Location    string   `json:"location,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// List fetches all configurations and refreshes the local snapshot.
func (s *PACSService) List(ctx context.Context) ([]models.PACSConfig, error) {
	env, err := s.client.Get(ctx, "/pacs", s.session.Token())
	if err != nil {
		return nil, s.fail("/pacs", err, "Could not load PACS configurations")
	}

	configs, err := api.DecodePACSList(env.Data)
	if err != nil {
		return nil, &api.Error{Kind: api.KindMalformed, Msg: "PACS listing was unreadable"}
	}

	if err := s.store.ReplacePACSCache(configs); err != nil {
		log.Error().Err(err).Msg("failed to refresh PACS snapshot")
	}
	return configs, nil
}

// Get fetches one configuration by ID.
func (s *PACSService) Get(ctx context.Context, id string) (models.PACSConfig, error) {
	env, err := s.client.Get(ctx, "/pacs/"+id, s.session.Token())
	if err != nil {
		return models.PACSConfig{}, s.fail("/pacs/"+id, err, "Could not load the PACS configuration")
	}
	cfg, err := api.DecodePACSConfig(env.Data)
	if err != nil {
		return models.PACSConfig{}, &api.Error{Kind: api.KindMalformed, Msg: "PACS record was unreadable"}
	}
	return cfg, nil
}

// Create registers a new configuration. The server assigns the ID and the
// creation timestamp.
func (s *PACSService) Create(ctx context.Context, cfg models.PACSConfig) (models.PACSConfig, error) {
	body := pacsPayload{DisplayName: cfg.DisplayName, BaseRS: cfg.BaseRS, Location: cfg.Location, Tags: cfg.Tags}
	env, err := s.client.Post(ctx, "/pacs", body, s.session.Token())
	if err != nil {
		return models.PACSConfig{}, s.fail("/pacs", err, "Could not create the PACS configuration")
	}
	created, err := api.DecodePACSConfig(env.Data)
	if err != nil {
		return models.PACSConfig{}, &api.Error{Kind: api.KindMalformed, Msg: "PACS record was unreadable"}
	}
	return created, nil
}

// Update modifies an existing configuration.
func (s *PACSService) Update(ctx context.Context, id string, cfg models.PACSConfig) (models.PACSConfig, error) {
	body := pacsPayload{DisplayName: cfg.DisplayName, BaseRS: cfg.BaseRS, Location: cfg.Location, Tags: cfg.Tags}
	env, err := s.client.Patch(ctx, "/pacs/"+id, body, s.session.Token())
	if err != nil {
		return models.PACSConfig{}, s.fail("/pacs/"+id, err, "Could not update the PACS configuration")
	}
	updated, err := api.DecodePACSConfig(env.Data)
	if err != nil {
		return models.PACSConfig{}, &api.Error{Kind: api.KindMalformed, Msg: "PACS record was unreadable"}
	}
	return updated, nil
}

// Delete removes a configuration.
func (s *PACSService) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Delete(ctx, "/pacs/"+id, s.session.Token()); err != nil {
		return s.fail("/pacs/"+id, err, "Could not delete the PACS configuration")
	}
	return nil
}

// Cached returns the last fetched listing from the local store.
func (s *PACSService) Cached() ([]models.PACSConfig, error) {
	return s.store.CachedPACS()
}

func (s *PACSService) fail(path string, err error, fallback string) error {
	if api.IsAuthFailure(err) {
		s.session.HandleAuthFailure(path)
	}
	return opError(err, fallback)
}
