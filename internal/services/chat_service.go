package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
	"github.com/avargasm/medchat-cli/internal/session"
)

const chatPath = "/agent/chat"

// ChatServiceProvider defines the interface for agent chat operations.
type ChatServiceProvider interface {
	Send(ctx context.Context, conversationID, prompt string, opts ChatOptions) (models.ChatMessage, error)
	RemoteTranscript(ctx context.Context) ([]models.ChatMessage, error)
	LocalTranscript(conversationID string) ([]models.ChatMessage, error)
	StartConversation(title string) (models.Conversation, error)
	Conversation(id string) (models.Conversation, error)
	Conversations() ([]models.Conversation, error)
}

// ChatOptions bound how much PACS searching the agent may do for one prompt.
// Zero values are omitted from the request and left to backend defaults.
type ChatOptions struct {
	MaxStudiesPerPACS int
	MaxTotalStudies   int
	ReturnEvaluation  bool
}

// ChatService forwards prompts to the remote agent and mirrors transcripts
// into the local store.
type ChatService struct {
	client  *api.Client
	session *session.Manager
	store   *session.Store
}

// NewChatService creates a new ChatService.
func NewChatService(client *api.Client, sess *session.Manager, store *session.Store) *ChatService {
	return &ChatService{client: client, session: sess, store: store}
}

type chatRequest struct {
	Prompt            string `json:"prompt"`
	MaxStudiesPerPACS int    `json:"max_studies_per_pacs,omitempty"`
	MaxTotalStudies   int    `json:"max_total_studies,omitempty"`
	ReturnEvaluation  bool   `json:"return_evaluation,omitempty"`
}

// Send forwards the prompt to the agent and returns the assistant reply.
// Both sides of the exchange are appended to the local transcript when a
// conversation is given. An auth failure is routed through the manager's
// central auto-logout policy rather than decided here.
func (s *ChatService) Send(ctx context.Context, conversationID, prompt string, opts ChatOptions) (models.ChatMessage, error) {
	userMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   prompt,
		Timestamp: time.Now().UTC(),
	}

	req := chatRequest{
		Prompt:            prompt,
		MaxStudiesPerPACS: opts.MaxStudiesPerPACS,
		MaxTotalStudies:   opts.MaxTotalStudies,
		ReturnEvaluation:  opts.ReturnEvaluation,
	}
	env, err := s.client.Post(ctx, chatPath, req, s.session.Token())
	if err != nil {
		if api.IsAuthFailure(err) {
			s.session.HandleAuthFailure(chatPath)
		}
		return models.ChatMessage{}, opError(err, "The agent could not answer")
	}

	reply, ok := api.ExtractChatReply(env.Data)
	if !ok {
		return models.ChatMessage{}, &api.Error{Kind: api.KindMalformed, Msg: "agent response carried no reply"}
	}

	assistantMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}

	if conversationID != "" {
		if err := s.store.AppendMessage(conversationID, userMsg); err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to persist user message")
		}
		if err := s.store.AppendMessage(conversationID, assistantMsg); err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to persist assistant message")
		}
	}

	return assistantMsg, nil
}

// RemoteTranscript fetches the transcript held by the backend.
func (s *ChatService) RemoteTranscript(ctx context.Context) ([]models.ChatMessage, error) {
	env, err := s.client.Get(ctx, "/agent/chats", s.session.Token())
	if err != nil {
		if api.IsAuthFailure(err) {
			s.session.HandleAuthFailure("/agent/chats")
		}
		return nil, opError(err, "Could not load chat history")
	}

	var payload struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := env.DecodeData(&payload); err != nil {
		return nil, &api.Error{Kind: api.KindMalformed, Msg: "chat history response was unreadable"}
	}
	return payload.Messages, nil
}

// LocalTranscript reads a conversation from the local store only.
func (s *ChatService) LocalTranscript(conversationID string) ([]models.ChatMessage, error) {
	return s.store.Transcript(conversationID)
}

// StartConversation creates a new local conversation.
func (s *ChatService) StartConversation(title string) (models.Conversation, error) {
	return s.store.CreateConversation(title)
}

// Conversation looks up one local conversation by id.
func (s *ChatService) Conversation(id string) (models.Conversation, error) {
	return s.store.Conversation(id)
}

// Conversations lists the local conversations, newest first.
func (s *ChatService) Conversations() ([]models.Conversation, error) {
	return s.store.Conversations()
}
