package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/avargasm/medchat-cli/internal/models"
)

// authPayload is the body of login and signup requests.
type authPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p authPayload) validate() []string {
	var msgs []string
	if p.Username == "" {
		msgs = append(msgs, "username: field required")
	}
	if p.Password == "" {
		msgs = append(msgs, "password: field required")
	} else if len(p.Password) < 8 {
		msgs = append(msgs, "password: too short")
	}
	return msgs
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload authPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if msgs := payload.validate(); len(msgs) > 0 {
		writeValidation(w, msgs...)
		return
	}

	user, err := s.createUser(payload.Username, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("signup rejected")
		writeError(w, http.StatusConflict, "", "Username is already taken")
		return
	}

	writeSuccess(w, http.StatusCreated, "Account created", map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"pac_ids":  []string{},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload authPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	user, err := s.authenticateUser(payload.Username, payload.Password)
	if err != nil {
		log.Warn().Str("username", payload.Username).Msg("failed authentication attempt")
		writeError(w, http.StatusUnauthorized, "", "Invalid credentials")
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "", "Failed to issue token")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]string{"access_token": token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.getUserByID(requestUserID(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "", "Unknown user")
		return
	}
	writeSuccess(w, http.StatusOK, "", user)
}

type chatPayload struct {
	Prompt            string `json:"prompt"`
	MaxStudiesPerPACS int    `json:"max_studies_per_pacs"`
	MaxTotalStudies   int    `json:"max_total_studies"`
	ReturnEvaluation  bool   `json:"return_evaluation"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if payload.Prompt == "" {
		writeValidation(w, "prompt: field required")
		return
	}

	userID := requestUserID(r)
	if err := s.appendAgentMessage(userID, models.RoleUser, payload.Prompt); err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to record message")
		return
	}

	// Deterministic stand-in for the imaging agent.
	reply := fmt.Sprintf("[dev agent] Searched %d configured PACS server(s) for: %s", s.countPACS(userID), payload.Prompt)
	if payload.ReturnEvaluation {
		reply += " (evaluation: not available in dev mode)"
	}

	if err := s.appendAgentMessage(userID, models.RoleAssistant, reply); err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to record message")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]string{"response": reply})
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	messages, err := s.agentMessagesFor(requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to load chat history")
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"messages": messages})
}

type pacsPayload struct {
	DisplayName string   `json:"display_name"`
	BaseRS      string   `json:"base_rs"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
}

func (p pacsPayload) validate() []string {
	var msgs []string
	if p.DisplayName == "" {
		msgs = append(msgs, "display_name: field required")
	}
	if p.BaseRS == "" {
		msgs = append(msgs, "base_rs: field required")
	}
	return msgs
}

func (p pacsPayload) toModel() models.PACSConfig {
	return models.PACSConfig{
		DisplayName: p.DisplayName,
		BaseRS:      p.BaseRS,
		Location:    p.Location,
		Tags:        p.Tags,
	}
}

func (s *Server) handleListPACS(w http.ResponseWriter, r *http.Request) {
	configs, err := s.listPACS(requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Failed to load PACS configurations")
		return
	}
	if configs == nil {
		configs = []models.PACSConfig{}
	}
	writeSuccess(w, http.StatusOK, "", configs)
}

func (s *Server) handleCreatePACS(w http.ResponseWriter, r *http.Request) {
	var payload pacsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if msgs := payload.validate(); len(msgs) > 0 {
		writeValidation(w, msgs...)
		return
	}

	created, err := s.createPACS(requestUserID(r), payload.toModel())
	if err != nil {
		log.Error().Err(err).Msg("failed to create PACS configuration")
		writeError(w, http.StatusInternalServerError, "", "Failed to create PACS configuration")
		return
	}
	writeSuccess(w, http.StatusCreated, "", created)
}

func (s *Server) handleGetPACS(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.getPACS(requestUserID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "", "PACS configuration not found")
		return
	}
	writeSuccess(w, http.StatusOK, "", cfg)
}

func (s *Server) handleUpdatePACS(w http.ResponseWriter, r *http.Request) {
	var payload pacsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if msgs := payload.validate(); len(msgs) > 0 {
		writeValidation(w, msgs...)
		return
	}

	updated, err := s.updatePACS(requestUserID(r), chi.URLParam(r, "id"), payload.toModel())
	if err != nil {
		writeError(w, http.StatusNotFound, "", "PACS configuration not found")
		return
	}
	writeSuccess(w, http.StatusOK, "", updated)
}

func (s *Server) handleDeletePACS(w http.ResponseWriter, r *http.Request) {
	if err := s.deletePACS(requestUserID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "", "PACS configuration not found")
		return
	}
	writeSuccess(w, http.StatusOK, "Deleted", nil)
}
