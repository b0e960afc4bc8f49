// Package devserver implements the MedChat backend REST contract in-process:
// envelope responses, 422 validation shape, JWT bearer auth, an echo agent.
// It backs the service tests and `medchat serve-dev`; it is not a production
// backend.
package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/avargasm/medchat-cli/internal/api"
)

var errPACSNotFound = errors.New("pacs configuration not found")

// Server holds the dev backend state.
type Server struct {
	db     *sql.DB
	tokens *TokenIssuer
}

// New creates a Server over an opened database and applies the schema.
func New(db *sql.DB, jwtSecret string) (*Server, error) {
	s := &Server{db: db, tokens: NewTokenIssuer(jwtSecret)}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewInMemory creates a Server over an in-memory database, for tests.
func NewInMemory(jwtSecret string) (*Server, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	return New(db, jwtSecret)
}

// Router creates and configures a Chi router for the full contract.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// CORS configuration so the SPA frontend can talk to serve-dev
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/signup", s.handleSignup)
		r.With(s.requireAuth).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/agent/chats", s.handleChats)
		r.Post("/agent/chat", s.handleChat)

		r.Route("/pacs", func(r chi.Router) {
			r.Get("/", s.handleListPACS)
			r.Post("/", s.handleCreatePACS)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPACS)
				r.Patch("/", s.handleUpdatePACS)
				r.Delete("/", s.handleDeletePACS)
			})
		})
	})

	return r
}

// userIDKey is the context key for the authenticated user id.
type contextKey string

const userIDKey = contextKey("userID")

// requireAuth validates the bearer token and passes the user id down via
// context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "", "Missing auth token")
			return
		}

		claims, err := s.tokens.Validate(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "", "Invalid auth token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUserID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	raw, _ := json.Marshal(data)
	writeEnvelope(w, status, api.Envelope{Status: api.StatusSuccess, Message: message, Data: raw})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	env := api.Envelope{Status: api.StatusError, Message: message}
	if code != "" {
		env.Error = &api.EnvelopeError{Code: code}
	}
	writeEnvelope(w, status, env)
}

func writeEnvelope(w http.ResponseWriter, status int, env api.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// writeValidation emits the HTTP 422 shape, which intentionally does not use
// the envelope.
func writeValidation(w http.ResponseWriter, msgs ...string) {
	type item struct {
		Msg string `json:"msg"`
	}
	detail := make([]item, 0, len(msgs))
	for _, m := range msgs {
		detail = append(detail, item{Msg: m})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(map[string]any{"detail": detail})
}
