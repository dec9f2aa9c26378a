// Package stubapi is a self-contained backend implementing the auth and
// transcription endpoints with the envelope contract the client expects.
// It backs the devstub command and the end-to-end tests.
package stubapi

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/transcriba/transcriba/internal/util"
	"github.com/transcriba/transcriba/internal/uuid"
	"github.com/transcriba/transcriba/transcriptions"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Server holds the in-memory state behind the stub endpoints.
type Server struct {
	mu            sync.RWMutex
	users         map[string]*user   // keyed by user ID
	usersByEmail  map[string]string  // email -> user ID
	refreshTokens map[string]string  // refresh token -> user ID
	resetTokens   map[string]string  // reset token -> user ID
	jobs          map[string]*transcriptions.Job

	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
}

type user struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Salt      []byte
	Key       []byte
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithJWTSecret sets the HS256 signing secret for access tokens.
func WithJWTSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithTokenTTL sets the access-token lifetime. Short TTLs are useful in
// tests that exercise the refresh path.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		users:         make(map[string]*user),
		usersByEmail:  make(map[string]string),
		refreshTokens: make(map[string]string),
		resetTokens:   make(map[string]string),
		jobs:          make(map[string]*transcriptions.Job),
		tokenTTL:      15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	s.logger = s.logger.With("component", "stubapi")
	if len(s.secret) == 0 {
		secret, err := util.RandomBytes(32)
		if err != nil {
			panic("stubapi: cannot read random source: " + err.Error())
		}
		s.secret = secret
	}
	return s
}

// Seed registers a user without going through the register endpoint.
// Returns the new user's ID.
func (s *Server) Seed(email, password, firstName, lastName string) (string, error) {
	salt, err := util.RandomBytes(16)
	if err != nil {
		return "", err
	}
	key, err := util.DeriveArgon2idKey(password, salt, util.DefaultArgon2idParams())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.users[id] = &user{
		ID: id, Email: email, FirstName: firstName, LastName: lastName,
		Salt: salt, Key: key,
	}
	s.usersByEmail[email] = id
	return id, nil
}

// SeedJob adds a transcription job directly to the store.
func (s *Server) SeedJob(job transcriptions.Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.jobs[job.ID] = &job
	return job.ID
}

// Router returns a chi.Router with all stub routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/refresh-token", s.handleRefreshToken)
		r.Post("/auth/forgot-password", s.handleForgotPassword)
		r.Post("/auth/reset-password", s.handleResetPassword)
		r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)

		r.With(s.authMiddleware).Get("/user/profile", s.handleProfile)

		r.Route("/transcription", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/{userID}/jobs", s.handleListJobs)
			r.Get("/jobs/{jobID}", s.handleGetJob)
			r.Post("/jobs", s.handleCreateJob)
		})
	})

	return r
}

// envelope is the uniform response body.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// issue mirrors the shape of a field-validation failure.
type issue struct {
	Path       []any  `json:"path"`
	Validation string `json:"validation,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func writeIssues(w http.ResponseWriter, issues []issue) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Success: false,
		Message: "Validation failed",
		Error:   map[string]any{"issues": issues},
	})
}
