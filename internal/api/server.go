package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/session"
)

// ChatModel answers prompts; *llm.Client implements it.
type ChatModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Server is the HTTP API server for docqa.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	sessions     *session.Store
	chat         ChatModel
	stats        *llm.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(orch *pipeline.Orchestrator, sessions *session.Store, chat ChatModel, stats *llm.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		sessions:     sessions,
		chat:         chat,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/sessions", s.handleCreateSession)
		r.Get("/api/sessions", s.handleListSessions)
		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionCtx)
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)

			r.Post("/documents", s.handleIngest)
			r.Post("/documents/batch", s.handleBatchIngest)
			r.Get("/files", s.handleListFiles)
			r.Get("/chunks", s.handleExportChunks)

			r.Post("/search", s.handleSearch)
			r.Get("/matches", s.handleMatches)
			r.Post("/ask", s.handleAsk)

			r.Get("/history", s.handleHistory)
			r.Get("/history.txt", s.handleHistoryText)
			r.Delete("/history", s.handleClearHistory)
		})

		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
