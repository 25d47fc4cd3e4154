// Package server provides the HTTP API for Sensei.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/agent"
	"github.com/mindpalace/sensei/internal/auth"
	"github.com/mindpalace/sensei/internal/config"
	"github.com/mindpalace/sensei/internal/graph"
	"github.com/mindpalace/sensei/internal/ingest"
	"github.com/mindpalace/sensei/internal/search"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

// Server is the HTTP server for the Sensei API.
type Server struct {
	orchestrator *agent.Orchestrator
	pipeline     *ingest.Pipeline
	engine       *search.Engine
	storage      storage.Storage
	vectors      vectorstore.Store
	edges        graph.EdgeStore
	validator    *auth.Validator
	validate     *validator.Validate
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orchestrator *agent.Orchestrator,
	pipeline *ingest.Pipeline,
	engine *search.Engine,
	store storage.Storage,
	vectors vectorstore.Store,
	edges graph.EdgeStore,
	authValidator *auth.Validator,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		pipeline:     pipeline,
		engine:       engine,
		storage:      store,
		vectors:      vectors,
		edges:        edges,
		validator:    authValidator,
		validate:     validator.New(),
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		// Chat streams; its deadline comes from the model call timeouts,
		// not the router.
		r.Post("/chat", s.handleChat)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Get("/status", s.handleStatus)
			r.Get("/profile", s.handleGetProfile)
			r.Put("/profile", s.handlePutProfile)
			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/upload", s.handleUpload)
				r.Get("/graph", s.handleGetGraph)
				r.Post("/graph", s.handleCreateEdge)
				r.Post("/notes", s.handleCreateNote)
				r.Post("/urls", s.handleCreateURL)
				r.Post("/search", s.handleSearch)
				r.Delete("/documents/{id}", s.handleDeleteDocument)
			})
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// authenticate validates the Authorization header and stores the user ID in
// the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.validator.Validate(r.Header.Get("Authorization"))
		if err != nil {
			s.logger.Debug("authentication failed", zap.Error(err))
			s.respondError(w, unauthorized(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), claims.Subject)))
	})
}
