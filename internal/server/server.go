// Package server provides the HTTP API for kikitori.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/indexer"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/watcher"
)

// Retriever answers nearest-chunk queries.
type Retriever interface {
	Query(ctx context.Context, queryText string, topK int) (*models.RetrievalResult, error)
}

// Asker answers questions with a generated response.
type Asker interface {
	Ask(ctx context.Context, question string, topK int) (*models.Answer, error)
}

// Ingester writes transcripts into the collection.
type Ingester interface {
	IngestPath(ctx context.Context, path string) (*indexer.Report, error)
	RemoveSource(ctx context.Context, source string) (int, error)
}

// Catalog describes the indexed collection.
type Catalog interface {
	Info() models.Collection
	Count() int
	Sources(ctx context.Context) ([]models.SourceSummary, error)
}

// WatchStatus reports on the transcript directory watcher.
type WatchStatus interface {
	Stats() watcher.Stats
}

// Deps are the collaborators behind the API. Asker and Watch may be nil.
type Deps struct {
	Retriever Retriever
	Asker     Asker
	Ingester  Ingester
	Catalog   Catalog
	Watch     WatchStatus
}

// Server is the HTTP server for the kikitori API.
type Server struct {
	deps    Deps
	config  *config.Config
	version string
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		deps:    deps,
		config:  cfg,
		version: version,
		logger:  logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.config.Generator.TimeoutSecs+30) * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/ask", s.handleAsk)
		r.Post("/ingest", s.handleIngest)
		r.Get("/sources", s.handleSources)
		r.Delete("/sources/{source}", s.handleDeleteSource)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops. A graceful Stop
// is not an error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
