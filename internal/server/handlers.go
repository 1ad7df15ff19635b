package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/search"
	"github.com/hyperjump/kikitori/internal/storage"
)

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (*models.Query, bool) {
	var q models.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	err := search.ProcessQuery(&q, search.QueryDefaults{
		DefaultTopK: s.config.Retrieval.DefaultTopK,
		MaxTopK:     s.config.Retrieval.MaxTopK,
	})
	if err != nil {
		s.respondErr(w, err)
		return nil, false
	}
	return &q, true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	s.logger.Debug("query request", zap.String("query", q.Text), zap.Int("top_k", q.TopK))
	result, err := s.deps.Retriever.Query(r.Context(), q.Text, q.TopK)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Asker == nil {
		s.respondErr(w, models.ErrGeneratorUnavailable)
		return
	}
	q, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	s.logger.Debug("ask request", zap.String("question", q.Text), zap.Int("top_k", q.TopK))
	answer, err := s.deps.Asker.Ask(r.Context(), q.Text, q.TopK)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

type ingestRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = s.config.Transcripts.Directory
	}
	s.logger.Debug("ingest request", zap.String("path", path))
	report, err := s.deps.Ingester.IngestPath(r.Context(), path)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("path", path), zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.deps.Catalog.Sources(r.Context())
	if err != nil {
		s.logger.Error("list sources failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sources": sources})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	s.logger.Debug("delete source request", zap.String("source", source))
	n, err := s.deps.Ingester.RemoveSource(r.Context(), source)
	if err != nil {
		s.logger.Error("delete source failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	if n == 0 {
		s.respondError(w, http.StatusNotFound, "source not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"source": source, "removed": n, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sources, err := s.deps.Catalog.Sources(r.Context())
	if err != nil {
		s.logger.Error("status: list sources failed", zap.Error(err))
		s.respondErr(w, err)
		return
	}
	resp := map[string]interface{}{
		"version":    s.version,
		"collection": s.deps.Catalog.Info(),
		"chunks":     s.deps.Catalog.Count(),
		"sources":    len(sources),
		"generator":  s.deps.Asker != nil,
		"config": map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"max_words":            s.config.Chunking.MaxWords,
			"min_segment_words":    s.config.Chunking.MinSegmentWords,
			"default_top_k":        s.config.Retrieval.DefaultTopK,
			"generator_model":      s.config.Generator.Model,
			"database_path":        s.config.Storage.DatabasePath,
			"transcripts":          s.config.Transcripts.Directory,
		},
	}
	paths := storage.DatabaseFiles(s.config.Storage.DatabasePath)
	if !s.config.Storage.CacheDisabled {
		paths = append(paths, s.config.Storage.CachePath)
	}
	if _, total, err := storage.DiskUsage(paths...); err == nil {
		resp["disk_usage_bytes"] = total
	}
	if s.deps.Watch != nil {
		resp["watch"] = s.deps.Watch.Stats()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps an error kind to its HTTP status.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "param": ve.Param})
	case models.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrCollectionMismatch):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrGeneratorUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case models.IsDependency(err):
		// A dependency failure may wrap ErrNotFound from the index.
		s.respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
