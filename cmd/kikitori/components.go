package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/collection"
	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/embedding"
	"github.com/hyperjump/kikitori/internal/generator"
	"github.com/hyperjump/kikitori/internal/indexer"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/search"
	"github.com/hyperjump/kikitori/internal/storage"
	"github.com/hyperjump/kikitori/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config      *config.Config
	Storage     storage.Storage
	Embedder    embedding.Embedder
	VectorIndex vector.VectorIndex
	Collection  *collection.Collection
	Retriever   *search.Retriever
	Generator   generator.Generator // nil when generation is unavailable
	Assistant   *search.Assistant   // nil when Generator is nil
	Indexer     *indexer.Indexer
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug, force bool) (*Components, error) {
	c := &Components{Config: cfg}
	var debugLogger *zap.Logger
	if debug {
		debugLogger = logger
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	c.Storage = store

	emb, err := embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	c.Embedder = emb

	vi, err := vector.NewVectorIndex(cfg.Index.Type, cfg.Index.Metric, emb.Dimensions())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create vector index: %w", err)
	}
	c.VectorIndex = vi

	coll, result, err := collection.Open(ctx, cfg.Index.Collection, store, vi, emb, collection.WithLogger(debugLogger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open collection %q: %w", cfg.Index.Collection, err)
	}
	c.Collection = coll
	logger.Debug("collection ready",
		zap.String("name", cfg.Index.Collection),
		zap.String("result", result.String()),
		zap.Int("chunks", coll.Count()),
		zap.String("embedding_model", emb.ModelName()))

	c.Retriever = search.NewRetriever(coll, search.WithLogger(debugLogger))

	gen, err := generator.NewFromConfig(cfg.Generator)
	switch {
	case err == nil:
		c.Generator = gen
		c.Assistant = search.NewAssistant(c.Retriever, gen, debugLogger)
	case errors.Is(err, models.ErrGeneratorUnavailable):
		logger.Debug("answer generation disabled", zap.Error(err))
	default:
		c.Close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithForceRebuild(force),
	}
	if !cfg.Storage.CacheDisabled && cfg.Storage.CachePath != "" {
		cache := storage.NewChunkCache(cfg.Storage.CachePath, emb.ModelName(), emb.Dimensions())
		idxOpts = append(idxOpts, indexer.WithCache(cache))
	}
	idx, err := indexer.NewIndexer(coll, emb, indexer.OptionsFromConfig(cfg), idxOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create indexer: %w", err)
	}
	c.Indexer = idx
	return c, nil
}

// Close releases all resources.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}
