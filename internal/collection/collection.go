// Package collection binds durable chunk storage, an in-memory vector index
// and an embedder into one queryable collection.
package collection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/embedding"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/storage"
	"github.com/hyperjump/kikitori/internal/vector"
	"github.com/hyperjump/kikitori/pkg/utils"
)

// Collection is a named set of embedded chunks. Writes go to storage first
// and then to the vector index under the write lock, so a query never sees
// a partially applied write.
type Collection struct {
	info     *models.Collection
	storage  storage.Storage
	vectors  vector.VectorIndex
	embedder embedding.Embedder
	logger   *zap.Logger

	mu sync.RWMutex
}

// QueryResult holds parallel sequences for the nearest records of a query,
// nearest first.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []models.Metadata
	Distances []float64
}

// Len returns the number of records in the result.
func (r *QueryResult) Len() int {
	return len(r.IDs)
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// EnsureExists registers the collection in storage unless it is already
// there. An existing collection must agree with want on metric, dimensions
// and embedding model.
func EnsureExists(ctx context.Context, store storage.Storage, want *models.Collection) (*models.Collection, models.EnsureResult, error) {
	if want.Name == "" {
		return nil, models.EnsureAlreadyExisted, models.NewValidationError("collection", "name is required")
	}
	if want.CreatedAt.IsZero() {
		want.CreatedAt = time.Now().UTC()
	}
	got, result, err := store.EnsureCollection(ctx, want)
	if err != nil {
		return nil, result, models.NewDependencyError("index", err)
	}
	if result == models.EnsureAlreadyExisted {
		if err := checkCompatible(got, want); err != nil {
			return nil, result, err
		}
	}
	return got, result, nil
}

func checkCompatible(got, want *models.Collection) error {
	switch {
	case got.Metric != want.Metric:
		return fmt.Errorf("%w: %q uses metric %s, configured %s", models.ErrCollectionMismatch, got.Name, got.Metric, want.Metric)
	case got.Dimensions != want.Dimensions:
		return fmt.Errorf("%w: %q has %d dimensions, embedder produces %d", models.ErrCollectionMismatch, got.Name, got.Dimensions, want.Dimensions)
	case got.EmbeddingModel != want.EmbeddingModel:
		return fmt.Errorf("%w: %q was built with %s, embedder is %s", models.ErrCollectionMismatch, got.Name, got.EmbeddingModel, want.EmbeddingModel)
	}
	return nil
}

// Open ensures the named collection exists and loads its stored embeddings
// into vectors. The vector index must be empty and match the embedder's
// dimensions.
func Open(ctx context.Context, name string, store storage.Storage, vectors vector.VectorIndex, embedder embedding.Embedder, opts ...Option) (*Collection, models.EnsureResult, error) {
	c := &Collection{
		storage:  store,
		vectors:  vectors,
		embedder: embedder,
	}
	for _, opt := range opts {
		opt(c)
	}
	if vectors.Dimensions() != embedder.Dimensions() {
		return nil, models.EnsureAlreadyExisted, fmt.Errorf("%w: vector index has %d dimensions, embedder produces %d",
			models.ErrCollectionMismatch, vectors.Dimensions(), embedder.Dimensions())
	}

	info, result, err := EnsureExists(ctx, store, &models.Collection{
		Name:           name,
		Metric:         string(vectors.Metric()),
		Dimensions:     embedder.Dimensions(),
		EmbeddingModel: embedder.ModelName(),
	})
	if err != nil {
		return nil, result, err
	}
	c.info = info

	if err := c.hydrate(ctx); err != nil {
		return nil, result, err
	}
	if c.logger != nil {
		c.logger.Debug("collection opened",
			zap.String("name", name),
			zap.String("result", result.String()),
			zap.Int("vectors", vectors.Size()))
	}
	return c, result, nil
}

const hydrateBatch = 512

func (c *Collection) hydrate(ctx context.Context) error {
	ids := make([]string, 0, hydrateBatch)
	vecs := make([][]float32, 0, hydrateBatch)
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := c.vectors.Add(ctx, ids, vecs); err != nil {
			return models.NewDependencyError("vector index", err)
		}
		ids = ids[:0]
		vecs = vecs[:0]
		return nil
	}
	err := c.storage.ForEachChunk(ctx, c.info.Name, func(ec models.EmbeddedChunk) error {
		ids = append(ids, ec.ID)
		vecs = append(vecs, ec.Embedding)
		if len(ids) == hydrateBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		if models.IsDependency(err) {
			return err
		}
		return models.NewDependencyError("index", fmt.Errorf("load embeddings: %w", err))
	}
	return flush()
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.info.Name
}

// Info returns a copy of the collection descriptor.
func (c *Collection) Info() models.Collection {
	return *c.info
}

// Add upserts records into the collection.
func (c *Collection) Add(ctx context.Context, records []models.EmbeddedChunk) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.checkRecords(records); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.storage.UpsertChunks(ctx, c.info.Name, records); err != nil {
		return models.NewDependencyError("index", err)
	}
	return c.addVectors(ctx, records)
}

// ReplaceSource makes records the complete content of source. Chunks of
// source that are not in records are removed.
func (c *Collection) ReplaceSource(ctx context.Context, source string, records []models.EmbeddedChunk) error {
	if source == "" {
		return models.NewValidationError("source", "must not be empty")
	}
	for _, r := range records {
		if r.Chunk.Source != source {
			return models.NewValidationError("source", "record %s belongs to %q, not %q", r.ID, r.Chunk.Source, source)
		}
	}
	if err := c.checkRecords(records); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed, err := c.storage.ReplaceSource(ctx, c.info.Name, source, records)
	if err != nil {
		return models.NewDependencyError("index", err)
	}
	if err := c.vectors.Remove(ctx, removed); err != nil {
		return models.NewDependencyError("vector index", err)
	}
	if err := c.addVectors(ctx, records); err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Debug("source replaced",
			zap.String("source", source),
			zap.Int("chunks", len(records)),
			zap.Int("removed", len(removed)))
	}
	return nil
}

// DeleteSource removes every chunk of source and returns how many were removed.
func (c *Collection) DeleteSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, models.NewValidationError("source", "must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed, err := c.storage.DeleteSource(ctx, c.info.Name, source)
	if err != nil {
		return 0, models.NewDependencyError("index", err)
	}
	if err := c.vectors.Remove(ctx, removed); err != nil {
		return 0, models.NewDependencyError("vector index", err)
	}
	return len(removed), nil
}

func (c *Collection) checkRecords(records []models.EmbeddedChunk) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return models.NewValidationError("id", "record id must not be empty")
		}
		if _, dup := seen[r.ID]; dup {
			return models.NewValidationError("id", "duplicate record id %s", r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Embedding) != c.info.Dimensions {
			return models.NewValidationError("embedding", "record %s has %d dimensions, collection has %d", r.ID, len(r.Embedding), c.info.Dimensions)
		}
		if i := utils.FirstNonFinite(r.Embedding); i >= 0 {
			return models.NewDependencyError("embedder",
				fmt.Errorf("record %s has non-finite component %d: %v", r.ID, i, r.Embedding[i]))
		}
	}
	return nil
}

func (c *Collection) addVectors(ctx context.Context, records []models.EmbeddedChunk) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vecs[i] = r.Embedding
	}
	if err := c.vectors.Add(ctx, ids, vecs); err != nil {
		return models.NewDependencyError("vector index", err)
	}
	return nil
}

// Query embeds text and returns up to k nearest records. An empty
// collection returns an empty result without calling the embedder.
func (c *Collection) Query(ctx context.Context, text string, k int) (*QueryResult, error) {
	if k <= 0 {
		return nil, models.NewValidationError("top_k", "must be positive, got %d", k)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := &QueryResult{}
	if c.vectors.Size() == 0 {
		return result, nil
	}

	queryVec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, models.NewDependencyError("embedder", err)
	}
	if len(queryVec) != c.info.Dimensions {
		return nil, models.NewDependencyError("embedder",
			fmt.Errorf("query embedding has %d dimensions, collection has %d", len(queryVec), c.info.Dimensions))
	}
	if i := utils.FirstNonFinite(queryVec); i >= 0 {
		return nil, models.NewDependencyError("embedder",
			fmt.Errorf("query embedding has non-finite component %d: %v", i, queryVec[i]))
	}

	neighbours, err := c.vectors.Search(ctx, queryVec, k)
	if err != nil {
		return nil, models.NewDependencyError("vector index", err)
	}
	if len(neighbours) == 0 {
		return result, nil
	}

	ids := make([]string, len(neighbours))
	for i, n := range neighbours {
		ids[i] = n.ID
	}
	chunks, err := c.storage.GetChunks(ctx, c.info.Name, ids)
	if err != nil {
		return nil, models.NewDependencyError("index", err)
	}

	for _, n := range neighbours {
		ec, ok := chunks[n.ID]
		if !ok {
			return nil, models.NewDependencyError("index", fmt.Errorf("chunk %s: %w", n.ID, models.ErrNotFound))
		}
		result.IDs = append(result.IDs, n.ID)
		result.Documents = append(result.Documents, ec.Chunk.Text)
		result.Metadatas = append(result.Metadatas, ec.Chunk.Metadata())
		result.Distances = append(result.Distances, n.Distance)
	}
	return result, nil
}

// Count returns the number of records that queries can reach.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vectors.Size()
}

// Sources lists the indexed sources with their chunk counts.
func (c *Collection) Sources(ctx context.Context) ([]models.SourceSummary, error) {
	sources, err := c.storage.ListSources(ctx, c.info.Name)
	if err != nil {
		return nil, models.NewDependencyError("index", err)
	}
	return sources, nil
}

// EmbeddingModel returns the embedder model name the collection was built with.
func (c *Collection) EmbeddingModel() string {
	return c.info.EmbeddingModel
}

// Embedder returns the embedder used for queries.
func (c *Collection) Embedder() embedding.Embedder {
	return c.embedder
}
