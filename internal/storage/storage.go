// Package storage persists collections and their embedded chunks.
package storage

import (
	"context"

	"github.com/hyperjump/kikitori/internal/models"
)

// Storage is the durable side of a collection: chunk text, metadata and
// embeddings keyed by collection and chunk ID.
type Storage interface {
	// Collection registry
	EnsureCollection(ctx context.Context, c *models.Collection) (*models.Collection, models.EnsureResult, error)
	GetCollection(ctx context.Context, name string) (*models.Collection, error)

	// Chunk writes. Each call is one transaction.
	UpsertChunks(ctx context.Context, collection string, chunks []models.EmbeddedChunk) error
	// ReplaceSource makes chunks the complete content of source and returns
	// the IDs that were removed.
	ReplaceSource(ctx context.Context, collection, source string, chunks []models.EmbeddedChunk) ([]string, error)
	DeleteSource(ctx context.Context, collection, source string) ([]string, error)

	// Chunk reads
	GetChunks(ctx context.Context, collection string, ids []string) (map[string]models.EmbeddedChunk, error)
	ForEachChunk(ctx context.Context, collection string, fn func(models.EmbeddedChunk) error) error
	ListSources(ctx context.Context, collection string) ([]models.SourceSummary, error)
	CountChunks(ctx context.Context, collection string) (int64, error)

	Close() error
}
