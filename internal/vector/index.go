// Package vector provides nearest-neighbour search over embedding vectors.
package vector

import "context"

// VectorIndex stores vectors by ID and answers k-nearest-neighbour queries.
// Add upserts: adding an existing ID replaces its vector.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Dimensions() int
	Metric() Metric
	Close() error
}

// VectorResult is a single search hit. Smaller Distance is closer.
type VectorResult struct {
	ID       string
	Distance float64
}
