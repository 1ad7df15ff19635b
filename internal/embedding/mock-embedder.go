package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kikitori/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder for tests and for
// running without a model. Every token is hashed into one of the dimensions
// (feature hashing), so texts sharing words end up close to each other.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the L2-normalized hashed term-frequency vector of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, tok := range Terms(text) {
		h := HashString(tok)
		sign := float32(1)
		if h&0x80000000 != 0 {
			sign = -1
		}
		emb[int(h%uint32(e.dimensions))] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName identifies the hashing embedder and its dimension.
func (e *MockEmbedder) ModelName() string {
	return fmt.Sprintf("mock-hash-%d", e.dimensions)
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
