// Package embedding turns text into fixed-length vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch must return, for
// every text, exactly what Embed returns for it alone.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelName identifies the embedding space. Vectors from different
	// model names are not comparable.
	ModelName() string
	Close() error
}

// ONNXOptions configures an ONNX embedder.
type ONNXOptions struct {
	ModelPath string
	ModelName string
	// OutputName is the graph output to read. "last_hidden_state" outputs are
	// mean-pooled over the attention mask; any other output is read as an
	// already pooled [1, Dimensions] tensor.
	OutputName string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

func (o ONNXOptions) pooled() bool {
	return o.OutputName != "" && o.OutputName != "last_hidden_state"
}
