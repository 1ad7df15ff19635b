package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kikitori/pkg/utils"
)

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string // empty means the OpenAI API
	Model      string
	Dimensions int
	// RequestsPerSecond throttles API calls; zero disables throttling.
	RequestsPerSecond float64
	CacheSize         int
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Results are
// L2-normalized so cosine and squared L2 rankings agree.
type OpenAIEmbedder struct {
	client  *openai.Client
	opts    OpenAIOptions
	limiter *rate.Limiter
	cache   *EmbeddingCache
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	if opts.Model == "" {
		opts.Model = string(openai.SmallEmbedding3)
	}
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	cc := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cc.BaseURL = opts.BaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(cc),
		opts:    opts,
		limiter: limiter,
		cache:   NewEmbeddingCache(opts.CacheSize),
	}, nil
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts with one request for every text not already cached.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))
	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	input := make([]string, len(missing))
	for j, i := range missing {
		input[j] = texts[i]
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: input,
		Model: openai.EmbeddingModel(e.opts.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(input))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(input) {
			return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		if len(d.Embedding) != e.opts.Dimensions {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(d.Embedding), e.opts.Dimensions)
		}
		vec := cloneVector(d.Embedding)
		utils.NormalizeL2(vec)
		i := missing[d.Index]
		out[i] = vec
		e.cache.Set(texts[i], vec)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding API returned no vector for input %d", i)
		}
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.opts.Dimensions
}

// ModelName returns the remote model name.
func (e *OpenAIEmbedder) ModelName() string {
	return e.opts.Model
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
