package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/config"
)

// NewFromConfig creates the embedder selected by cfg.Provider. An "onnx"
// provider that cannot load falls back to the mock embedder with a warning.
func NewFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "openai":
		e, err := NewOpenAIEmbedder(OpenAIOptions{
			APIKey:            cfg.APIKey(),
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
			CacheSize:         cfg.CacheSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder (key from $%s): %w", cfg.APIKeyEnv, err)
		}
		return e, nil
	case "onnx", "":
		e, err := NewONNXEmbedder(ONNXOptions{
			ModelPath:  cfg.ModelPath,
			ModelName:  cfg.Model,
			OutputName: cfg.OutputName,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
			CacheSize:  cfg.CacheSize,
		})
		if err != nil {
			logger.Warn("onnx embedder unavailable, using mock embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err))
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, mock)", cfg.Provider)
	}
}
