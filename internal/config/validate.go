package config

import "github.com/hyperjump/kikitori/internal/models"

// Validate checks values that defaults cannot repair. The returned error is a
// *models.ValidationError naming the offending key.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.NewValidationError("server.port", "must be between 0 and 65535, got %d", c.Server.Port)
	}
	switch c.Embedding.Provider {
	case "onnx", "openai", "mock":
	default:
		return models.NewValidationError("embedding.provider", "unknown provider %q (supported: onnx, openai, mock)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return models.NewValidationError("embedding.dimensions", "must be > 0, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return models.NewValidationError("embedding.batch_size", "must be > 0, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.Workers <= 0 {
		return models.NewValidationError("embedding.workers", "must be > 0, got %d", c.Embedding.Workers)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return models.NewValidationError("embedding.requests_per_second", "must be >= 0")
	}
	switch c.Index.Metric {
	case models.MetricCosine, models.MetricL2:
	default:
		return models.NewValidationError("index.metric", "unknown metric %q (supported: cosine, l2)", c.Index.Metric)
	}
	if c.Chunking.MaxWords <= 0 {
		return models.NewValidationError("max_words", "must be > 0, got %d", c.Chunking.MaxWords)
	}
	if c.Chunking.MinSegmentWords < 0 {
		return models.NewValidationError("chunking.min_segment_words", "must be >= 0, got %d", c.Chunking.MinSegmentWords)
	}
	if c.Retrieval.DefaultTopK <= 0 {
		return models.NewValidationError("top_k", "retrieval.default_top_k must be > 0, got %d", c.Retrieval.DefaultTopK)
	}
	if c.Retrieval.MaxTopK < c.Retrieval.DefaultTopK {
		return models.NewValidationError("retrieval.max_top_k", "must be >= default_top_k (%d), got %d", c.Retrieval.DefaultTopK, c.Retrieval.MaxTopK)
	}
	switch c.Generator.Provider {
	case "openai", "none":
	default:
		return models.NewValidationError("generator.provider", "unknown provider %q (supported: openai, none)", c.Generator.Provider)
	}
	if t := c.Generator.TemperatureOrDefault(); t < 0 || t > 2 {
		return models.NewValidationError("generator.temperature", "must be within [0, 2], got %g", t)
	}
	if c.Generator.MaxTokens < 0 {
		return models.NewValidationError("generator.max_tokens", "must be >= 0, got %d", c.Generator.MaxTokens)
	}
	return nil
}
