package config

import "github.com/hyperjump/kikitori/internal/models"

// Defaults for values a zero value cannot express.
const (
	DefaultTemperature = 0.2
	DefaultCollection  = "transcripts_collection"
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/db/index.db"
	}
	if cfg.Storage.CachePath == "" {
		cfg.Storage.CachePath = "./data/embeddings_all.kkc"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.ModelPath == "" && cfg.Embedding.Provider == "onnx" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "last_hidden_state"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 1
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Collection == "" {
		cfg.Index.Collection = DefaultCollection
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = models.MetricCosine
	}
	if cfg.Chunking.MaxWords == 0 {
		cfg.Chunking.MaxWords = 200
	}
	if cfg.Chunking.MinSegmentWords == 0 {
		cfg.Chunking.MinSegmentWords = 3
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 3
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 100
	}
	if cfg.Retrieval.SnippetChars == 0 {
		cfg.Retrieval.SnippetChars = 200
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "openai"
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = DefaultGroqBaseURL
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "llama-3.1-8b-instant"
	}
	if cfg.Generator.APIKeyEnv == "" {
		cfg.Generator.APIKeyEnv = "GROQ_API_TOKEN"
	}
	if cfg.Generator.Temperature == nil {
		t := DefaultTemperature
		cfg.Generator.Temperature = &t
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 200
	}
	if cfg.Generator.TimeoutSecs == 0 {
		cfg.Generator.TimeoutSecs = 60
	}
	if cfg.Generator.SystemPrompt == "" {
		cfg.Generator.SystemPrompt = "You are a helpful assistant."
	}
	if cfg.Transcripts.Directory == "" {
		cfg.Transcripts.Directory = "./transcripts"
	}
	if cfg.Transcripts.Extensions == nil {
		cfg.Transcripts.Extensions = []string{".txt", ".vtt"}
	}
}
