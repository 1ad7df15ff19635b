// Package config provides configuration loading and structs for kikitori.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Index       IndexConfig       `yaml:"index"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Transcripts TranscriptsConfig `yaml:"transcripts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index database and the embedded-chunk cache.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	CachePath     string `yaml:"cache_path"`
	CacheDisabled bool   `yaml:"cache_disabled"`
}

// EmbeddingConfig selects and tunes the embedder.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // onnx, openai, mock
	Model             string  `yaml:"model"`
	ModelPath         string  `yaml:"model_path"`
	OutputName        string  `yaml:"output_name"`
	Dimensions        int     `yaml:"dimensions"`
	MaxTokens         int     `yaml:"max_tokens"`
	CacheSize         int     `yaml:"cache_size"`
	BatchSize         int     `yaml:"batch_size"`
	Workers           int     `yaml:"workers"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (e EmbeddingConfig) APIKey() string {
	return lookupEnv(e.APIKeyEnv)
}

// IndexConfig holds vector collection settings.
type IndexConfig struct {
	Type       string `yaml:"type"`
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"`
}

// ChunkingConfig holds segment normalization and chunking settings.
type ChunkingConfig struct {
	MaxWords        int `yaml:"max_words"`
	MinSegmentWords int `yaml:"min_segment_words"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	DefaultTopK  int `yaml:"default_top_k"`
	MaxTopK      int `yaml:"max_top_k"`
	SnippetChars int `yaml:"snippet_chars"`
}

// GeneratorConfig holds answer generation settings for an OpenAI-compatible
// chat endpoint.
type GeneratorConfig struct {
	Provider          string   `yaml:"provider"` // openai, none
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	Temperature       *float64 `yaml:"temperature"`
	MaxTokens         int      `yaml:"max_tokens"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	SystemPrompt      string   `yaml:"system_prompt"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// TemperatureOrDefault returns the sampling temperature; defaults to
// DefaultTemperature when unset.
func (g GeneratorConfig) TemperatureOrDefault() float64 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return DefaultTemperature
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (g GeneratorConfig) APIKey() string {
	return lookupEnv(g.APIKeyEnv)
}

// TranscriptsConfig holds the transcript directory and watch settings.
type TranscriptsConfig struct {
	Directory  string   `yaml:"directory"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a configuration with every default applied and paths
// relative to dir.
func Default(dir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(dir)
	return cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.CachePath = expandPath(c.Storage.CachePath, configDir)
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
	c.Transcripts.Directory = expandPath(c.Transcripts.Directory, configDir)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ForceRebuild reports whether the environment asks for the embedded-chunk
// cache to be rebuilt (KIKITORI_FORCE_REBUILD or FORCE_REBUILD set to 1/true/yes).
func ForceRebuild() bool {
	for _, key := range []string{"KIKITORI_FORCE_REBUILD", "FORCE_REBUILD"} {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes":
			return true
		}
	}
	return false
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}
