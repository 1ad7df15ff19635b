// Package generator produces answers from grounding prompts with a chat model.
package generator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/models"
)

// Generator turns a prompt into answer text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Options configures an OpenAIGenerator.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	// RequestsPerSecond throttles API calls; zero disables throttling.
	RequestsPerSecond float64
}

// OpenAIGenerator calls an OpenAI-compatible chat completion endpoint such
// as Groq.
type OpenAIGenerator struct {
	client  *openai.Client
	opts    Options
	limiter *rate.Limiter
}

// NewOpenAIGenerator creates a generator. The API key is required.
func NewOpenAIGenerator(opts Options) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is not set", models.ErrGeneratorUnavailable)
	}
	if opts.Model == "" {
		return nil, models.NewValidationError("generator.model", "must not be empty")
	}
	cc := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cc.BaseURL = opts.BaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(cc),
		opts:    opts,
		limiter: limiter,
	}, nil
}

// NewFromConfig creates the generator selected by cfg.Provider. It returns
// ErrGeneratorUnavailable when generation is disabled or no key is set.
func NewFromConfig(cfg config.GeneratorConfig) (Generator, error) {
	switch cfg.Provider {
	case "none":
		return nil, fmt.Errorf("%w: provider is none", models.ErrGeneratorUnavailable)
	case "openai", "":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("%w: $%s is not set", models.ErrGeneratorUnavailable, cfg.APIKeyEnv)
		}
		return NewOpenAIGenerator(Options{
			APIKey:            key,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			SystemPrompt:      cfg.SystemPrompt,
			Temperature:       cfg.TemperatureOrDefault(),
			MaxTokens:         cfg.MaxTokens,
			Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: openai, none)", cfg.Provider)
	}
}

// Generate sends prompt as the user message and returns the first choice.
// Failures are reported as dependency errors and are not retried.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", models.NewValidationError("prompt", "must not be empty")
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", models.NewDependencyError("generator", err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if g.opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.opts.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.opts.Model,
		Messages:    messages,
		Temperature: temperature(g.opts.Temperature),
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		return "", models.NewDependencyError("generator", fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", models.NewDependencyError("generator", fmt.Errorf("no completion choices returned"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ModelName returns the chat model name.
func (g *OpenAIGenerator) ModelName() string {
	return g.opts.Model
}

// temperature maps an explicit zero to the smallest positive float32, since
// the request field is omitted when zero.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
