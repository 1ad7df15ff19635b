package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/models"
)

func fakeChatServer(t *testing.T, reply string, status int, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "cmpl-1",
			Object: "chat.completion",
			Model:  "llama-3.1-8b-instant",
			Choices: []openai.ChatCompletionChoice{{
				Index:   0,
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	var seen openai.ChatCompletionRequest
	srv := fakeChatServer(t, "  The answer is 42.  ", http.StatusOK, &seen)

	g, err := NewOpenAIGenerator(Options{
		APIKey:       "test-key",
		BaseURL:      srv.URL + "/v1",
		Model:        "llama-3.1-8b-instant",
		SystemPrompt: "You are a helpful assistant.",
		Temperature:  0.2,
		MaxTokens:    200,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "What is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", got)
	assert.Equal(t, "llama-3.1-8b-instant", g.ModelName())

	assert.Equal(t, "llama-3.1-8b-instant", seen.Model)
	assert.Equal(t, 200, seen.MaxTokens)
	assert.InDelta(t, 0.2, seen.Temperature, 1e-6)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, seen.Messages[0].Role)
	assert.Equal(t, "You are a helpful assistant.", seen.Messages[0].Content)
	assert.Equal(t, "What is the answer?", seen.Messages[1].Content)
}

func TestOpenAIGenerator_ServerErrorIsDependencyError(t *testing.T) {
	srv := fakeChatServer(t, "", http.StatusInternalServerError, nil)
	g, err := NewOpenAIGenerator(Options{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m"})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, models.IsDependency(err))
}

func TestOpenAIGenerator_EmptyPrompt(t *testing.T) {
	g, err := NewOpenAIGenerator(Options{APIKey: "k", Model: "m"})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "   ")
	assert.True(t, models.IsValidation(err))
}

func TestNewFromConfig(t *testing.T) {
	t.Run("provider none", func(t *testing.T) {
		_, err := NewFromConfig(config.GeneratorConfig{Provider: "none"})
		assert.ErrorIs(t, err, models.ErrGeneratorUnavailable)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("KIKITORI_TEST_GEN_KEY", "")
		_, err := NewFromConfig(config.GeneratorConfig{Provider: "openai", Model: "m", APIKeyEnv: "KIKITORI_TEST_GEN_KEY"})
		assert.ErrorIs(t, err, models.ErrGeneratorUnavailable)
	})

	t.Run("configured", func(t *testing.T) {
		t.Setenv("KIKITORI_TEST_GEN_KEY", "secret")
		g, err := NewFromConfig(config.GeneratorConfig{Provider: "openai", Model: "llama-3.1-8b-instant", APIKeyEnv: "KIKITORI_TEST_GEN_KEY"})
		require.NoError(t, err)
		assert.Equal(t, "llama-3.1-8b-instant", g.ModelName())
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewFromConfig(config.GeneratorConfig{Provider: "bard"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, models.ErrGeneratorUnavailable))
	})
}

func TestTemperatureZeroIsSent(t *testing.T) {
	assert.Greater(t, temperature(0), float32(0))
	assert.Equal(t, float32(0.5), temperature(0.5))
}
