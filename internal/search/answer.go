package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/generator"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/prompt"
)

// Assistant answers questions from retrieved transcript snippets.
type Assistant struct {
	retriever *Retriever
	generator generator.Generator
	logger    *zap.Logger
}

// NewAssistant creates an assistant. gen may be nil, in which case Ask
// fails with ErrGeneratorUnavailable.
func NewAssistant(retriever *Retriever, gen generator.Generator, logger *zap.Logger) *Assistant {
	return &Assistant{retriever: retriever, generator: gen, logger: logger}
}

// Ask retrieves the topK nearest snippets for question and generates an
// answer grounded on them.
func (a *Assistant) Ask(ctx context.Context, question string, topK int) (*models.Answer, error) {
	if a.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", models.ErrGeneratorUnavailable)
	}
	result, err := a.retriever.Query(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	p := prompt.Build(question, result.Hits)
	if a.logger != nil {
		a.logger.Debug("generating answer",
			zap.Int("snippets", len(result.Hits)),
			zap.Int("prompt_chars", len(p)),
			zap.String("model", a.generator.ModelName()))
	}
	text, err := a.generator.Generate(ctx, p)
	if err != nil {
		return nil, models.NewDependencyError("generator", err)
	}
	return &models.Answer{
		Question: question,
		Answer:   text,
		Snippets: result.Hits,
		Model:    a.generator.ModelName(),
	}, nil
}
