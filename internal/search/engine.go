// Package search answers queries against a transcript collection.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/collection"
	"github.com/hyperjump/kikitori/internal/models"
)

// Index is the query side of a collection.
type Index interface {
	Query(ctx context.Context, text string, k int) (*collection.QueryResult, error)
	Count() int
}

// Retriever returns the nearest chunks for a query, nearest first.
type Retriever struct {
	index  Index
	logger *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger; every returned hit is logged at debug level.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever over index.
func NewRetriever(index Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Query returns up to topK hits ordered by ascending distance. Equal
// distances are ordered by chunk ID. An empty index yields an empty result.
func (r *Retriever) Query(ctx context.Context, queryText string, topK int) (*models.RetrievalResult, error) {
	startTime := time.Now()
	if strings.TrimSpace(queryText) == "" {
		return nil, models.NewValidationError("query_text", "must not be empty")
	}
	if topK <= 0 {
		return nil, models.NewValidationError("top_k", "must be positive, got %d", topK)
	}

	result := &models.RetrievalResult{Query: queryText, TopK: topK, Hits: []models.Hit{}}
	if r.index.Count() == 0 {
		result.QueryTime = time.Since(startTime).Milliseconds()
		return result, nil
	}

	qr, err := r.index.Query(ctx, queryText, topK)
	if err != nil {
		if models.IsValidation(err) || models.IsDependency(err) {
			return nil, err
		}
		return nil, models.NewDependencyError("index", err)
	}
	hits, err := zipHits(qr)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	result.Hits = hits
	result.QueryTime = time.Since(startTime).Milliseconds()

	if r.logger != nil {
		for i, h := range hits {
			r.logger.Debug("retrieved chunk",
				zap.Int("rank", i+1),
				zap.String("id", h.ID),
				zap.String("source", h.Source),
				zap.Float64("start", h.Start),
				zap.Float64("end", h.End),
				zap.Float64("distance", h.Distance))
		}
	}
	return result, nil
}

func zipHits(qr *collection.QueryResult) ([]models.Hit, error) {
	n := len(qr.IDs)
	if len(qr.Documents) != n || len(qr.Metadatas) != n || len(qr.Distances) != n {
		return nil, models.NewDependencyError("index", fmt.Errorf(
			"query returned mismatched sequences: %d ids, %d documents, %d metadatas, %d distances",
			n, len(qr.Documents), len(qr.Metadatas), len(qr.Distances)))
	}
	hits := make([]models.Hit, n)
	for i := range hits {
		md := qr.Metadatas[i]
		hits[i] = models.Hit{
			ID:       qr.IDs[i],
			Text:     qr.Documents[i],
			Source:   md.Source,
			Start:    md.Start,
			End:      md.End,
			Distance: qr.Distances[i],
		}
	}
	return hits, nil
}
