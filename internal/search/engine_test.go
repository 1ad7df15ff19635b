package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kikitori/internal/collection"
	"github.com/hyperjump/kikitori/internal/embedding"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/storage"
	"github.com/hyperjump/kikitori/internal/vector"
)

// fakeIndex returns a canned result regardless of the query.
type fakeIndex struct {
	result *collection.QueryResult
	count  int
	err    error
	calls  int
}

func (f *fakeIndex) Query(_ context.Context, _ string, _ int) (*collection.QueryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeIndex) Count() int { return f.count }

func unsorted() *collection.QueryResult {
	return &collection.QueryResult{
		IDs:       []string{"c", "a", "b", "d"},
		Documents: []string{"third", "first", "second", "tied"},
		Metadatas: []models.Metadata{
			{Source: "x.vtt", Start: 20, End: 30},
			{Source: "x.vtt", Start: 0, End: 10},
			{Source: "y.vtt", Start: 5, End: 8},
			{Source: "y.vtt", Start: 9, End: 12},
		},
		Distances: []float64{0.9, 0.1, 0.5, 0.5},
	}
}

func TestRetriever_Validation(t *testing.T) {
	r := NewRetriever(&fakeIndex{count: 1, result: unsorted()})
	ctx := context.Background()

	_, err := r.Query(ctx, "", 3)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "query_text", ve.Param)

	_, err = r.Query(ctx, "   ", 3)
	assert.True(t, models.IsValidation(err))

	for _, k := range []int{0, -1} {
		_, err = r.Query(ctx, "hello", k)
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "top_k", ve.Param)
	}
}

func TestRetriever_SortsAndTruncates(t *testing.T) {
	idx := &fakeIndex{count: 4, result: unsorted()}
	r := NewRetriever(idx)

	res, err := r.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, []string{"a", "b", "d"}, []string{res.Hits[0].ID, res.Hits[1].ID, res.Hits[2].ID})
	assert.Equal(t, "first", res.Hits[0].Text)
	assert.Equal(t, "x.vtt", res.Hits[0].Source)
	assert.Equal(t, 10.0, res.Hits[0].End)
	assert.Equal(t, "q", res.Query)
	assert.Equal(t, 3, res.TopK)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	idx := &fakeIndex{}
	r := NewRetriever(idx)

	res, err := r.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.NotNil(t, res.Hits)
	assert.Equal(t, 0, idx.calls)
}

func TestRetriever_DependencyFailure(t *testing.T) {
	r := NewRetriever(&fakeIndex{count: 1, err: errors.New("disk on fire")})
	_, err := r.Query(context.Background(), "q", 1)
	require.Error(t, err)
	assert.True(t, models.IsDependency(err))
	assert.False(t, models.IsValidation(err))
}

func TestRetriever_MismatchedSequences(t *testing.T) {
	bad := unsorted()
	bad.Distances = bad.Distances[:2]
	r := NewRetriever(&fakeIndex{count: 4, result: bad})
	_, err := r.Query(context.Background(), "q", 3)
	assert.True(t, models.IsDependency(err))
}

func TestRetriever_OverCollection(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer store.Close()

	emb := embedding.NewMockEmbedder(32)
	vi, err := vector.NewVectorIndex("memory", "cosine", 32)
	require.NoError(t, err)
	coll, _, err := collection.Open(ctx, "transcripts_collection", store, vi, emb)
	require.NoError(t, err)

	texts := []string{
		"neural networks learn representations from data",
		"the recipe calls for two cups of flour",
		"gradient descent minimizes the training loss",
		"our hiking trip covered twelve miles of trail",
		"transformers use attention over token sequences",
	}
	records := make([]models.EmbeddedChunk, len(texts))
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		require.NoError(t, err)
		records[i] = models.EmbeddedChunk{
			ID:        string(rune('a' + i)),
			Chunk:     models.Chunk{Text: text, Source: "lecture.vtt", Start: float64(i * 10), End: float64(i*10 + 10)},
			Embedding: vec,
		}
	}
	require.NoError(t, coll.Add(ctx, records))

	r := NewRetriever(coll)
	for _, k := range []int{1, 3, 5, 10} {
		res, err := r.Query(ctx, "gradient descent minimizes the training loss", k)
		require.NoError(t, err)
		want := k
		if want > len(texts) {
			want = len(texts)
		}
		require.Len(t, res.Hits, want, "length is min(top_k, indexed_count)")
		assert.Equal(t, "c", res.Hits[0].ID)
		for i := 1; i < len(res.Hits); i++ {
			assert.LessOrEqual(t, res.Hits[i-1].Distance, res.Hits[i].Distance)
		}
	}
}

func TestProcessQuery(t *testing.T) {
	d := QueryDefaults{DefaultTopK: 3, MaxTopK: 10}

	q := &models.Query{Text: "hello"}
	require.NoError(t, ProcessQuery(q, d))
	assert.Equal(t, 3, q.TopK)

	q = &models.Query{Text: "hello", TopK: 50}
	require.NoError(t, ProcessQuery(q, d))
	assert.Equal(t, 10, q.TopK)

	assert.True(t, models.IsValidation(ProcessQuery(&models.Query{Text: "hello", TopK: -2}, d)))
	assert.True(t, models.IsValidation(ProcessQuery(&models.Query{}, d)))
}
