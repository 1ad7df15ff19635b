package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hyperjump/kikitori/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func embedded(id, source string, start, end float64, vec ...float32) models.EmbeddedChunk {
	return models.EmbeddedChunk{
		ID:        id,
		Chunk:     models.Chunk{Text: "text of " + id, Source: source, Start: start, End: end},
		Embedding: vec,
	}
}

func TestSQLiteStorage_EnsureCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := &models.Collection{Name: "transcripts", Metric: "cosine", Dimensions: 3, EmbeddingModel: "m"}

	got, res, err := store.EnsureCollection(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if res != models.EnsureCreated {
		t.Errorf("first ensure = %s, want created", res)
	}
	if got.Dimensions != 3 || got.Metric != "cosine" || got.CreatedAt.IsZero() {
		t.Errorf("stored collection = %+v", got)
	}

	other := &models.Collection{Name: "transcripts", Metric: "l2", Dimensions: 8, EmbeddingModel: "x"}
	got, res, err = store.EnsureCollection(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if res != models.EnsureAlreadyExisted {
		t.Errorf("second ensure = %s, want already_existed", res)
	}
	if got.Metric != "cosine" || got.Dimensions != 3 {
		t.Errorf("existing collection must be returned unchanged: %+v", got)
	}

	if _, err := store.GetCollection(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := []models.EmbeddedChunk{
		embedded("a", "one.txt", 0, 10, 1, 0, 0.5),
		embedded("b", "one.txt", 10, 20, 0, 1, -0.25),
	}
	if err := store.UpsertChunks(ctx, "c", chunks); err != nil {
		t.Fatal(err)
	}
	chunks[0].Chunk.Text = "replaced"
	if err := store.UpsertChunks(ctx, "c", chunks[:1]); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountChunks(ctx, "c")
	if err != nil || n != 2 {
		t.Fatalf("CountChunks = %d, %v; want 2", n, err)
	}

	got, err := store.GetChunks(ctx, "c", []string{"a", "b", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got["a"].Chunk.Text != "replaced" {
		t.Errorf("upsert did not replace text: %q", got["a"].Chunk.Text)
	}
	b := got["b"]
	if b.Chunk.Start != 10 || b.Chunk.End != 20 || b.Chunk.Source != "one.txt" {
		t.Errorf("metadata round trip: %+v", b.Chunk)
	}
	if len(b.Embedding) != 3 || b.Embedding[2] != -0.25 {
		t.Errorf("embedding round trip: %v", b.Embedding)
	}

	other, err := store.GetChunks(ctx, "other-collection", []string{"a"})
	if err != nil || len(other) != 0 {
		t.Errorf("collections must be isolated: %v, %v", other, err)
	}
}

func TestSQLiteStorage_ReplaceSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertChunks(ctx, "c", []models.EmbeddedChunk{
		embedded("a1", "a.txt", 0, 1, 1),
		embedded("a2", "a.txt", 1, 2, 1),
		embedded("b1", "b.txt", 0, 1, 1),
	})

	removed, err := store.ReplaceSource(ctx, "c", "a.txt", []models.EmbeddedChunk{
		embedded("a2", "a.txt", 1, 2, 2),
		embedded("a3", "a.txt", 2, 3, 3),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "a1" {
		t.Errorf("removed = %v, want [a1]", removed)
	}

	var ids []string
	err = store.ForEachChunk(ctx, "c", func(ch models.EmbeddedChunk) error {
		ids = append(ids, ch.ID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a2", "a3", "b1"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}

	if _, err := store.ReplaceSource(ctx, "c", "a.txt", []models.EmbeddedChunk{embedded("x", "b.txt", 0, 1, 1)}); err == nil {
		t.Error("expected error for chunk of another source")
	}

	removed, err = store.DeleteSource(ctx, "c", "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(removed)
	if len(removed) != 2 || removed[0] != "a2" || removed[1] != "a3" {
		t.Errorf("DeleteSource removed %v", removed)
	}
	n, _ := store.CountChunks(ctx, "c")
	if n != 1 {
		t.Errorf("expected 1 chunk left, got %d", n)
	}
}

func TestSQLiteStorage_ListSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.UpsertChunks(ctx, "c", []models.EmbeddedChunk{
		embedded("b1", "b.txt", 0, 5, 1),
		embedded("a1", "a.txt", 0, 3, 1),
		embedded("a2", "a.txt", 3, 9.5, 1),
	})
	sources, err := store.ListSources(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %+v", sources)
	}
	if sources[0].Source != "a.txt" || sources[0].Chunks != 2 || sources[0].End != 9.5 {
		t.Errorf("a.txt summary = %+v", sources[0])
	}
	if sources[1].Source != "b.txt" || sources[1].Chunks != 1 {
		t.Errorf("b.txt summary = %+v", sources[1])
	}
}

func TestSQLiteStorage_ForEachChunkStopsOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.UpsertChunks(ctx, "c", []models.EmbeddedChunk{
		embedded("a", "s", 0, 1, 1),
		embedded("b", "s", 1, 2, 1),
	})
	stop := errors.New("stop")
	calls := 0
	err := store.ForEachChunk(ctx, "c", func(models.EmbeddedChunk) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}
