package vector

import (
	"context"
	"math"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3, MetricCosine)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, []string{"a", "b", "c"}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	if math.Abs(results[0].Distance) > 1e-9 {
		t.Errorf("identical vector distance = %v, want 0", results[0].Distance)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results must be ascending by distance")
	}
}

func TestMemoryIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricL2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Distance != 2 {
		t.Errorf("squared L2 distance = %v, want 2", results[1].Distance)
	}
}

func TestMemoryIndex_EmptyAndZeroK(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricCosine)
	ctx := context.Background()
	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil || len(results) != 0 {
		t.Errorf("empty index: results=%v err=%v", results, err)
	}
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	results, err = idx.Search(ctx, []float32{1, 0}, 0)
	if err != nil || len(results) != 0 {
		t.Errorf("k=0: results=%v err=%v", results, err)
	}
}

func TestMemoryIndex_TiesOrderedByID(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"c", "a", "b"}, [][]float32{{0, 1}, {0, 1}, {0, 1}})
	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].ID != want {
			t.Errorf("result %d = %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestMemoryIndex_UpsertAndRemove(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricCosine)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y", "z"}, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	if err := idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("upsert changed size: %d", idx.Size())
	}
	if err := idx.Remove(ctx, []string{"x", "missing"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 2)
	if results[0].ID != "y" {
		t.Errorf("expected y first after removal, got %s", results[0].ID)
	}
	if err := idx.Add(ctx, []string{"w"}, [][]float32{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	results, _ = idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "w" {
		t.Errorf("expected w, got %s", results[0].ID)
	}
}

func TestMemoryIndex_CopiesVectors(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricCosine)
	ctx := context.Background()
	v := []float32{1, 0}
	_ = idx.Add(ctx, []string{"x"}, [][]float32{v})
	v[0], v[1] = 0, 1
	results, _ := idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].Distance > 1e-9 {
		t.Errorf("index should hold a copy of the vector, distance=%v", results[0].Distance)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(2, MetricCosine)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {1, 0, 0}}); err == nil {
		t.Error("expected dimension error")
	}
	if idx.Size() != 0 {
		t.Error("failed Add must not write partial batch")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected query dimension error")
	}
}
