package retrieval_test

import (
	"context"
	"fmt"
	"testing"

	"ragmill/src/rag"
	"ragmill/src/retrieval"
)

// axisEmbedder maps known texts onto fixed unit vectors so similarity
// scores are predictable.
type axisEmbedder struct {
	vectors map[string][]float32
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func newTestRetriever(t *testing.T) (*retrieval.MemoryRetriever, []rag.Chunk) {
	t.Helper()
	embedder := &axisEmbedder{vectors: map[string][]float32{
		"exact":      {1, 0, 0},
		"close":      {1, 1, 0},
		"orthogonal": {0, 1, 0},
		"opposite":   {-1, 0, 0},
	}}
	r := retrieval.NewMemoryRetriever(embedder)
	chunks := []rag.Chunk{
		{ID: "c1", DocumentID: "d", Index: 0, Text: "exact"},
		{ID: "c2", DocumentID: "d", Index: 1, Text: "close"},
		{ID: "c3", DocumentID: "d", Index: 2, Text: "orthogonal"},
		{ID: "c4", DocumentID: "d", Index: 3, Text: "opposite"},
	}
	if err := r.Index(context.Background(), chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}
	return r, chunks
}

func TestSearchOrdersByDescendingSimilarity(t *testing.T) {
	r, _ := newTestRetriever(t)

	results, err := r.Search(context.Background(), "exact", 4, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	want := []string{"exact", "close", "orthogonal", "opposite"}
	for i, res := range results {
		if res.Chunk.Text != want[i] {
			t.Errorf("result %d = %q, want %q", i, res.Chunk.Text, want[i])
		}
	}
	for i := 0; i+1 < len(results); i++ {
		if results[i].Score < results[i+1].Score {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
}

func TestSearchRespectsKAndThreshold(t *testing.T) {
	r, _ := newTestRetriever(t)
	ctx := context.Background()

	limited, err := r.Search(ctx, "exact", 2, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected k to cap results at 2, got %d", len(limited))
	}

	// exact scores 1.0, close ~0.85, orthogonal 0.5, opposite 0.0.
	filtered, err := r.Search(ctx, "exact", 10, 0.6)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 results above threshold 0.6, got %d", len(filtered))
	}
	for _, res := range filtered {
		if res.Score < 0.6 {
			t.Errorf("result %q below threshold: %f", res.Chunk.Text, res.Score)
		}
	}
}

func TestSearchEmptyStoreReturnsNothing(t *testing.T) {
	r := retrieval.NewMemoryRetriever(&axisEmbedder{})

	results, err := r.Search(context.Background(), "anything", 5, 0)
	if err != nil {
		t.Fatalf("empty store must not fail: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSearchRejectsInvalidK(t *testing.T) {
	r, _ := newTestRetriever(t)
	if _, err := r.Search(context.Background(), "exact", 0, 0); err == nil {
		t.Errorf("expected error for k < 1")
	}
}

// flakyEmbedder fails its first n calls, then succeeds.
type flakyEmbedder struct {
	calls    int
	failures int
}

func (e *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, fmt.Errorf("embedder unavailable")
	}
	return []float32{1, 0, 0}, nil
}

func TestIndexRetriesFailedBatch(t *testing.T) {
	embedder := &flakyEmbedder{failures: 1}
	r := retrieval.NewMemoryRetriever(embedder)
	chunks := []rag.Chunk{
		{ID: "c1", DocumentID: "d", Index: 0, Text: "first"},
		{ID: "c2", DocumentID: "d", Index: 1, Text: "second"},
	}

	if err := r.Index(context.Background(), chunks); err != nil {
		t.Fatalf("a transient embed failure must be retried, got %v", err)
	}
	stats, err := r.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["total_chunks"].(int) != 2 {
		t.Errorf("expected both chunks indexed after retry, got %v", stats["total_chunks"])
	}
}

func TestIndexGivesUpAfterBoundedAttempts(t *testing.T) {
	embedder := &flakyEmbedder{failures: 1000}
	r := retrieval.NewMemoryRetriever(embedder)
	chunks := []rag.Chunk{{ID: "c1", DocumentID: "d", Index: 0, Text: "first"}}

	if err := r.Index(context.Background(), chunks); err == nil {
		t.Fatalf("a persistent embed failure must propagate")
	}
	if embedder.calls != 3 {
		t.Errorf("expected 3 attempts before giving up, got %d", embedder.calls)
	}
	stats, _ := r.Stats(context.Background())
	if stats["total_chunks"].(int) != 0 {
		t.Errorf("failed batch must not be partially stored, got %v", stats["total_chunks"])
	}
}

func TestReindexAfterResetIsIdempotent(t *testing.T) {
	r, chunks := newTestRetriever(t)
	ctx := context.Background()

	first, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if err := r.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	empty, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty["total_chunks"].(int) != 0 {
		t.Fatalf("reset store should be empty, got %v", empty["total_chunks"])
	}

	if err := r.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}
	second, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if first["total_chunks"] != second["total_chunks"] {
		t.Errorf("collection size after reset+reindex = %v, want %v", second["total_chunks"], first["total_chunks"])
	}

	// Indexing the same chunks again must not duplicate entries.
	if err := r.Index(ctx, chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}
	third, _ := r.Stats(ctx)
	if third["total_chunks"] != second["total_chunks"] {
		t.Errorf("re-indexing duplicated entries: %v", third["total_chunks"])
	}
}
