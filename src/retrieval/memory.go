package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragmill/src/log"
	"ragmill/src/rag"
)

// MemoryRetriever is a brute-force cosine-similarity store. It backs the
// pipeline when no Weaviate endpoint is configured and keeps everything
// in process memory.
type MemoryRetriever struct {
	mu       sync.RWMutex
	embedder rag.Embedder
	order    []string
	entries  map[string]memoryEntry
}

type memoryEntry struct {
	chunk  rag.Chunk
	vector []float32
}

var _ rag.Retriever = (*MemoryRetriever)(nil)

func NewMemoryRetriever(embedder rag.Embedder) *MemoryRetriever {
	return &MemoryRetriever{
		embedder: embedder,
		entries:  map[string]memoryEntry{},
	}
}

// Index embeds and stores chunks in fixed-size batches, keyed by chunk
// ID so re-indexing the same set never duplicates entries. Embedding is
// a remote call, so each batch is attempted a bounded number of times
// before the failure propagates.
func (r *MemoryRetriever) Index(ctx context.Context, chunks []rag.Chunk) error {
	for start := 0; start < len(chunks); start += DefaultBatchSize {
		end := start + DefaultBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		var (
			entries []memoryEntry
			lastErr error
		)
		for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
			entries, lastErr = r.embedBatch(ctx, chunks[start:end])
			if lastErr == nil {
				break
			}
			log.Error(lastErr, "batch embed failed", "attempt", attempt, "batch_start", start)
		}
		if lastErr != nil {
			return fmt.Errorf("failed to index batch starting at %d: %w", start, lastErr)
		}

		r.mu.Lock()
		for _, entry := range entries {
			if _, seen := r.entries[entry.chunk.ID]; !seen {
				r.order = append(r.order, entry.chunk.ID)
			}
			r.entries[entry.chunk.ID] = entry
		}
		r.mu.Unlock()
	}
	return nil
}

func (r *MemoryRetriever) embedBatch(ctx context.Context, batch []rag.Chunk) ([]memoryEntry, error) {
	entries := make([]memoryEntry, 0, len(batch))
	for _, chunk := range batch {
		vector, err := r.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}
		entries = append(entries, memoryEntry{chunk: chunk, vector: vector})
	}
	return entries, nil
}

// Search scores every stored chunk against the query and returns at most
// k results with similarity >= threshold, descending. Cosine similarity
// is mapped onto [0,1] so thresholds compare like Weaviate certainty.
func (r *MemoryRetriever) Search(ctx context.Context, query string, k int, threshold float64) ([]rag.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	r.mu.RLock()
	empty := len(r.entries) == 0
	r.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	scored := make([]rag.ScoredChunk, 0, len(r.order))
	for _, id := range r.order {
		entry := r.entries[id]
		score := (1 + cosine(vector, entry.vector)) / 2
		if score < threshold {
			continue
		}
		scored = append(scored, rag.ScoredChunk{Chunk: entry.chunk, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *MemoryRetriever) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.entries = map[string]memoryEntry{}
	return nil
}

func (r *MemoryRetriever) Stats(ctx context.Context) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]any{
		"backend":      "memory",
		"collection":   "in-process",
		"total_chunks": len(r.entries),
	}, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
