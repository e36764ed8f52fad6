package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate/entities/models"

	"ragmill/src/log"
	"ragmill/src/rag"
	"ragmill/src/storage/weaviate"
)

const (
	DefaultBatchSize = 50
	maxBatchAttempts = 3
)

// WeaviateRetriever indexes chunks into a Weaviate class and answers
// threshold-filtered similarity queries against it. Vectors come from the
// embedding collaborator; Weaviate only stores and searches them.
type WeaviateRetriever struct {
	sdk       *weaviate.SDK
	embedder  rag.Embedder
	className string
	batchSize int
}

var _ rag.Retriever = (*WeaviateRetriever)(nil)

func NewWeaviateRetriever(sdk *weaviate.SDK, embedder rag.Embedder, className string, batchSize int) *WeaviateRetriever {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &WeaviateRetriever{
		sdk:       sdk,
		embedder:  embedder,
		className: className,
		batchSize: batchSize,
	}
}

func (r *WeaviateRetriever) schemaProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "documentId", DataType: []string{"text"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
		{Name: "strategy", DataType: []string{"text"}},
		{Name: "metadata", DataType: []string{"text"}},
	}
}

// Index embeds and upserts chunks in fixed-size batches. Each batch is
// attempted a bounded number of times before the failure propagates.
// Object IDs are derived from the chunk ID, so re-indexing the same
// chunk set overwrites instead of duplicating.
func (r *WeaviateRetriever) Index(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.sdk.EnsureSchema(ctx, r.className, r.schemaProperties(), "none"); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	for start := 0; start < len(chunks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		objects, err := r.buildObjects(ctx, chunks[start:end])
		if err != nil {
			return err
		}

		var lastErr error
		for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
			lastErr = r.sdk.BatchAddVectors(ctx, r.className, objects)
			if lastErr == nil {
				break
			}
			log.Error(lastErr, "batch upsert failed", "attempt", attempt, "batch_start", start)
		}
		if lastErr != nil {
			return fmt.Errorf("failed to index batch starting at %d: %w", start, lastErr)
		}
	}

	log.Info("indexed chunks", "count", len(chunks), "class", r.className)
	return nil
}

func (r *WeaviateRetriever) buildObjects(ctx context.Context, chunks []rag.Chunk) ([]weaviate.VectorObject, error) {
	objects := make([]weaviate.VectorObject, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := r.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}
		md, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		objects = append(objects, weaviate.VectorObject{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String(),
			Vector: vector,
			Properties: map[string]interface{}{
				"content":    chunk.Text,
				"documentId": chunk.DocumentID,
				"chunkIndex": chunk.Index,
				"strategy":   chunk.Strategy,
				"metadata":   string(md),
			},
		})
	}
	return objects, nil
}

// Search returns at most k chunks with certainty >= threshold, ordered by
// descending similarity. An unindexed collection yields an empty result.
func (r *WeaviateRetriever) Search(ctx context.Context, query string, k int, threshold float64) ([]rag.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.sdk.QueryVectors(ctx, r.className, vector, weaviate.QueryConfig{
		Fields:    []string{"content", "documentId", "chunkIndex", "strategy", "metadata"},
		Limit:     k,
		Certainty: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}

	scored := make([]rag.ScoredChunk, 0, len(results))
	for _, res := range results {
		if res.Certainty < threshold {
			continue
		}
		scored = append(scored, rag.ScoredChunk{
			Chunk: chunkFromProperties(res.Properties),
			Score: res.Certainty,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

func chunkFromProperties(props map[string]interface{}) rag.Chunk {
	chunk := rag.Chunk{}
	if v, ok := props["content"].(string); ok {
		chunk.Text = v
	}
	if v, ok := props["documentId"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := props["chunkIndex"].(float64); ok {
		chunk.Index = int(v)
	}
	if v, ok := props["strategy"].(string); ok {
		chunk.Strategy = v
	}
	if v, ok := props["metadata"].(string); ok && v != "" {
		md := map[string]string{}
		if err := json.Unmarshal([]byte(v), &md); err == nil {
			chunk.Metadata = md
		}
	}
	chunk.ID = fmt.Sprintf("%s:%s:%d", chunk.DocumentID, chunk.Strategy, chunk.Index)
	return chunk
}

// Reset drops the whole class, clearing every indexed chunk.
func (r *WeaviateRetriever) Reset(ctx context.Context) error {
	if err := r.sdk.DeleteSchema(ctx, r.className); err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	return nil
}

// Stats exposes collection-level counters without retrieving content.
func (r *WeaviateRetriever) Stats(ctx context.Context) (map[string]any, error) {
	count, err := r.sdk.Count(ctx, r.className)
	if err != nil {
		return nil, fmt.Errorf("failed to count collection: %w", err)
	}
	return map[string]any{
		"backend":      "weaviate",
		"collection":   r.className,
		"total_chunks": count,
	}, nil
}
