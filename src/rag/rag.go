package rag

import (
	"context"
	"errors"
)

var (
	ErrNotLoaded  = errors.New("no documents loaded")
	ErrNotIndexed = errors.New("documents not processed")
)

// Document is a raw text unit produced by a Loader. Immutable once created.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is the unit of indexing and retrieval, derived from exactly one
// document by one chunking strategy.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"documentId"`
	Index      int               `json:"index"`
	Strategy   string            `json:"strategy"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata"`
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Source traces an answer back to a document and position.
type Source struct {
	DocumentID string            `json:"documentId"`
	Excerpt    string            `json:"excerpt"`
	Score      float64           `json:"score"`
	Metadata   map[string]string `json:"metadata"`
}

// QueryResult is the outcome of a single question. Err is set only by
// batch queries, where one failed question must not abort the rest.
type QueryResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	NumSources int      `json:"numSources"`
	Err        error    `json:"-"`
}

// ChunkingStats summarizes the chunks produced by the last process run.
type ChunkingStats struct {
	Count            int     `json:"count"`
	AverageChunkSize float64 `json:"averageChunkSize"`
	TotalCharacters  int     `json:"totalCharacters"`
}

// PipelineStats aggregates pipeline counters. Recomputed on demand.
type PipelineStats struct {
	State            string         `json:"state"`
	DocumentsLoaded  int            `json:"documentsLoaded"`
	ChunksCreated    int            `json:"chunksCreated"`
	ChunkingStats    ChunkingStats  `json:"chunkingStats"`
	VectorStoreStats map[string]any `json:"vectorStoreStats"`
	LLMModel         string         `json:"llmModel"`
}

// Loader acquires documents from the filesystem. Failure to parse one
// file must not abort the others; per-file errors come back as warnings.
type Loader interface {
	LoadFromDirectory(ctx context.Context, dir string) ([]Document, []error, error)
	LoadFile(ctx context.Context, path string) ([]Document, []error, error)
}

// Embedder converts text into a vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever indexes chunks and answers similarity queries.
type Retriever interface {
	// Index upserts chunks in batches.
	Index(ctx context.Context, chunks []Chunk) error
	// Search returns at most k chunks with similarity >= threshold,
	// ordered by descending similarity. An empty or unindexed
	// collection yields an empty result, not an error.
	Search(ctx context.Context, query string, k int, threshold float64) ([]ScoredChunk, error)
	// Reset drops every indexed chunk.
	Reset(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
}

// Generator produces a grounded answer from a question and retrieved context.
type Generator interface {
	Answer(ctx context.Context, question string, contextChunks []ScoredChunk, systemPrompt string, temperature float64) (string, error)
	Model() string
}
