package pipeline

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragmill/src/config"
	"ragmill/src/core/chunking"
	"ragmill/src/log"
	"ragmill/src/rag"
)

// State tracks how far the pipeline has progressed. Callers branch on it
// instead of probing with calls that may fail.
type State int

const (
	StateEmpty State = iota
	StateLoaded
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateIndexed:
		return "indexed"
	default:
		return "empty"
	}
}

// maxBatchConcurrency bounds parallel collaborator calls during a batch
// query.
const maxBatchConcurrency = 4

// Pipeline sequences loading, chunking/indexing and querying. A single
// instance must not be mutated concurrently from two callers; batch
// queries only read.
type Pipeline struct {
	cfg       *config.Config
	loader    rag.Loader
	retriever rag.Retriever
	generator rag.Generator

	mu         sync.Mutex
	state      State
	documents  []rag.Document
	chunks     []rag.Chunk
	chunkStats rag.ChunkingStats
}

func New(cfg *config.Config, loader rag.Loader, retriever rag.Retriever, generator rag.Generator) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		loader:    loader,
		retriever: retriever,
		generator: generator,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LoadDirectory replaces the held document set with the supported files
// under dir (the configured documents path when dir is empty). Loading
// zero documents is not an error, but any previously indexed chunks are
// no longer queryable until Process runs again.
func (p *Pipeline) LoadDirectory(ctx context.Context, dir string) (int, []error, error) {
	if dir == "" {
		dir = p.cfg.DocumentsPath
	}
	docs, warnings, err := p.loader.LoadFromDirectory(ctx, dir)
	if err != nil {
		return 0, warnings, err
	}
	p.replaceDocuments(docs)
	return len(docs), warnings, nil
}

// LoadFile replaces the held document set with a single file.
func (p *Pipeline) LoadFile(ctx context.Context, path string) (int, []error, error) {
	docs, warnings, err := p.loader.LoadFile(ctx, path)
	if err != nil {
		return 0, warnings, err
	}
	p.replaceDocuments(docs)
	return len(docs), warnings, nil
}

func (p *Pipeline) replaceDocuments(docs []rag.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents = docs
	p.chunks = nil
	p.chunkStats = rag.ChunkingStats{}
	// Even with zero documents the pipeline leaves Empty: the caller
	// asked for a load, and a stale index must not answer for it.
	p.state = StateLoaded
}

// Process chunks the loaded documents and indexes the result, replacing
// whatever was indexed before. Zero-value options fall back to the
// configured chunk size and overlap.
func (p *Pipeline) Process(ctx context.Context, opts chunking.Options) (int, error) {
	p.mu.Lock()
	docs := p.documents
	p.mu.Unlock()

	if len(docs) == 0 {
		return 0, rag.ErrNotLoaded
	}

	if opts.ChunkSize == 0 {
		opts.ChunkSize = p.cfg.ChunkSize
	}
	if opts.ChunkOverlap == 0 && (opts.Strategy == "" || opts.Strategy == chunking.StrategyRecursive) {
		opts.ChunkOverlap = p.cfg.ChunkOverlap
	}
	chunker, err := chunking.New(opts)
	if err != nil {
		return 0, err
	}

	chunks := chunker.ChunkDocuments(docs)

	// The collection is about to be dropped; until re-indexing
	// succeeds the previous chunk set must not be queryable.
	p.mu.Lock()
	p.chunks = nil
	p.chunkStats = rag.ChunkingStats{}
	p.state = StateLoaded
	p.mu.Unlock()

	if err := p.retriever.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear previous index: %w", err)
	}
	if err := p.retriever.Index(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to index chunks: %w", err)
	}

	p.mu.Lock()
	p.chunks = chunks
	p.chunkStats = chunking.ComputeStats(chunks)
	p.state = StateIndexed
	p.mu.Unlock()

	log.Info("processed documents", "documents", len(docs), "chunks", len(chunks), "strategy", chunker.Options().Strategy)
	return len(chunks), nil
}

// Query retrieves the top-k chunks above threshold and asks the
// generator for an answer grounded in them. Pass k <= 0 or threshold < 0
// to use the configured defaults.
func (p *Pipeline) Query(ctx context.Context, question string, k int, threshold float64) (rag.QueryResult, error) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state != StateIndexed {
		return rag.QueryResult{Question: question}, rag.ErrNotIndexed
	}

	if k <= 0 {
		k = p.cfg.RetrievalK
	}
	if threshold < 0 {
		threshold = p.cfg.ScoreThreshold
	}

	traceID := uuid.New().String()
	log.Debug("query", "trace", traceID, "k", k, "threshold", threshold)

	retrieved, err := p.retriever.Search(ctx, question, k, threshold)
	if err != nil {
		return rag.QueryResult{Question: question}, fmt.Errorf("retrieval failed: %w", err)
	}

	answer, err := p.generator.Answer(ctx, question, retrieved, "", p.cfg.Temperature)
	if err != nil {
		return rag.QueryResult{Question: question}, fmt.Errorf("generation failed: %w", err)
	}

	sources := make([]rag.Source, 0, len(retrieved))
	for _, sc := range retrieved {
		sources = append(sources, rag.Source{
			DocumentID: sc.Chunk.DocumentID,
			Excerpt:    excerpt(sc.Chunk.Text, 200),
			Score:      sc.Score,
			Metadata:   sc.Chunk.Metadata,
		})
	}

	return rag.QueryResult{
		Question:   question,
		Answer:     answer,
		Sources:    sources,
		NumSources: len(sources),
	}, nil
}

// BatchQuery answers each question independently and returns the results
// in input order regardless of completion order. A failing question
// carries its error in the result; it never aborts the rest.
func (p *Pipeline) BatchQuery(ctx context.Context, questions []string, k int, threshold float64) ([]rag.QueryResult, error) {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()
	if state != StateIndexed {
		return nil, rag.ErrNotIndexed
	}

	results := make([]rag.QueryResult, len(questions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBatchConcurrency)
	for i, q := range questions {
		g.Go(func() error {
			res, err := p.Query(ctx, q, k, threshold)
			if err != nil {
				res = rag.QueryResult{Question: q, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	// The group never propagates per-question errors.
	_ = g.Wait()
	return results, nil
}

// Reset clears the loaded documents and the indexed collection and
// returns to Empty. Internal state only changes once the collection is
// gone, so a failed reset leaves the pipeline as it was.
func (p *Pipeline) Reset(ctx context.Context) error {
	if err := p.retriever.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents = nil
	p.chunks = nil
	p.chunkStats = rag.ChunkingStats{}
	p.state = StateEmpty
	return nil
}

// Stats recomputes the aggregate counters. It works in every state and
// reports zero-filled counters when Empty.
func (p *Pipeline) Stats(ctx context.Context) (rag.PipelineStats, error) {
	p.mu.Lock()
	stats := rag.PipelineStats{
		State:           p.state.String(),
		DocumentsLoaded: len(p.documents),
		ChunksCreated:   len(p.chunks),
		ChunkingStats:   p.chunkStats,
		LLMModel:        p.generator.Model(),
	}
	p.mu.Unlock()

	storeStats, err := p.retriever.Stats(ctx)
	if err != nil {
		return rag.PipelineStats{}, fmt.Errorf("failed to read vector store stats: %w", err)
	}
	stats.VectorStoreStats = storeStats
	return stats, nil
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	// Never split a multi-byte rune at the cut.
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + "..."
}
