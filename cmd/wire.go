package cmd

import (
	"context"
	"fmt"

	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"ragmill/src/config"
	"ragmill/src/core/generation"
	"ragmill/src/core/pipeline"
	"ragmill/src/loader"
	"ragmill/src/ollama"
	"ragmill/src/rag"
	"ragmill/src/retrieval"
	"ragmill/src/storage/weaviate"
)

// buildPipeline wires the pipeline from a validated configuration. The
// returned probes report collaborator reachability for the health
// endpoint.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, map[string]func(context.Context) error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	embedder := ollama.NewClient(cfg.OllamaURL, cfg.EmbeddingModel, nil)

	var retriever rag.Retriever
	switch cfg.VectorStore {
	case "memory":
		retriever = retrieval.NewMemoryRetriever(embedder)
	default:
		wc := weaviateClient.New(weaviateClient.Config{
			Host:   cfg.WeaviateURL,
			Scheme: "http",
		})
		retriever = retrieval.NewWeaviateRetriever(weaviate.NewSDK(wc), embedder, cfg.ClassName, cfg.BatchSize)
	}

	generator, err := generation.NewGroqGenerator(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.LLMModel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generator: %w", err)
	}

	checks := map[string]func(context.Context) error{
		"embedder": embedder.Ping,
		"vectorstore": func(ctx context.Context) error {
			_, err := retriever.Stats(ctx)
			return err
		},
	}

	return pipeline.New(cfg, loader.NewFileLoader(), retriever, generator), checks, nil
}
