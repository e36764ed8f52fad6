package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every knob the pipeline and its collaborators need. It is
// built once at startup from viper and passed by reference; no core
// package reads configuration globals.
type Config struct {
	GroqAPIKey  string
	GroqBaseURL string
	LLMModel    string

	OllamaURL      string
	EmbeddingModel string

	VectorStore string // "weaviate" or "memory"
	WeaviateURL string
	ClassName   string

	DocumentsPath string

	ChunkSize    int
	ChunkOverlap int

	RetrievalK     int
	ScoreThreshold float64
	BatchSize      int
	Temperature    float64

	ServerPort      string
	ShutdownTimeout string
}

// FromViper materializes the configuration from the already-bound viper
// instance.
func FromViper() *Config {
	return &Config{
		GroqAPIKey:      viper.GetString("groq.api_key"),
		GroqBaseURL:     viper.GetString("groq.base_url"),
		LLMModel:        viper.GetString("groq.model"),
		OllamaURL:       viper.GetString("ollama.url"),
		EmbeddingModel:  viper.GetString("ollama.embedding_model"),
		VectorStore:     viper.GetString("vectorstore.backend"),
		WeaviateURL:     viper.GetString("weaviate.url"),
		ClassName:       viper.GetString("weaviate.class"),
		DocumentsPath:   viper.GetString("documents.path"),
		ChunkSize:       viper.GetInt("chunking.size"),
		ChunkOverlap:    viper.GetInt("chunking.overlap"),
		RetrievalK:      viper.GetInt("retrieval.k"),
		ScoreThreshold:  viper.GetFloat64("retrieval.threshold"),
		BatchSize:       viper.GetInt("retrieval.batch_size"),
		Temperature:     viper.GetFloat64("groq.temperature"),
		ServerPort:      viper.GetString("server.port"),
		ShutdownTimeout: viper.GetString("server.shutdown_timeout"),
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is not set")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must satisfy 0 <= overlap < size, got %d", c.ChunkOverlap)
	}
	if c.RetrievalK < 1 {
		return fmt.Errorf("retrieval k must be >= 1, got %d", c.RetrievalK)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold must be in [0,1], got %f", c.ScoreThreshold)
	}
	switch c.VectorStore {
	case "weaviate", "memory":
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore)
	}
	return nil
}

// Display renders the configuration with the credential masked.
func (c *Config) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "groq.api_key: %s\n", maskSecret(c.GroqAPIKey))
	fmt.Fprintf(&b, "groq.model: %s\n", c.LLMModel)
	fmt.Fprintf(&b, "groq.temperature: %.2f\n", c.Temperature)
	fmt.Fprintf(&b, "ollama.url: %s\n", c.OllamaURL)
	fmt.Fprintf(&b, "ollama.embedding_model: %s\n", c.EmbeddingModel)
	fmt.Fprintf(&b, "vectorstore.backend: %s\n", c.VectorStore)
	fmt.Fprintf(&b, "weaviate.url: %s\n", c.WeaviateURL)
	fmt.Fprintf(&b, "weaviate.class: %s\n", c.ClassName)
	fmt.Fprintf(&b, "documents.path: %s\n", c.DocumentsPath)
	fmt.Fprintf(&b, "chunking.size: %d\n", c.ChunkSize)
	fmt.Fprintf(&b, "chunking.overlap: %d\n", c.ChunkOverlap)
	fmt.Fprintf(&b, "retrieval.k: %d\n", c.RetrievalK)
	fmt.Fprintf(&b, "retrieval.threshold: %.2f\n", c.ScoreThreshold)
	fmt.Fprintf(&b, "retrieval.batch_size: %d\n", c.BatchSize)
	return b.String()
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8) + s[len(s)-4:]
}
