package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"ragmill/src/log"
	"ragmill/src/rag"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.7

	// MaxContextChars bounds the assembled context block. Chunks beyond
	// the bound are dropped whole, least-similar first.
	MaxContextChars = 12000
)

const DefaultSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use only the information from the context to answer. If the context does not
contain enough information to answer the question, say so explicitly.`

const insufficientContextAnswer = "I could not find relevant information in the loaded documents to answer this question."

// Generator produces answers grounded in retrieved chunks through an
// OpenAI-compatible chat endpoint.
type Generator struct {
	llm   llms.Model
	model string
}

var _ rag.Generator = (*Generator)(nil)

// NewGroqGenerator builds a Generator backed by Groq's OpenAI-compatible
// API.
func NewGroqGenerator(apiKey, baseURL, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return &Generator{llm: llm, model: model}, nil
}

// NewGenerator wraps an existing model client.
func NewGenerator(llm llms.Model, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

func (g *Generator) Model() string {
	return g.model
}

// Answer assembles the retrieved chunks into a context block and asks the
// model to answer from it. With no context at all there is nothing to
// ground an answer in, so a fixed insufficient-context response comes
// back instead of a model call.
func (g *Generator) Answer(ctx context.Context, question string, contextChunks []rag.ScoredChunk, systemPrompt string, temperature float64) (string, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	// Zero is a valid request (deterministic decoding); only a negative
	// value means unset.
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	contextBlock := BuildContext(contextChunks, MaxContextChars)
	if contextBlock == "" {
		return insufficientContextAnswer, nil
	}

	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextBlock, question)
	log.Debug("generating answer", "model", g.model, "context_chars", len(contextBlock))

	resp, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// BuildContext joins chunk texts in retrieval order, bounded by maxChars.
// Chunks are never cut mid-text: once the next chunk no longer fits, it
// and everything after it (the least similar results) are dropped.
func BuildContext(chunks []rag.ScoredChunk, maxChars int) string {
	var (
		b     strings.Builder
		total int
	)
	for _, sc := range chunks {
		text := strings.TrimSpace(sc.Chunk.Text)
		if text == "" {
			continue
		}
		sep := 0
		if total > 0 {
			sep = 2
		}
		if total+sep+len(text) > maxChars {
			break
		}
		if total > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
		total += sep + len(text)
	}
	return b.String()
}
