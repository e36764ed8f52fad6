package generation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"ragmill/src/core/generation"
	"ragmill/src/rag"
)

// fakeModel records the last request and returns a canned answer.
type fakeModel struct {
	lastMessages    []llms.MessageContent
	lastTemperature float64
	answer          string
	err             error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.lastMessages = messages
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	f.lastTemperature = opts.Temperature
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.answer}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return f.answer, f.err
}

func scored(texts ...string) []rag.ScoredChunk {
	out := make([]rag.ScoredChunk, len(texts))
	for i, t := range texts {
		out[i] = rag.ScoredChunk{Chunk: rag.Chunk{Text: t}, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestAnswerUsesRetrievedContext(t *testing.T) {
	fake := &fakeModel{answer: "The answer."}
	g := generation.NewGenerator(fake, "test-model")

	got, err := g.Answer(context.Background(), "What is it?", scored("first chunk", "second chunk"), "", 0.2)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "The answer." {
		t.Errorf("answer = %q", got)
	}
	if len(fake.lastMessages) != 2 {
		t.Fatalf("expected system + human messages, got %d", len(fake.lastMessages))
	}
	human := fake.lastMessages[1].Parts[0].(llms.TextContent).Text
	if !strings.Contains(human, "first chunk") || !strings.Contains(human, "second chunk") {
		t.Errorf("prompt missing context chunks: %q", human)
	}
	if !strings.Contains(human, "What is it?") {
		t.Errorf("prompt missing question: %q", human)
	}
}

func TestAnswerCustomSystemPrompt(t *testing.T) {
	fake := &fakeModel{answer: "ok"}
	g := generation.NewGenerator(fake, "test-model")

	custom := "You are an expert analyst."
	if _, err := g.Answer(context.Background(), "q", scored("ctx"), custom, 0.2); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	system := fake.lastMessages[0].Parts[0].(llms.TextContent).Text
	if system != custom {
		t.Errorf("system prompt = %q, want %q", system, custom)
	}
}

func TestAnswerTemperature(t *testing.T) {
	tests := []struct {
		name        string
		temperature float64
		want        float64
	}{
		{name: "zero is honored", temperature: 0, want: 0},
		{name: "explicit value passes through", temperature: 0.2, want: 0.2},
		{name: "negative means unset", temperature: -1, want: generation.DefaultTemperature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeModel{answer: "ok"}
			g := generation.NewGenerator(fake, "test-model")

			if _, err := g.Answer(context.Background(), "q", scored("ctx"), "", tt.temperature); err != nil {
				t.Fatalf("Answer: %v", err)
			}
			if fake.lastTemperature != tt.want {
				t.Errorf("temperature = %v, want %v", fake.lastTemperature, tt.want)
			}
		})
	}
}

func TestAnswerEmptyContextDoesNotCallModel(t *testing.T) {
	fake := &fakeModel{answer: "should not be used"}
	g := generation.NewGenerator(fake, "test-model")

	got, err := g.Answer(context.Background(), "q", nil, "", 0.2)
	if err != nil {
		t.Fatalf("empty context must not fail: %v", err)
	}
	if got == "" || got == fake.answer {
		t.Errorf("expected an insufficient-context answer, got %q", got)
	}
	if fake.lastMessages != nil {
		t.Errorf("model should not be called without context")
	}
}

func TestBuildContextDropsWholeChunksFromTail(t *testing.T) {
	chunks := scored(
		strings.Repeat("a", 50),
		strings.Repeat("b", 50),
		strings.Repeat("c", 50),
	)

	// 50 + 2 + 50 = 102; the third chunk would need 154 total.
	got := generation.BuildContext(chunks, 110)

	if !strings.Contains(got, "a") || !strings.Contains(got, "b") {
		t.Errorf("context should keep the most similar chunks: %q", got)
	}
	if strings.Contains(got, "c") {
		t.Errorf("least similar chunk must be dropped whole, got %q", got)
	}
	parts := strings.Split(got, "\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected 2 chunks in context, got %d", len(parts))
	}
	for _, p := range parts {
		if len(p) != 50 {
			t.Errorf("chunk was truncated mid-text: %d chars", len(p))
		}
	}
}

func TestBuildContextPreservesRetrievalOrder(t *testing.T) {
	got := generation.BuildContext(scored("alpha", "beta", "gamma"), 1000)
	if got != "alpha\n\nbeta\n\ngamma" {
		t.Errorf("context order = %q", got)
	}
}
