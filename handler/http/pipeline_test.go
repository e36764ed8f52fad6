package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	handler "ragmill/handler/http"
	"ragmill/src/config"
	"ragmill/src/core/pipeline"
	"ragmill/src/rag"
	"ragmill/src/retrieval"
)

type stubLoader struct {
	docs []rag.Document
}

func (l *stubLoader) LoadFromDirectory(_ context.Context, _ string) ([]rag.Document, []error, error) {
	return l.docs, nil, nil
}

func (l *stubLoader) LoadFile(_ context.Context, _ string) ([]rag.Document, []error, error) {
	return l.docs, nil, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i := 0; i < len(text); i++ {
		v[i%4] += float32(text[i])
	}
	if len(text) == 0 {
		v[0] = 1
	}
	return v, nil
}

type stubGenerator struct{}

func (stubGenerator) Answer(_ context.Context, question string, _ []rag.ScoredChunk, _ string, _ float64) (string, error) {
	return "answer: " + question, nil
}

func (stubGenerator) Model() string { return "test-model" }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		VectorStore:    "memory",
		DocumentsPath:  "./data",
		ChunkSize:      500,
		ChunkOverlap:   100,
		RetrievalK:     4,
		ScoreThreshold: 0,
		Temperature:    0.2,
	}
	p := pipeline.New(
		cfg,
		&stubLoader{docs: []rag.Document{
			{ID: "doc.txt", Text: strings.Repeat("hello world. ", 40), Metadata: map[string]string{"source": "doc.txt"}},
		}},
		retrieval.NewMemoryRetriever(stubEmbedder{}),
		stubGenerator{},
	)

	r := gin.New()
	handler.NewHandler(p).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQueryBeforeLoadReturnsConflict(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{"question": "anything"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp handler.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "DOCUMENTS_NOT_PROCESSED" {
		t.Errorf("error code = %q", resp.Code)
	}
}

func TestProcessBeforeLoadReturnsConflict(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/documents/process", gin.H{})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp handler.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "NO_DOCUMENTS_LOADED" {
		t.Errorf("error code = %q", resp.Code)
	}
}

func TestLoadProcessQueryFlow(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/documents/load", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/documents/process", gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d: %s", w.Code, w.Body.String())
	}
	var proc struct {
		ChunksCreated int `json:"chunksCreated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &proc); err != nil {
		t.Fatalf("decode process response: %v", err)
	}
	if proc.ChunksCreated == 0 {
		t.Fatalf("no chunks created")
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/query", gin.H{"question": "what is this", "k": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("query status = %d: %s", w.Code, w.Body.String())
	}
	var result rag.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode query response: %v", err)
	}
	if result.Answer == "" || result.NumSources > 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestProcessRejectsUnknownStrategy(t *testing.T) {
	r := newTestRouter()

	doJSON(t, r, http.MethodPost, "/api/v1/documents/load", gin.H{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/documents/process", gin.H{"strategy": "semantic"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp handler.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "BAD_REQUEST" {
		t.Errorf("error code = %q", resp.Code)
	}
}

func TestBatchQueryReportsPerQuestionResults(t *testing.T) {
	r := newTestRouter()

	doJSON(t, r, http.MethodPost, "/api/v1/documents/load", gin.H{})
	doJSON(t, r, http.MethodPost, "/api/v1/documents/process", gin.H{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/query/batch", gin.H{
		"questions": []string{"q1", "q2"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch status = %d: %s", w.Code, w.Body.String())
	}
	var items []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode batch response: %v", err)
	}
	if len(items) != 2 || items[0].Question != "q1" || items[1].Question != "q2" {
		t.Fatalf("batch order not preserved: %+v", items)
	}
	for _, it := range items {
		if it.Answer == "" || it.Error != "" {
			t.Errorf("unexpected item: %+v", it)
		}
	}
}

func TestBatchQueryRejectsMissingQuestions(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/v1/query/batch", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestResetAndStats(t *testing.T) {
	r := newTestRouter()

	doJSON(t, r, http.MethodPost, "/api/v1/documents/load", gin.H{})
	doJSON(t, r, http.MethodPost, "/api/v1/documents/process", gin.H{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/reset", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats rag.PipelineStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.State != "empty" || stats.DocumentsLoaded != 0 {
		t.Errorf("stats after reset: %+v", stats)
	}
}

func TestHealthReportsState(t *testing.T) {
	r := newTestRouter()

	w := doJSON(t, r, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp["status"] != "ok" || resp["state"] != "empty" {
		t.Errorf("health = %v", resp)
	}
}

func TestHealthReportsFailingComponent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		VectorStore:   "memory",
		ChunkSize:     500,
		ChunkOverlap:  100,
		RetrievalK:    4,
		Temperature:   0.2,
		DocumentsPath: "./data",
	}
	p := pipeline.New(cfg, &stubLoader{}, retrieval.NewMemoryRetriever(stubEmbedder{}), stubGenerator{})

	h := handler.NewHandler(p)
	h.AddHealthCheck("embedder", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	h.AddHealthCheck("vectorstore", func(ctx context.Context) error { return nil })

	r := gin.New()
	h.RegisterRoutes(r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health status = %d, want 503", w.Code)
	}
	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Components["vectorstore"] != "ok" || resp.Components["embedder"] == "ok" {
		t.Errorf("components = %v", resp.Components)
	}
}
