package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/provider"
	"github.com/searchwise/search-gateway/pkg/ratelimit"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupHandler(p provider.Provider) (*Handler, *ratelimit.QueryLimiter) {
	limiter := ratelimit.NewQueryLimiter(time.Second)
	cfg := &config.Config{
		Provider:   p.Name(),
		Model:      "test-model",
		MaxResults: 5,
		MaxTokens:  600,
	}
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewHandler(NewRouter(p), limiter, tracer, cfg), limiter
}

func summaryBody(t *testing.T, query string) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"query": query,
		"results": []map[string]string{
			{"title": "t", "url": "u", "snippet": "s"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func decodeChunks(t *testing.T, body string) []chunkLine {
	t.Helper()
	var chunks []chunkLine
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		var c chunkLine
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func TestHandleSummaryStreams(t *testing.T) {
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			ch := make(chan *provider.Chunk, 4)
			ch <- &provider.Chunk{Content: "Go is "}
			ch <- &provider.Chunk{Content: "a language."}
			ch <- &provider.Chunk{Done: true}
			close(ch)
			return ch, nil
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	chunks := decodeChunks(t, w.Body.String())
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %s", len(chunks), w.Body.String())
	}
	if chunks[0].Content != "Go is " || chunks[1].Content != "a language." {
		t.Errorf("unexpected content chunks: %+v", chunks)
	}
	if !chunks[2].Done {
		t.Error("last chunk must be done")
	}
}

func TestHandleSummarySynthesizesDone(t *testing.T) {
	// Provider channel closes without a terminal chunk.
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			ch := make(chan *provider.Chunk, 1)
			ch <- &provider.Chunk{Content: "partial"}
			close(ch)
			return ch, nil
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	chunks := decodeChunks(t, w.Body.String())
	last := chunks[len(chunks)-1]
	if !last.Done {
		t.Errorf("stream must always terminate with done, got %+v", last)
	}
}

func TestHandleSummaryMidStreamError(t *testing.T) {
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			ch := make(chan *provider.Chunk, 2)
			ch <- &provider.Chunk{Content: "some"}
			ch <- &provider.Chunk{Err: errors.New("provider exploded")}
			close(ch)
			return ch, nil
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	if w.Code != 200 {
		t.Fatalf("stream already open, expected 200, got %d", w.Code)
	}
	chunks := decodeChunks(t, w.Body.String())
	last := chunks[len(chunks)-1]
	if last.Error == "" {
		t.Errorf("expected terminal error chunk, got %+v", last)
	}
}

func TestHandleSummaryErrorBeforeStream(t *testing.T) {
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			return nil, errors.New("connection refused")
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	if w.Code != 502 {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestHandleSummaryNotConfigured(t *testing.T) {
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			return nil, provider.ErrNotConfigured
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	if w.Code != 400 {
		t.Errorf("configuration errors should be 400, got %d", w.Code)
	}
}

func TestHandleSummaryRateLimited(t *testing.T) {
	h, limiter := setupHandler(&mockProvider{})
	limiter.Throttled("what is go")

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)

	if w.Code != 429 {
		t.Errorf("expected 429, got %d", w.Code)
	}
}

func TestHandleSummaryBadRequest(t *testing.T) {
	h, _ := setupHandler(&mockProvider{})

	r := httptest.NewRequest("POST", "/api/summary", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)
	if w.Code != 400 {
		t.Errorf("expected 400 for invalid body, got %d", w.Code)
	}

	r = httptest.NewRequest("POST", "/api/summary", strings.NewReader(`{"query":"","results":[]}`))
	w = httptest.NewRecorder()
	h.HandleSummary(w, r)
	if w.Code != 400 {
		t.Errorf("expected 400 for missing fields, got %d", w.Code)
	}
}

func TestHandleSummaryThrottleKeyIgnoresMarkup(t *testing.T) {
	p := &mockProvider{
		streamFunc: func(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
			ch := make(chan *provider.Chunk, 1)
			ch <- &provider.Chunk{Done: true}
			close(ch)
			return ch, nil
		},
	}
	h, _ := setupHandler(p)

	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is <b>go</b>"))
	w := httptest.NewRecorder()
	h.HandleSummary(w, r)
	if w.Code != 200 {
		t.Fatalf("first request: status = %d", w.Code)
	}

	// Same query modulo markup keys the same limiter entry.
	r = httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	w = httptest.NewRecorder()
	h.HandleSummary(w, r)
	if w.Code != 429 {
		t.Errorf("second request: status = %d, want 429", w.Code)
	}
}

// noFlushWriter hides the recorder's Flush method.
type noFlushWriter struct {
	rec *httptest.ResponseRecorder
}

func (w *noFlushWriter) Header() http.Header         { return w.rec.Header() }
func (w *noFlushWriter) Write(b []byte) (int, error) { return w.rec.Write(b) }
func (w *noFlushWriter) WriteHeader(code int)        { w.rec.WriteHeader(code) }

func TestHandleSummaryRequiresFlusher(t *testing.T) {
	h, _ := setupHandler(&mockProvider{})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/summary", summaryBody(t, "what is go"))
	h.HandleSummary(&noFlushWriter{rec: rec}, r)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 before any stream bytes", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want the JSON error shape", got)
	}
}

func TestBuildRequestProviderFamilies(t *testing.T) {
	h, _ := setupHandler(&mockProvider{name: "ollama"})
	req := h.buildRequest("q", makeResults(1))
	if req.Prompt == "" || len(req.Messages) != 0 {
		t.Error("generate-style provider should get a flat prompt")
	}

	h, _ = setupHandler(&mockProvider{name: "openrouter"})
	req = h.buildRequest("q", makeResults(1))
	if len(req.Messages) == 0 || req.Prompt != "" {
		t.Error("chat-style provider should get role-tagged messages")
	}
}
