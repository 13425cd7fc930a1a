package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/extract"
	"github.com/searchwise/search-gateway/internal/provider"
	"github.com/searchwise/search-gateway/pkg/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// streamTimeout accommodates slow model generation; it is much longer than
// the page-path timeouts on purpose.
const streamTimeout = 120 * time.Second

// Handler streams AI summaries over the gateway's NDJSON chunk protocol:
// one of {"content": string}, {"done": true} or {"error": string} per line.
type Handler struct {
	router  *Router
	limiter *ratelimit.QueryLimiter
	tracer  trace.Tracer

	providerName string
	model        string
	maxResults   int
	maxTokens    int
}

func NewHandler(router *Router, limiter *ratelimit.QueryLimiter, tracer trace.Tracer, cfg *config.Config) *Handler {
	return &Handler{
		router:       router,
		limiter:      limiter,
		tracer:       tracer,
		providerName: cfg.Provider,
		model:        cfg.Model,
		maxResults:   cfg.MaxResults,
		maxTokens:    cfg.MaxTokens,
	}
}

type summaryRequest struct {
	Query   string           `json:"query"`
	Results []extract.Result `json:"results"`
}

type chunkLine struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := StripTags(strings.TrimSpace(req.Query))
	if query == "" || len(req.Results) == 0 {
		writeJSONError(w, http.StatusBadRequest, "missing query or results")
		return
	}

	// The summary endpoint is the only writer of the limiter table; the page
	// path peeks. A double-submitted summary call inside the window lands here.
	if h.limiter.Throttled(query) {
		log.Info().Str("query", query).Msg("rate limited summary request")
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, "summary.stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("provider", h.providerName),
		attribute.String("model", h.model),
	)

	ch, err := h.router.ExecuteStream(ctx, h.providerName, h.buildRequest(query, req.Results))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, provider.ErrNotConfigured) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("summary stream failed to start")
		writeJSONError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	chunkCount := 0
	for chunk := range ch {
		switch {
		case chunk.Err != nil:
			log.Error().Err(chunk.Err).Str("request_id", requestID).Msg("summary stream aborted")
			_ = enc.Encode(chunkLine{Error: chunk.Err.Error()})
			flusher.Flush()
			return
		case chunk.Done:
			log.Debug().Str("request_id", requestID).Int("chunks", chunkCount).Msg("summary stream completed")
			_ = enc.Encode(chunkLine{Done: true})
			flusher.Flush()
			return
		case chunk.Content != "":
			chunkCount++
			_ = enc.Encode(chunkLine{Content: chunk.Content})
			flusher.Flush()
		}
	}

	// Channel closed without a terminal chunk; the outbound protocol is
	// always well-terminated regardless.
	_ = enc.Encode(chunkLine{Done: true})
	flusher.Flush()
}

func (h *Handler) buildRequest(query string, results []extract.Result) *provider.Request {
	now := time.Now()
	req := &provider.Request{
		Model:     h.model,
		MaxTokens: h.maxTokens,
		Stream:    true,
	}
	if h.providerName == "ollama" {
		req.Prompt = BuildPrompt(query, results, h.maxResults, h.maxTokens, now)
		req.Temperature = 0.6
		req.Stop = []string{"\n\n\n"}
	} else {
		req.Messages = BuildMessages(query, results, h.maxResults, h.maxTokens, now)
		req.Temperature = 0.7
	}
	return req
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
