package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/extract"
	"github.com/searchwise/search-gateway/internal/inject"
	"github.com/searchwise/search-gateway/internal/summary"
	"github.com/searchwise/search-gateway/internal/template"
	"github.com/searchwise/search-gateway/pkg/ratelimit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const autocompleteTimeout = 10 * time.Second

var headPattern = regexp.MustCompile(`(?i)<head[^>]*>`)

// Handler drives the page pipeline: fetch, rewrite, extract, decide, inject.
// The whole path is synchronous; the response is written only once every
// stage has completed.
type Handler struct {
	fetcher   *Fetcher
	rewriter  *Rewriter
	schema    extract.Schema
	engine    *summary.Engine
	limiter   *ratelimit.QueryLimiter
	templates *template.Store
	tracer    trace.Tracer

	engineName   string
	model        string
	providerName string
	manualMode   bool

	acClient *http.Client
}

func NewHandler(
	fetcher *Fetcher,
	rewriter *Rewriter,
	engine *summary.Engine,
	limiter *ratelimit.QueryLimiter,
	templates *template.Store,
	tracer trace.Tracer,
	cfg *config.Config,
) *Handler {
	return &Handler{
		fetcher:      fetcher,
		rewriter:     rewriter,
		schema:       extract.ForEngine(cfg.EngineName),
		engine:       engine,
		limiter:      limiter,
		templates:    templates,
		tracer:       tracer,
		engineName:   cfg.EngineName,
		model:        cfg.Model,
		providerName: cfg.Provider,
		manualMode:   cfg.SummaryMode == config.ModeManual,
		acClient:     &http.Client{Timeout: autocompleteTimeout},
	}
}

// HandleSearch proxies the search page and overlays the summary widget when
// the decision engine and rate limiter both agree.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "proxy.search")
	defer span.End()
	r = r.WithContext(ctx)

	query := h.extractQuery(r)
	span.SetAttributes(attribute.String("engine", h.engineName))

	resp, err := h.fetcher.Forward(r, h.schema.SearchPath, h.upstreamQuery(r))
	if err != nil {
		h.writeProxyError(w, err)
		return
	}
	defer resp.Body.Close()

	external := h.rewriter.ExternalBaseURL(r)
	if h.writeRedirect(w, resp, external) {
		return
	}
	h.rewriter.CopyHeaders(w.Header(), resp.Header, external)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.writeProxyError(w, err)
		return
	}

	isHTML := strings.Contains(resp.Header.Get("Content-Type"), "text/html")
	if !isHTML || query == "" || !h.isGeneralSearch(r) {
		h.writePassthrough(w, resp.StatusCode, body, isHTML, external)
		return
	}

	html := string(body)
	if h.engineName == config.Engine4get {
		html = h.injectOpenSearchLink(html, external)
	}

	results := extract.Extract(html, h.schema)
	log.Debug().Int("results", len(results)).Str("engine", h.engineName).Msg("extracted results")

	outcome := h.engine.Decide(ctx, query, results)
	// Peek, don't record: the timestamp is written by the summary endpoint,
	// otherwise the page render would throttle its own widget's request.
	throttled := h.limiter.Peek(query)

	html = h.rewriter.RewriteBody(html)
	if throttled || !outcome.ShouldSummarize {
		if outcome.Reason != "" {
			log.Info().Str("reason", outcome.Reason).Msg("summary not generated")
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, html)
		return
	}

	tmpl := h.templates.Active(h.engineName)
	enhanced := inject.Inject(html, tmpl, query, results, h.schema, h.model, h.providerName, h.manualMode)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, enhanced)
}

// HandleGeneric proxies everything else: settings pages, static assets, image
// proxies. Binary payloads pass through untouched; HTML gets URL rewriting.
func (h *Handler) HandleGeneric(w http.ResponseWriter, r *http.Request) {
	resp, err := h.fetcher.Forward(r, r.URL.Path, r.URL.Query())
	if err != nil {
		h.writeProxyError(w, err)
		return
	}
	defer resp.Body.Close()

	external := h.rewriter.ExternalBaseURL(r)
	if h.writeRedirect(w, resp, external) {
		return
	}
	h.rewriter.CopyHeaders(w.Header(), resp.Header, external)

	if IsBinary(r.URL.Path, r.Header.Get("Accept")) {
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.writeProxyError(w, err)
		return
	}
	isHTML := strings.Contains(resp.Header.Get("Content-Type"), "text/html")
	h.writePassthrough(w, resp.StatusCode, body, isHTML, external)
}

// HandleAutocomplete forwards suggestion requests to the engine's own
// endpoint with a short timeout, degrading to an empty list on failure.
func (h *Handler) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.URL.Query().Get("s")
	}

	target := fmt.Sprintf("%s%s?%s=%s",
		strings.TrimRight(h.fetcher.upstream.String(), "/"),
		h.schema.AutocompletePath,
		h.schema.AutocompleteParam,
		url.QueryEscape(query),
	)

	req, err := http.NewRequestWithContext(r.Context(), "GET", target, nil)
	if err != nil {
		h.writeAutocompleteError(w, err)
		return
	}
	req.Header.Set("User-Agent", userAgent)
	if cookie := r.Header.Get("Cookie"); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := h.acClient.Do(req)
	if err != nil {
		h.writeAutocompleteError(w, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// Handle4getEndpoint proxies a 4get vertical (images, videos, news, music),
// renaming the gateway's q parameter to the s parameter 4get expects.
func (h *Handler) Handle4getEndpoint(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if q := query.Get("q"); q != "" {
			query.Del("q")
			query.Set("s", q)
		}
		r.URL.Path = "/" + endpoint
		r.URL.RawQuery = query.Encode()
		h.HandleGeneric(w, r)
	}
}

// HandleOpenSearch renders the OpenSearch descriptor against the per-request
// external base URL.
func (h *Handler) HandleOpenSearch(w http.ResponseWriter, r *http.Request) {
	baseURL := h.rewriter.ExternalBaseURL(r)
	description := "Metasearch engine with AI summaries"
	if h.engineName == config.Engine4get {
		description = "Privacy-focused search with AI summaries"
	}

	w.Header().Set("Content-Type", "application/opensearchdescription+xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<OpenSearchDescription xmlns="http://a9.com/-/spec/opensearch/1.1/">
  <ShortName>Search Gateway</ShortName>
  <Description>%s</Description>
  <InputEncoding>UTF-8</InputEncoding>
  <Image width="16" height="16" type="image/x-icon">%s/favicon.ico</Image>
  <Url type="text/html" method="GET" template="%s/search?q={searchTerms}"/>
  <Url type="application/x-suggestions+json" method="GET" template="%s/ac?q={searchTerms}"/>
</OpenSearchDescription>`, description, baseURL, baseURL, baseURL)
}

// extractQuery normalizes the inbound query the same way the summary endpoint
// does, so both paths key the rate limiter identically.
func (h *Handler) extractQuery(r *http.Request) string {
	q := r.URL.Query().Get("q")
	if q == "" {
		q = r.URL.Query().Get("s")
	}
	return summary.StripTags(strings.TrimSpace(q))
}

// upstreamQuery maps the gateway's query parameters onto the upstream
// engine's names (4get expects s where we accept q).
func (h *Handler) upstreamQuery(r *http.Request) url.Values {
	query := r.URL.Query()
	if h.schema.QueryParam == "q" {
		return query
	}
	if q := query.Get("q"); q != "" {
		query.Del("q")
		query.Set(h.schema.QueryParam, q)
	}
	return query
}

func (h *Handler) isGeneralSearch(r *http.Request) bool {
	if h.engineName == config.Engine4get {
		return true
	}
	categories := r.URL.Query().Get("categories")
	return categories == "" || categories == "general"
}

// writeRedirect surfaces upstream 3xx responses with a translated Location.
// Header copying happens before the substitution so ordering is
// deterministic.
func (h *Handler) writeRedirect(w http.ResponseWriter, resp *http.Response, externalURL string) bool {
	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return false
	}
	h.rewriter.CopyHeaders(w.Header(), resp.Header, externalURL)
	w.Header().Set("Location", h.rewriter.RewriteLocation(location, externalURL))
	w.WriteHeader(resp.StatusCode)
	return true
}

func (h *Handler) writePassthrough(w http.ResponseWriter, status int, body []byte, isHTML bool, externalURL string) {
	if isHTML {
		html := string(body)
		if h.engineName == config.Engine4get {
			html = h.injectOpenSearchLink(html, externalURL)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, h.rewriter.RewriteBody(html))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) injectOpenSearchLink(html, baseURL string) string {
	head := headPattern.FindString(html)
	if head == "" {
		return html
	}
	link := fmt.Sprintf(`<link rel="search" type="application/opensearchdescription+xml" title="Search Gateway" href="%s/opensearch.xml">`, baseURL)
	return strings.Replace(html, head, head+link, 1)
}

func (h *Handler) writeProxyError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("proxy error")
	http.Error(w, "Proxy Error: "+err.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeAutocompleteError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("suggestions proxy error")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("[]"))
}
