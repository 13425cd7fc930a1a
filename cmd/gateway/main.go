package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/middleware"
	"github.com/searchwise/search-gateway/internal/provider"
	"github.com/searchwise/search-gateway/internal/provider/claude"
	"github.com/searchwise/search-gateway/internal/provider/ollama"
	"github.com/searchwise/search-gateway/internal/provider/openrouter"
	"github.com/searchwise/search-gateway/internal/proxy"
	"github.com/searchwise/search-gateway/internal/summary"
	"github.com/searchwise/search-gateway/internal/telemetry"
	"github.com/searchwise/search-gateway/internal/template"
	"github.com/searchwise/search-gateway/pkg/ratelimit"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer("search-gateway", cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracer")
	}
	defer shutdownTracer()
	tracer := otel.GetTracerProvider().Tracer("search-gateway")

	// 3. Templates
	templates := template.NewStore(cfg.TemplatesDir)
	if err := templates.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load summary templates")
	}

	// 4. Providers and summary router
	providers := []provider.Provider{
		openrouter.New(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, ""),
		ollama.New(cfg.OllamaURL),
		claude.New(cfg.AnthropicAPIKey),
	}
	router := summary.NewRouter(providers...)

	// 5. Rate limiter
	limiter := ratelimit.NewQueryLimiter(cfg.RateLimitWindow)

	// 6. Decision engine (smart mode rides the configured provider)
	var classifier *summary.Classifier
	if cfg.SummaryMode == config.ModeSmart && cfg.ClassifierModel != "" {
		p, err := router.Provider(cfg.Provider)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid AI_PROVIDER")
		}
		classifier = summary.NewClassifier(p, cfg.ClassifierModel)
	}
	engine := summary.NewEngine(cfg, classifier)

	// 7. Proxy pipeline
	fetcher, err := proxy.NewFetcher(cfg.EngineURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ENGINE_URL")
	}
	rewriter, err := proxy.NewRewriter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ENGINE_URL")
	}
	pageHandler := proxy.NewHandler(fetcher, rewriter, engine, limiter, templates, tracer, cfg)
	summaryHandler := summary.NewHandler(router, limiter, tracer, cfg)

	// 8. Routes
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/opensearch.xml", pageHandler.HandleOpenSearch)
	r.Post("/api/summary", summaryHandler.HandleSummary)

	r.Get("/search", pageHandler.HandleSearch)
	r.Get("/ac", pageHandler.HandleAutocomplete)

	if cfg.EngineName == config.Engine4get {
		r.Get("/settings", pageHandler.HandleGeneric)
		r.Post("/settings", pageHandler.HandleGeneric)
		for _, endpoint := range []string{"images", "videos", "news", "music"} {
			r.Get("/"+endpoint, pageHandler.Handle4getEndpoint(endpoint))
		}
		r.Get("/", pageHandler.HandleSearch)
	} else {
		r.Get("/preferences", pageHandler.HandleGeneric)
		r.Post("/preferences", pageHandler.HandleGeneric)
	}

	// Everything else is proxied as-is
	r.NotFound(pageHandler.HandleGeneric)

	// 9. Serve with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("engine", cfg.EngineName).
			Str("upstream", cfg.EngineURL).
			Str("provider", cfg.Provider).
			Str("model", cfg.Model).
			Str("mode", cfg.SummaryMode).
			Msg("search gateway starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
