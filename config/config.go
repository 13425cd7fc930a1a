package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Engine names understood by the extraction schemas.
const (
	EngineSearXNG = "searxng"
	Engine4get    = "4get"
)

// Summary modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
	ModeSmart  = "smart"
)

type Config struct {
	// Server
	Port       string // default: 8080
	TrustProxy bool   // honor X-Forwarded-Host/Proto when deriving the external URL

	// Upstream search engine
	EngineName string // "searxng" or "4get"
	EngineURL  string // origin of the proxied engine, no trailing slash

	// Completion providers
	Provider          string // "openrouter", "ollama" or "claude"
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	AnthropicAPIKey   string
	OllamaURL         string
	Model             string // summarization model id
	ClassifierModel   string // smart-mode classification model id, empty disables

	// Summarization policy
	SummaryMode   string // "manual", "auto" or "smart"
	MinKeywords   int    // auto mode: minimum query word count
	MinResults    int    // auto mode: minimum result count
	ExcludeWords  []string
	OverrideWords []string
	MaxResults    int // top results fed into the prompt
	MaxTokens     int

	// Proxy behavior
	ModifyCSP       bool
	RateLimitWindow time.Duration

	// Templates
	TemplatesDir string

	// Observability
	OTELExporterType     string  // "stdout" or "otlp"
	OTELExporterEndpoint string  // default: "localhost:4317"
	OTELSampleRatio      float64 // head sampling ratio, 0..1
}

var defaultExcludeWords = []string{
	"github", "gitlab", "download", "repository", "repo", "link", "url",
	"tool", "software", "program", "app", "library", "framework",
}

var defaultOverrideWords = []string{
	"what", "why", "how", "when", "where", "who", "which",
	"can", "will", "would", "could", "should",
	"is", "are", "was", "were", "do", "does", "did",
	"example", "explain", "simplify", "eli5",
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		TrustProxy:           getEnvBool("TRUST_PROXY", false),
		EngineName:           getEnv("ENGINE_NAME", EngineSearXNG),
		EngineURL:            os.Getenv("ENGINE_URL"),
		Provider:             getEnv("AI_PROVIDER", "openrouter"),
		OpenRouterAPIKey:     os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		Model:                os.Getenv("MODEL_ID"),
		ClassifierModel:      os.Getenv("CLASSIFIER_MODEL_ID"),
		SummaryMode:          getEnv("SUMMARY_MODE", ModeManual),
		ExcludeWords:         getEnvWords("EXCLUDE_WORDS", defaultExcludeWords),
		OverrideWords:        getEnvWords("EXCLUDE_OVERRIDES", defaultOverrideWords),
		ModifyCSP:            getEnvBool("MODIFY_CSP_HEADERS", false),
		TemplatesDir:         getEnv("TEMPLATES_DIR", "templates"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.MinKeywords, err = getEnvInt("MIN_KEYWORDS", 3); err != nil {
		return nil, err
	}
	if cfg.MinResults, err = getEnvInt("MIN_RESULTS", 3); err != nil {
		return nil, err
	}
	if cfg.MaxResults, err = getEnvInt("MAX_RESULTS_FOR_SUMMARY", 5); err != nil {
		return nil, err
	}
	if cfg.MaxTokens, err = getEnvInt("MAX_TOKENS", 600); err != nil {
		return nil, err
	}

	windowMs, err := getEnvInt("RATE_LIMIT_MS", 1000)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = time.Duration(windowMs) * time.Millisecond

	if cfg.OTELSampleRatio, err = getEnvFloat("OTEL_SAMPLE_RATIO", 1.0); err != nil {
		return nil, err
	}
	if cfg.OTELSampleRatio < 0 || cfg.OTELSampleRatio > 1 {
		return nil, fmt.Errorf("OTEL_SAMPLE_RATIO must be between 0 and 1")
	}

	// Validation
	if cfg.EngineURL == "" {
		return nil, fmt.Errorf("ENGINE_URL is required")
	}
	if _, err := url.Parse(cfg.EngineURL); err != nil {
		return nil, fmt.Errorf("invalid ENGINE_URL: %w", err)
	}
	cfg.EngineURL = strings.TrimRight(cfg.EngineURL, "/")
	if cfg.EngineName != EngineSearXNG && cfg.EngineName != Engine4get {
		return nil, fmt.Errorf("unknown ENGINE_NAME %q", cfg.EngineName)
	}
	switch cfg.SummaryMode {
	case ModeManual, ModeAuto, ModeSmart:
	default:
		return nil, fmt.Errorf("unknown SUMMARY_MODE %q", cfg.SummaryMode)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return value == "true" || value == "1"
}

func getEnvWords(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var words []string
	for _, w := range strings.Split(value, ",") {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			words = append(words, w)
		}
	}
	return words
}
