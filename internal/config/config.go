// Package config loads runtime configuration for the LLM Council backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration. It is constructed once by Load
// and never mutated afterwards; components receive it (or a subset) by value.
type Config struct {
	// OpenRouterAPIKey authenticates requests to the model provider.
	OpenRouterAPIKey string

	// OpenRouterAPIURL is the chat-completions endpoint.
	OpenRouterAPIURL string

	// CouncilModels are queried in parallel during Stages 1 and 2.
	// Their order is significant: it fixes response ordering and
	// anonymization labels for a request.
	CouncilModels []string

	// ChairmanModel produces the final synthesis in Stage 3.
	ChairmanModel string

	// ResearchModel is the web-search-capable model used for Stage 0
	// decomposition and research, and for title generation.
	ResearchModel string

	// ChairmanRanks includes the chairman as an additional Stage-2 evaluator.
	ChairmanRanks bool

	// DataDir is the directory for conversation storage.
	DataDir string

	// Port the HTTP server listens on.
	Port int

	// CORSAllowedOrigins restricts browser origins in production.
	// Empty means development mode: any localhost origin is accepted.
	CORSAllowedOrigins []string

	// MaxRequestBodySize caps inbound request bodies.
	MaxRequestBodySize int64

	// Timeouts per call class.
	ModelQueryTimeout time.Duration
	DecomposeTimeout  time.Duration
	ResearchTimeout   time.Duration
	TitleGenTimeout   time.Duration

	// FetchCacheTTL is the time-to-live for fetched URL content.
	FetchCacheTTL time.Duration
}

// Default model lineup. Overridable via environment.
var defaultCouncilModels = []string{
	"openai/gpt-5.1",
	"google/gemini-3-pro-preview",
	"anthropic/claude-sonnet-4.5",
	"x-ai/grok-4",
}

const (
	defaultChairmanModel = "google/gemini-3-pro-preview"
	defaultResearchModel = "perplexity/sonar"
	defaultAPIURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultDataDir       = "data/conversations"
	defaultPort          = 8001
)

// Load reads configuration from the environment, preceded by a best-effort
// .env load from the working directory or its parent.
func Load() (Config, error) {
	loadDotEnv()

	cfg := Config{
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterAPIURL:   envOr("OPENROUTER_API_URL", defaultAPIURL),
		CouncilModels:      defaultCouncilModels,
		ChairmanModel:      envOr("CHAIRMAN_MODEL", defaultChairmanModel),
		ResearchModel:      envOr("RESEARCH_MODEL", defaultResearchModel),
		ChairmanRanks:      os.Getenv("CHAIRMAN_RANKS") == "true",
		DataDir:            envOr("DATA_DIR", defaultDataDir),
		Port:               defaultPort,
		MaxRequestBodySize: 1 << 20,
		ModelQueryTimeout:  120 * time.Second,
		DecomposeTimeout:   20 * time.Second,
		ResearchTimeout:    30 * time.Second,
		TitleGenTimeout:    30 * time.Second,
		FetchCacheTTL:      5 * time.Minute,
	}

	if cfg.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}

	if models := splitList(os.Getenv("COUNCIL_MODELS")); len(models) > 0 {
		cfg.CouncilModels = models
	}

	if origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.CORSAllowedOrigins = origins
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = p
	}

	return cfg, nil
}

// loadDotEnv probes the usual locations for a .env file. Absence is not an
// error: production deployments configure through the environment directly.
func loadDotEnv() {
	for _, envPath := range []string{".env", "../.env"} {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err != nil {
			continue
		}
		if err := godotenv.Load(absPath); err == nil {
			log.Debug().Str("path", absPath).Msg("loaded .env")
			return
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList parses a comma-separated environment value, dropping empties.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
