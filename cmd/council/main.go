package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/themacmarketer/llm-council/internal/config"
	"github.com/themacmarketer/llm-council/internal/council"
	"github.com/themacmarketer/llm-council/internal/openrouter"
	"github.com/themacmarketer/llm-council/internal/server"
	"github.com/themacmarketer/llm-council/internal/storage"
	"github.com/themacmarketer/llm-council/internal/webfetch"
)

func main() {
	logger := setupLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Info().
		Strs("council_models", cfg.CouncilModels).
		Str("chairman", cfg.ChairmanModel).
		Str("research", cfg.ResearchModel).
		Msg("configuration loaded")

	client := openrouter.NewClient(cfg.OpenRouterAPIURL, cfg.OpenRouterAPIKey, logger)

	pipeline := council.New(council.Config{
		CouncilModels:    cfg.CouncilModels,
		ChairmanModel:    cfg.ChairmanModel,
		ResearchModel:    cfg.ResearchModel,
		ChairmanRanks:    cfg.ChairmanRanks,
		QueryTimeout:     cfg.ModelQueryTimeout,
		DecomposeTimeout: cfg.DecomposeTimeout,
		ResearchTimeout:  cfg.ResearchTimeout,
		TitleTimeout:     cfg.TitleGenTimeout,
	}, client, logger)

	store := storage.NewStore(cfg.DataDir, logger)
	fetcher := webfetch.NewFetcher(cfg.FetchCacheTTL, logger)

	srv := server.New(cfg, pipeline, store, fetcher, logger)
	if err := srv.Run(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

// setupLogger configures zerolog: pretty console output by default, JSON
// when LOG_FORMAT=json, level from LOG_LEVEL.
func setupLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := log.Logger.Level(level)
	if os.Getenv("LOG_FORMAT") != "json" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}
