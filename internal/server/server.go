// Package server exposes the council pipeline over HTTP, including the
// SSE streaming endpoint the frontend consumes.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/themacmarketer/llm-council/internal/config"
	"github.com/themacmarketer/llm-council/internal/council"
	"github.com/themacmarketer/llm-council/internal/storage"
	"github.com/themacmarketer/llm-council/internal/webfetch"
)

// Server wires the pipeline, storage, and fetcher behind gin routes.
type Server struct {
	cfg      config.Config
	pipeline *council.Pipeline
	store    *storage.Store
	fetcher  *webfetch.Fetcher
	log      zerolog.Logger
}

// New constructs a Server.
func New(cfg config.Config, pipeline *council.Pipeline, store *storage.Store, fetcher *webfetch.Fetcher, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		store:    store,
		fetcher:  fetcher,
		log:      logger.With().Str("component", "server").Logger(),
	}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxRequestBodySize)
		c.Next()
	})

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  s.allowOrigin,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	router.GET("/", s.healthCheck)
	router.GET("/api/conversations", s.listConversations)
	router.POST("/api/conversations", s.createConversation)
	router.GET("/api/conversations/:id", s.getConversation)
	router.POST("/api/conversations/:id/message", s.sendMessage)
	router.POST("/api/conversations/:id/message/stream", s.sendMessageStream)
	router.POST("/api/fetch-url", s.fetchURL)

	return router
}

// Run starts the HTTP server on the configured port.
func (s *Server) Run() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting LLM Council backend")
	return s.Router().Run(fmt.Sprintf(":%d", s.cfg.Port))
}

// allowOrigin accepts configured origins in production and any localhost
// origin in development (no origins configured).
func (s *Server) allowOrigin(origin string) bool {
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		for _, allowed := range s.cfg.CORSAllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}
	return strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1")
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}
