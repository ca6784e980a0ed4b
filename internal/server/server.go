// Package server exposes the HTTP API: summarize a paper, chat about it,
// plus health and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/mohammad-safakhou/paperlens/config"
	"github.com/mohammad-safakhou/paperlens/internal/cache"
	"github.com/mohammad-safakhou/paperlens/internal/cache/inmemory"
	"github.com/mohammad-safakhou/paperlens/internal/cache/redisstore"
	"github.com/mohammad-safakhou/paperlens/internal/chat"
	"github.com/mohammad-safakhou/paperlens/internal/extract"
	"github.com/mohammad-safakhou/paperlens/internal/gateway"
	"github.com/mohammad-safakhou/paperlens/internal/summarizer"
)

type Server struct {
	store       cache.Store
	extractor   *extract.Extractor
	summarizer  *summarizer.Service
	chat        *chat.Service
	secret      []byte
	sessionTTL  time.Duration
	corsOrigins []string
	logger      *log.Logger
}

func New(store cache.Store, extractor *extract.Extractor, sum *summarizer.Service, ch *chat.Service, secret []byte, sessionTTL time.Duration, corsOrigins []string, logger *log.Logger) *Server {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	return &Server{
		store:       store,
		extractor:   extractor,
		summarizer:  sum,
		chat:        ch,
		secret:      secret,
		sessionTTL:  sessionTTL,
		corsOrigins: corsOrigins,
		logger:      logger,
	}
}

// Echo builds the configured router. Split from Run so tests can drive
// handlers through httptest without binding a port.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"success": false, "error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/summarize", s.handleSummarize)
	api.POST("/chat", s.handleChat)
	return e
}

// Run wires the whole service from config and blocks serving HTTP.
func Run(cfg *appconfig.Config) error {
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	provider := gateway.NewOpenAIClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.BaseURL,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.Timeout,
		cfg.LLM.MaxRetries,
		cfg.LLM.RetryBackoff,
	)
	extractor := extract.New(cfg.Extract.Timeout, cfg.Extract.MinTextChars, nil)
	sum := summarizer.New(provider, store, cfg.Summarize.MaxChunkChars, cfg.Summarize.Concurrency, nil)
	ch := chat.New(provider, store, cfg.Chat.MaxContextChars, nil)

	srv := New(store, extractor, sum, ch, []byte(cfg.Server.JWTSecret), cfg.Cache.SessionTTL, cfg.Server.CORSOrigins, nil)
	e := srv.Echo()
	srv.logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

func buildStore(cfg *appconfig.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return inmemory.New(cfg.Cache.DocumentTTL, cfg.Cache.SessionTTL, cfg.Cache.SweepSchedule, nil)
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return redisstore.New(ctx, cfg.Cache.Redis.Addr(), cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.DocumentTTL, cfg.Cache.SessionTTL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
