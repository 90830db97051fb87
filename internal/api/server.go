// Package api serves the engine over HTTP.
//
//	POST /api/render     render a spec, a call log or a TOML spec
//	GET  /api/runs       list stored runs, newest first
//	GET  /api/runs/{id}  fetch a stored run
//	GET  /health         liveness and build info
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/matzehuels/maidr/pkg/cache"
	"github.com/matzehuels/maidr/pkg/pipeline"
	"github.com/matzehuels/maidr/pkg/store"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	runner  *pipeline.Runner
	logger  *log.Logger
	cfg     Config
	limiter *rate.Limiter
}

// NewServer creates and configures the HTTP server.
func NewServer(runner *pipeline.Runner, logger *log.Logger, cfg Config) *Server {
	s := &Server{
		runner:  runner,
		logger:  logger,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.handleHealth)

	r.With(rateLimit(s.limiter, s.logger)).Post("/api/render", s.handleRender)
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{id}", s.handleGetRun)

	s.router = r
}

// NewRunner builds the pipeline runner the configuration describes: a
// Redis or file cache and an optional run store.
func NewRunner(ctx context.Context, cfg Config, logger *log.Logger) (*pipeline.Runner, error) {
	var c cache.Cache
	switch {
	case cfg.RedisURL != "":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse MAIDR_REDIS_URL: %w", err)
		}
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		})
		if err != nil {
			return nil, err
		}
		c = rc
		logger.Info("using redis cache", "addr", opt.Addr)
	case cfg.CacheDir != "":
		fc, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		c = fc
		logger.Info("using file cache", "dir", fc.Dir())
	}

	var keyer cache.Keyer
	if cfg.CacheScope != "" {
		keyer = cache.NewScopedKeyer(nil, cfg.CacheScope+":")
	}
	runner := pipeline.NewRunner(c, keyer, logger)

	if cfg.StoreDSN != "" {
		st, err := store.Open(ctx, cfg.StoreDSN)
		if err != nil {
			runner.Close()
			return nil, fmt.Errorf("open run store: %w", err)
		}
		runner.Store = st
		logger.Info("recording runs", "store", fmt.Sprintf("%T", st))
	}
	return runner, nil
}
