// Package server exposes the query engine over a small HTTP API:
// POST /api/query executes KQL, GET /api/health reports liveness, and
// GET /api/schemas lists the registered schemas.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kestreldb/kestrel/config"
	"github.com/kestreldb/kestrel/kql"
	"github.com/kestreldb/kestrel/sym"
	"github.com/kestreldb/kestrel/version"
)

// Server wires the engine to HTTP transport.
type Server struct {
	engine     *kql.Engine
	cfg        *config.Config
	limiter    *clientLimiter
	httpServer *http.Server
	logger     *zap.SugaredLogger
}

// New creates a server around an engine.
func New(engine *kql.Engine, cfg *config.Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = newClientLimiter(cfg.Server.RateLimitRPS)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.withLimit(s.handleQuery))
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/schemas", s.withLimit(s.handleSchemas))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Infow("Server listening",
			"addr", s.httpServer.Addr,
			"version", version.Version,
			"symbol", sym.Server,
		)
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Infow("Server shutting down", "symbol", sym.Server)
	}
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

// withLimit applies the per-client rate limit when one is configured.
func (s *Server) withLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
