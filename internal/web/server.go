// Package web provides the read-only HTTP API over opened MESA runs.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/mesalogs/internal/config"
	mw "github.com/JonMunkholm/mesalogs/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the run API.
type Server struct {
	runs    *Registry
	router  *chi.Mux
	server  *http.Server
	metrics Metrics
	timeout time.Duration
	parses  *ParseLimiter
}

// Metrics is the optional Prometheus surface: request observation and the
// /metrics handler.
type Metrics interface {
	mw.RequestObserver
	Handler() http.Handler
}

// Option configures NewServer.
type Option func(*Server)

// WithMetrics mounts /metrics and records per-route request metrics.
func WithMetrics(m Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithRequestTimeout bounds each request. Default 60s.
func WithRequestTimeout(d time.Duration) Option { return func(s *Server) { s.timeout = d } }

// WithParseLimiter bounds concurrent profile parses. Default
// NewParseLimiter(0, 0).
func WithParseLimiter(l *ParseLimiter) Option { return func(s *Server) { s.parses = l } }

// NewServer creates a new Server instance.
func NewServer(runs *Registry, opts ...Option) *Server {
	s := &Server{
		runs:    runs,
		router:  chi.NewRouter(),
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parses == nil {
		s.parses = NewParseLimiter(0, 0)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	if s.metrics != nil {
		s.router.Use(mw.Metrics(s.metrics))
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.timeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)

		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)

			// History
			r.Get("/history/header", s.handleHistoryHeader)
			r.Get("/history/columns/{name}", s.handleHistoryColumn)
			r.Get("/history/rows/{row}", s.handleHistoryRow)

			// Profiles
			r.Get("/profiles", s.handleListProfiles)
			r.Get("/profiles/{profile}", s.handleGetProfile)
			r.Get("/profiles/{profile}/columns/{name}", s.handleProfileColumn)
			r.Get("/models/{model}/profile", s.handleModelProfile)

			// Selection
			r.Get("/select", s.handleSelect)
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondErrorJSON(w, UserMessage{
			Message: "No such endpoint",
			Action:  "See /api/runs",
			Code:    "ERR404",
			Status:  http.StatusNotFound,
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(cfg config.ServerConfig) error {
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	slog.Info("starting server", "addr", cfg.Addr(), "runs", s.runs.Len())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// The API serves JSON only
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}
