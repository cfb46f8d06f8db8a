// Package web provides the HTTP server for uploading CSV files, merging them
// and downloading or previewing the result.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/csvmerge/internal/config"
	"github.com/JonMunkholm/csvmerge/internal/merge"
	"github.com/JonMunkholm/csvmerge/internal/metrics"
	"github.com/JonMunkholm/csvmerge/internal/store"
	weblog "github.com/JonMunkholm/csvmerge/internal/web/middleware"
)

// RunStore persists merged rows. *store.Store implements it.
type RunStore interface {
	SaveRun(ctx context.Context, run store.Run, rows pgx.CopyFromSource) (int64, error)
	GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the merge UI and API.
type Server struct {
	cfg     *config.Config
	merger  *merge.Merger
	store   RunStore
	metrics *metrics.Recorder
	limiter *MergeLimiter
	router  *chi.Mux
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables saving merged rows. Without it, merges that ask to be
// stored fail with STO001.
func WithStore(st RunStore) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics records merges and serves /metrics.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = rec }
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		limiter: NewMergeLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}
	for _, opt := range opts {
		opt(s)
	}

	mergeOpts := []merge.Option{merge.WithLogger(slog.Default())}
	if s.metrics != nil {
		mergeOpts = append(mergeOpts, merge.WithRecorder(s.metrics))
	}
	s.merger = merge.New(mergeOpts...)

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/merge", s.handleMerge)
		r.Post("/preview", s.handlePreview)
		r.Get("/merges/{id}", s.handleGetRun)
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running merges to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Limiter returns the merge limiter.
func (s *Server) Limiter() *MergeLimiter {
	return s.limiter
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		// Views use inline styles only
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; form-action 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
