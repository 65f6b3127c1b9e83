// Package web provides the HTTP control surface for the pipeline: health,
// load history, and a trigger for background runs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/salespipe/internal/config"
	"github.com/JonMunkholm/salespipe/internal/core"
	"github.com/JonMunkholm/salespipe/internal/logging"
	"github.com/JonMunkholm/salespipe/internal/pipeline"
	"github.com/JonMunkholm/salespipe/internal/web/middleware"
)

// HistorySource lists run_log entries. Satisfied by *core.Loader.
type HistorySource interface {
	History(ctx context.Context, namespace string, limit int) ([]core.AuditRecord, error)
}

var _ HistorySource = (*core.Loader)(nil)

// Server is the HTTP server for the pipeline.
type Server struct {
	pipeline  *pipeline.Service
	history   HistorySource
	namespace string
	cfg       config.ServerConfig

	// runCtx outlives requests; background runs started over HTTP use it.
	runCtx context.Context

	router  *chi.Mux
	limiter *rateLimiter
	server  *http.Server
}

// NewServer creates a Server. Runs triggered over HTTP execute under ctx.
func NewServer(ctx context.Context, svc *pipeline.Service, history HistorySource, namespace string, cfg config.ServerConfig) *Server {
	s := &Server{
		pipeline:  svc,
		history:   history,
		namespace: namespace,
		cfg:       cfg,
		runCtx:    ctx,
		router:    chi.NewRouter(),
		// 60 requests per minute per IP
		limiter: newRateLimiter(ctx, 60, time.Minute),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)
	s.router.Use(s.limiter.middleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Load history
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/export", s.handleExportRuns)

		// Pipeline control
		r.Get("/pipeline/status", s.handlePipelineStatus)
		r.Get("/pipeline/last", s.handleLastRun)
		r.With(middleware.APIKeyAuth(s.cfg.APIKeys)).Post("/pipeline", s.handleTriggerRun)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.Addr(),
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("starting server", "addr", s.cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for an in-flight run to
// finish, both bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if s.pipeline.Gate().Status().Busy {
		logging.FromContext(ctx).Info("waiting for pipeline run to finish")
	}
	return s.pipeline.Gate().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
