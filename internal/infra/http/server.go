// Package http provides the HTTP server and routing for the API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostscout/api/internal/config"
	"github.com/hostscout/api/internal/infra/http/handler"
	"github.com/hostscout/api/internal/infra/http/middleware"
	"github.com/hostscout/api/pkg/logger"
)

// Handlers groups the handlers the server routes to.
type Handlers struct {
	Credential *handler.CredentialHandler
	Source     *handler.SourceHandler
	ScanJob    *handler.ScanJobHandler
	Report     *handler.ReportHandler
	Health     *handler.HealthHandler
}

// Server is the API HTTP server.
type Server struct {
	httpServer *http.Server
	config     *config.Config
	logger     *logger.Logger
}

// NewServer creates the HTTP server with the full middleware chain and
// all routes registered.
func NewServer(cfg *config.Config, h Handlers, log *logger.Logger) *Server {
	r := chi.NewRouter()

	r.Use(
		middleware.Recovery(log, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.Logger(log),
	)

	registerRoutes(r, h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  time.Minute,
		},
		config: cfg,
		logger: log,
	}
}

func registerRoutes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.Health)
	r.Get("/ready", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/credentials", func(r chi.Router) {
			r.Post("/", h.Credential.Create)
			r.Get("/", h.Credential.List)
			r.Get("/{id}", h.Credential.Get)
			r.Put("/{id}", h.Credential.Update)
			r.Delete("/{id}", h.Credential.Delete)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", h.Source.Create)
			r.Get("/", h.Source.List)
			r.Get("/{id}", h.Source.Get)
			r.Put("/{id}", h.Source.Update)
			r.Delete("/{id}", h.Source.Delete)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.ScanJob.Create)
			r.Get("/", h.ScanJob.List)
			r.Get("/{id}", h.ScanJob.Get)
			r.Delete("/{id}", h.ScanJob.Delete)
			r.Put("/{id}/pause", h.ScanJob.Pause)
			r.Put("/{id}/cancel", h.ScanJob.Cancel)
			r.Put("/{id}/restart", h.ScanJob.Restart)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/{id}/details", h.Report.GetDetails)
			r.Get("/{id}/deployments", h.Report.GetDeployments)
			r.Post("/merge/jobs", h.Report.CreateFromFacts)
			r.Put("/merge/jobs", h.Report.Merge)
		})
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
