package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/analytics"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, pipeline *scoring.Pipeline, stats *analytics.Service, repo domain.Repository, cache domain.Cache, version string) *Server {
	handler := NewHandler(pipeline, stats, repo, cache, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Service endpoints
	router.Get("/", handler.Index)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Get("/model-info", handler.ModelInfo)
	router.Get("/example", handler.Example)

	// Scoring
	router.Post("/predict", handler.Predict)
	router.Post("/predict/batch", handler.PredictBatch)

	// Scored transactions
	router.Route("/transactions", func(r chi.Router) {
		r.Get("/", handler.ListTransactions)
		r.Get("/{id}", handler.GetTransaction)
		r.Post("/{id}/review", handler.ReviewTransaction)
	})

	// Fraud alerts
	router.Route("/alerts", func(r chi.Router) {
		r.Get("/", handler.ListAlerts)
		r.Get("/{id}", handler.GetAlert)
		r.Post("/{id}/update", handler.UpdateAlert)
	})

	// Dashboard analytics
	router.Route("/stats", func(r chi.Router) {
		r.Get("/dashboard", handler.Dashboard)
		r.Get("/trends", handler.Trends)
		r.Get("/hotspots", handler.Hotspots)
		r.Get("/risk-distribution", handler.RiskDistribution)
		r.Get("/transaction-types", handler.TransactionTypes)
		r.Get("/alerts/summary", handler.AlertsSummary)
		r.Get("/recent-transactions", handler.RecentTransactions)
		r.Get("/daily/{date}", handler.DailyStats)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
