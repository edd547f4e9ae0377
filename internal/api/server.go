package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/opensource-finance/downpay/internal/domain"
	"github.com/opensource-finance/downpay/internal/metrics"
	"github.com/opensource-finance/downpay/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, registry *rules.Registry, m *metrics.Metrics, evaluationTTL time.Duration, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, registry, evaluationTTL, version)
	router := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", TenantIDHeader, RequestIDHeader, TraceIDHeader, "Authorization"},
		ExposedHeaders: []string{RequestIDHeader, TraceIDHeader},
		MaxAge:         300,
	}))
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	// API routes (tenant required)
	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Quote evaluation
		r.Post("/quotes/evaluate", handler.Evaluate)
		r.Post("/quotes/evaluate/batch", handler.EvaluateBatch)
		r.Post("/quotes/submit", handler.Submit)
		r.Get("/quotes/{id}/evaluations", handler.ListQuoteEvaluations)

		// Evaluation retrieval
		r.Get("/evaluations/{id}", handler.GetEvaluation)

		// Rule table management
		r.Get("/tables", handler.ListTables)
		r.Get("/tables/{id}", handler.GetTable)
		r.Post("/tables", handler.CreateTable)
		r.Delete("/tables/{id}", handler.DeleteTable)
		r.Post("/tables/reload", handler.ReloadTables)
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
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
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
