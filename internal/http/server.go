// Package http provides the API server, the metrics server, and their
// middleware.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	otelmetric "go.opentelemetry.io/otel/metric"

	accountsHTTP "github.com/allisson/fieldcrypt/internal/accounts/http"
	cryptoHTTP "github.com/allisson/fieldcrypt/internal/crypto/http"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// ServerOptions configures optional middleware of the API server.
type ServerOptions struct {
	// CORSEnabled enables the CORS middleware.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins.
	CORSAllowOrigins string
	// MeterProvider enables HTTP request metrics when non-nil.
	MeterProvider otelmetric.MeterProvider
	// MetricsNamespace prefixes metric names.
	MetricsNamespace string
}

// Server is the API server. Routes are registered at construction so the
// handler is ready for both ListenAndServe and httptest.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new API server wiring the crypto and account handlers.
func NewServer(
	host string,
	port int,
	logger *slog.Logger,
	cryptoHandler *cryptoHTTP.CryptoHandler,
	accountHandler *accountsHTTP.AccountHandler,
	opts ServerOptions,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))

	if corsMiddleware := createCORSMiddleware(opts.CORSEnabled, opts.CORSAllowOrigins, logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if opts.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(opts.MeterProvider, opts.MetricsNamespace))
	}

	router.GET("/health", cryptoHandler.HealthHandler)
	router.GET("/ready", cryptoHandler.ReadinessHandler)

	v1 := router.Group("/v1")
	{
		v1.GET("/crypto/status", cryptoHandler.StatusHandler)
		v1.POST("/accounts", accountHandler.CreateHandler)
		v1.GET("/accounts/:id", accountHandler.GetHandler)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting api server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start api server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.server.Shutdown(ctx)
}
