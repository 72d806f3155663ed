// Package server exposes the certificate inventory over a plain HTTP
// REST API for the dashboard frontend. It never talks to the upstream
// authority itself; refreshes are delegated to the injected refresh
// function, and the inventory snapshot is replaced wholesale.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/houzhh15/certindex/logging"
	"github.com/houzhh15/certindex/treated"
)

// RefreshFunc triggers one inventory refresh against the upstream.
// The trigger names who asked ("startup", "interval", "rescan").
type RefreshFunc func(ctx context.Context, trigger string) error

// Config configures the API server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Authentication; token wins over basic, neither means open.
	AuthToken string
	BasicUser string
	BasicPass string
}

// Server is the dashboard API server.
type Server struct {
	config    *Config
	inventory *Inventory
	store     treated.Store
	refresh   RefreshFunc
	logger    logging.Logger
	audit     logging.AuditLogger // optional

	server *http.Server
	router *gin.Engine
}

// New creates the API server. The audit logger may be nil, in which
// case export/download events are only on the structured log.
func New(
	config *Config,
	inventory *Inventory,
	store treated.Store,
	refresh RefreshFunc,
	logger logging.Logger,
	audit logging.AuditLogger,
) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	return &Server{
		config:    config,
		inventory: inventory,
		store:     store,
		refresh:   refresh,
		logger:    logger,
		audit:     audit,
		router:    router,
	}
}

// setupRoutes registers all routes. Health and metrics stay outside
// the auth boundary so probes and scrapers work unauthenticated.
func (s *Server) setupRoutes() error {
	s.router.Use(s.requestMiddleware())

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.store == nil {
		return fmt.Errorf("treated marker store is required")
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(s.authMiddleware())
	{
		v1.GET("/certs", s.handleList)
		v1.GET("/certs/:name", s.handleDetails)
		v1.GET("/stats", s.handleStats)
		v1.POST("/rescan", s.handleRescan)
		v1.GET("/export/csv", s.handleExportCSV)
		v1.GET("/export/json", s.handleExportJSON)

		v1.GET("/treated", s.handleTreatedList)
		v1.POST("/treated", s.handleTreatedSave)
		v1.DELETE("/treated/:id", s.handleTreatedDelete)
	}

	s.logger.Info("API routes registered")
	return nil
}

// Start runs the server, blocking until shutdown.
func (s *Server) Start() error {
	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("setup routes: %w", err)
	}

	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("Starting dashboard API server", "addr", s.config.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard API server failed: %w", err)
	}
	return nil
}

// StartAsync runs the server in the background.
func (s *Server) StartAsync() error {
	if err := s.setupRoutes(); err != nil {
		return fmt.Errorf("setup routes: %w", err)
	}

	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("Starting dashboard API server", "addr", s.config.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Dashboard API server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Stopping dashboard API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown dashboard API server: %w", err)
	}

	s.logger.Info("Dashboard API server stopped")
	return nil
}

// Router returns the underlying gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
