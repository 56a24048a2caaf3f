package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/K4R7IK/vulnmanage/internal/config"
	"github.com/K4R7IK/vulnmanage/pkg/logger"
)

// Server wraps http.Server with lifecycle management.
type Server struct {
	httpServer *http.Server
	config     *config.ServerConfig
	logger     *logger.Logger
}

// NewServer creates a new HTTP server serving the given handler.
func NewServer(cfg *config.ServerConfig, h http.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  time.Minute,
		},
		config: cfg,
		logger: log,
	}
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.config.Addr())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
