// Package api provides a standalone HTTP server that mounts httpserve's
// blob-serving handler behind health probes, an optional Prometheus scrape
// endpoint, and graceful shutdown. Embedders who already run their own
// net/http server don't need this package at all: they can mount
// httpserve.New directly into their own mux.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/httpserve"
	"github.com/depotgo/depot/pkg/registry"
)

// Server owns a standalone HTTP listener serving blobs and health probes.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server from its config, a registry, and the blob
// mountpoint/cache settings handed to httpserve.New. The server is
// created in a stopped state; call Start to begin serving.
func NewServer(config Config, reg *registry.Registry, mountpoint string, cacheMaxAge time.Duration) (*Server, error) {
	config.applyDefaults()

	router := NewRouter(reg)
	handler, err := httpserve.New(mountpoint, reg, router, cacheMaxAge)
	if err != nil {
		return nil, fmt.Errorf("build blob handler: %w", err)
	}

	return &Server{
		config: config,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}, nil
}

// Start listens and serves until ctx is cancelled, at which point it
// drains in-flight requests and returns. Returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.config.Port
}
