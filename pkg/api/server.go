package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nodewatch/plugind/internal/history"
	"github.com/nodewatch/plugind/internal/logger"
	"github.com/nodewatch/plugind/internal/plugin"
	"github.com/nodewatch/plugind/pkg/api/auth"
)

// Server provides the control API's HTTP server.
//
// The server exposes plugin health and the FUNCTION invocation round trip.
//
// Endpoints:
//   - GET /healthz: Liveness probe
//   - GET /v1/plugins: Every registered plugin's health snapshot
//   - GET /v1/plugins/{id}: A single plugin's health snapshot
//   - GET /v1/plugins/{id}/history: Recent lifecycle events for a plugin
//   - POST /v1/plugins/{id}/functions/{name}: Invoke a FUNCTION callback
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	supervisor   *plugin.Supervisor
	config       APIConfig
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
//
// jwtService, when non-nil, requires a bearer token on the function
// invocation endpoint. functionTimeout is used for invocation requests that
// don't specify their own timeout. hist backs the plugin history endpoint
// and may be nil.
func NewServer(config APIConfig, supervisor *plugin.Supervisor, jwtService *auth.JWTService, functionTimeout time.Duration, hist *history.Store) *Server {
	config.applyDefaults()

	startedAt := time.Now()
	router := NewRouter(supervisor, jwtService, functionTimeout, startedAt, hist)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server:     server,
		supervisor: supervisor,
		config:     config,
		startedAt:  startedAt,
	}
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Returns nil on graceful shutdown, or an error if the server fails to start
// or shutdown encounters an error.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "port", s.config.Port)
		logger.Debug("control API endpoints available",
			"healthz", fmt.Sprintf("http://localhost:%d/healthz", s.config.Port),
			"plugins", fmt.Sprintf("http://localhost:%d/v1/plugins", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("control API shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control API failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("control API shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("control API shutdown error: %w", err)
			logger.Error("control API shutdown error", "error", err)
		} else {
			logger.Info("control API stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
