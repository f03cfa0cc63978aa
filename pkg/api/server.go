package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/api/auth"
)

// Server provides the HTTP server of the REST API.
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
	listener     net.Listener
	ready        chan struct{}
}

// NewServer creates a new API HTTP server. Authentication is enabled when
// the configuration carries a JWT secret.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
func NewServer(config APIConfig, deps Dependencies) (*Server, error) {
	config.ApplyDefaults()

	if deps.Coordinator == nil {
		return nil, errors.New("api server requires a coordinator")
	}

	if deps.JWT == nil && config.HasJWTSecret() {
		jwtService, err := auth.NewJWTService(auth.JWTConfig{
			Secret:        config.GetJWTSecret(),
			Issuer:        config.JWT.Issuer,
			TokenDuration: config.JWT.TokenDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT service: %w", err)
		}
		deps.JWT = jwtService
	}
	if deps.JWT == nil {
		logger.Warn("API authentication disabled, no JWT secret configured",
			"env_var", EnvAPISecret)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      NewRouter(deps),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
		ready:  make(chan struct{}),
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen: %w", err)
	}
	s.listener = ln
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", ln.Addr().String())

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the address the server listens on once Start has bound it.
// It blocks until then or until ctx is done.
func (s *Server) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
		return s.listener.Addr().String(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.config.Port
}
