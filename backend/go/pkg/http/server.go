package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"IntentCode/backend/go/internal/config"
	"IntentCode/backend/go/pkg/circuitbreaker"
	"IntentCode/backend/go/pkg/httpmiddleware"
	"IntentCode/backend/go/pkg/logger"
	"IntentCode/backend/go/pkg/ratelimiter"
)

const (
	clientIdleTTL   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Middleware defines a function to wrap an http.Handler.
type Middleware func(http.Handler) http.Handler

// Server is a custom HTTP server that wraps the standard http.Server
// and provides built-in support for middleware.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *logger.Logger
}

// ServerOption defines a function for configuring a Server.
type ServerOption func(*Server)

// WithAddress sets the address for the server to listen on.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.httpServer.Addr = addr
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l *logger.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates and configures a new Server instance based on the provided AppConfig and options.
// Every request is access-logged; rate limiting and circuit breaking are applied if enabled in the config.
func NewServer(cfg *config.AppConfig, opts ...ServerOption) (*Server, error) {
	mux := http.NewServeMux()
	var handler http.Handler = mux

	srv := &Server{
		httpServer: &http.Server{ReadHeaderTimeout: 10 * time.Second},
		mux:        mux,
		logger:     logger.NewDiscard(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	middlewares := []Middleware{httpmiddleware.AccessLog(srv.logger)}

	if cfg.Middleware.RateLimiter.Enabled {
		limiter, err := createRateLimiter(cfg.Middleware.RateLimiter)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		srv.logger.Info("Enabling per-client rate limiter middleware")
		middlewares = append(middlewares, httpmiddleware.RateLimit(limiter, httpmiddleware.ClientIP))
	}

	if cfg.Middleware.CircuitBreaker.Enabled {
		breaker, err := createCircuitBreaker(cfg.Middleware.CircuitBreaker)
		if err != nil {
			return nil, fmt.Errorf("failed to create circuit breaker: %w", err)
		}
		srv.logger.Info("Enabling circuit breaker middleware")
		middlewares = append(middlewares, httpmiddleware.CircuitBreak(breaker))
	}

	// Apply all middlewares in reverse order
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	srv.httpServer.Handler = handler

	if srv.httpServer.Addr == "" {
		srv.httpServer.Addr = ":8080"
	}
	return srv, nil
}

// Handle registers the handler for the given pattern.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// HandleFunc registers the handler function for the given pattern.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	if s.httpServer.Addr == "" {
		return fmt.Errorf("server address is not set")
	}
	s.logger.Info("Starting server on " + s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// createRateLimiter initializes a per-client token bucket limiter based on the configuration.
func createRateLimiter(cfg config.RateLimiterConfig) (ratelimiter.RateLimiter, error) {
	return ratelimiter.NewKeyedTokenBucket(ratelimiter.Config{
		Rate:     cfg.Rate,
		Capacity: cfg.Capacity,
		Clients:  cfg.Clients,
		IdleTTL:  clientIdleTTL,
	})
}

// createCircuitBreaker initializes a circuit breaker based on the configuration.
func createCircuitBreaker(cfg config.CircuitBreakerConfig) (*circuitbreaker.Breaker, error) {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid circuit breaker timeout duration: %w", err)
	}
	return circuitbreaker.New(circuitbreaker.Settings{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		Timeout:          timeout,
	}), nil
}
