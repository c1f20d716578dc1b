package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/dispatch"
	"github.com/revline/algateway/health"
	"github.com/revline/algateway/observe"
)

// Config holds listener settings.
type Config struct {
	Listen          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the gateway's HTTP transport.
type Server struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	auth       auth.Authenticator
	health     *health.Aggregator
	metrics    http.Handler
	logger     observe.Logger

	mux     *http.ServeMux
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator guards the /v1 routes. Default: anonymous access only.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithHealth mounts the health probes backed by agg.
func WithHealth(agg *health.Aggregator) Option {
	return func(s *Server) { s.health = agg }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server for d.
func New(cfg Config, d *dispatch.Dispatcher, opts ...Option) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		auth:       auth.NewChain(true),
		logger:     observe.NopLogger(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	api := s.authenticate
	s.mux.Handle("POST /v1/tools/{name}", api(http.HandlerFunc(s.handleTool)))
	s.mux.Handle("GET /v1/tools", api(http.HandlerFunc(s.handleListTools)))
	s.mux.Handle("GET /v1/cache", api(http.HandlerFunc(s.handleCacheStats)))
	s.mux.Handle("DELETE /v1/cache", api(http.HandlerFunc(s.handleInvalidate)))
	s.mux.Handle("DELETE /v1/cache/{tool}", api(http.HandlerFunc(s.handleInvalidate)))
	if s.health != nil {
		health.RegisterHandlers(s.mux, s.health)
	}
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.handler = requestID(otelhttp.NewHandler(s.mux, "algateway"))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "listening", observe.F("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info(shutCtx, "shutting down")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
