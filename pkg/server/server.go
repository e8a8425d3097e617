package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"drivelogic-hq/reasoner/pkg/config"
	"drivelogic-hq/reasoner/pkg/engine"
	"drivelogic-hq/reasoner/pkg/results"
	"drivelogic-hq/reasoner/pkg/runner"
	"drivelogic-hq/reasoner/pkg/telemetry/health"
	"drivelogic-hq/reasoner/pkg/telemetry/metrics"
	"drivelogic-hq/reasoner/pkg/telemetry/tracing"
)

// Routes served by the reasoner.
const (
	RouteReason  = "/v1/reason"
	RouteBatch   = "/v1/reason/batch"
	RouteRules   = "/v1/rules"
	RouteResults = "/v1/results"
)

const defaultMaxBodyBytes = 1 << 20

// Deps are the components a Server serves. Engine is required.
type Deps struct {
	Engine *engine.Engine

	// Runner enables POST /v1/reason/batch.
	Runner *runner.Runner

	// Store records single evaluations and enables GET /v1/results.
	Store   results.Store
	Backend string

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Health  *health.Checker

	// MetricsPath is where Prometheus metrics are served. Default: /metrics
	MetricsPath string

	// Synonyms maps intents to the actions that satisfy them.
	Synonyms map[string][]string

	Logger *slog.Logger

	Version, Commit, BuildTime string
}

// Server is the reasoner's HTTP API.
type Server struct {
	config   config.ServerConfig
	engine   *engine.Engine
	runner   *runner.Runner
	store    results.Store
	backend  string
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	health   *health.Checker
	synonyms map[string][]string
	logger   *slog.Logger
	version  [3]string

	metricsPath string
	auth        *APIKeyAuth
	tlsConfig   *tls.Config

	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// New creates a server. Missing telemetry components are replaced with
// disabled ones.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("server requires an engine")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		config:   cfg,
		engine:   deps.Engine,
		runner:   deps.Runner,
		store:    deps.Store,
		backend:  deps.Backend,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		health:   deps.Health,
		synonyms: deps.Synonyms,
		logger:   deps.Logger,
		version:  [3]string{deps.Version, deps.Commit, deps.BuildTime},

		metricsPath: deps.MetricsPath,
	}
	if s.metricsPath == "" {
		s.metricsPath = "/metrics"
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")

	if s.metrics == nil {
		s.metrics = metrics.NewCollector(&config.MetricsConfig{}, nil)
	}
	if s.tracer == nil {
		t, err := tracing.New(&config.TracingConfig{}, deps.Version)
		if err != nil {
			return nil, err
		}
		s.tracer = t
	}
	s.auth = NewAPIKeyAuth(cfg.Auth, s.logger)
	tc, err := newTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	s.tlsConfig = tc

	if s.health == nil {
		s.health = health.New(0)
		s.health.RegisterCheck("rules", health.RuleBaseCheck(s.engine.Compiled))
		if s.store != nil {
			s.health.RegisterCheck("results", health.StoreCheck(s.store))
		}
	}

	return s, nil
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, http.MethodPost, RouteReason, s.handleReason)
	s.route(mux, http.MethodPost, RouteBatch, s.handleBatch)
	s.route(mux, http.MethodGet, RouteRules, s.handleRules)
	s.route(mux, http.MethodGet, RouteResults, s.handleResults)

	health.Register(mux, s.health, s.version[0], s.version[1], s.version[2])
	mux.Handle("GET "+s.metricsPath, s.metrics.Handler())

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}

func (s *Server) route(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.auth != nil {
		handler = s.auth.Middleware(handler)
	}
	handler = MetricsMiddleware(s.metrics, path, handler)
	handler = tracing.HTTPMiddleware(s.tracer, path, handler)
	mux.Handle(method+" "+path, handler)
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	if s.tlsConfig != nil {
		l = tls.NewListener(l, s.tlsConfig)
	}

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", l.Addr().String(), "tls", s.tlsConfig != nil, "auth", s.auth != nil)
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Start listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, l)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
