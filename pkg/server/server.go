package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/harun/brainmemory/internal/metrics"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	defaultPort               = 5000
	defaultRateLimitPerMinute = 600
	defaultStatusCacheTTL     = 5 * time.Second
	defaultBenchmarkCacheTTL  = time.Minute
	defaultMaxBodyBytes       = 1 << 20

	tracerName = "github.com/harun/brainmemory/pkg/server"

	statusCacheKey    = "status"
	benchmarkCacheKey = "benchmark"
)

// Server is the BrainMemory HTTP API server
type Server struct {
	options        ServerOptions
	server         *http.Server
	handler        http.Handler
	memory         Memory
	gateway        Gateway
	metrics        *metrics.Metrics
	rateLimiter    *RateLimiter
	requestTracker *RequestTracker
	cache          *gocache.Cache
	schemas        *requestSchemas
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown atomic.Bool
	lastBoost      atomic.Value // float64
}

// NewServer creates a new HTTP API server. gateway and m may be nil.
func NewServer(options ServerOptions, mem Memory, gateway Gateway, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory is required")
	}

	if options.Port == 0 {
		options.Port = defaultPort
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.Version == "" {
		options.Version = "dev"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = defaultRateLimitPerMinute
	}
	if options.StatusCacheTTL == 0 {
		options.StatusCacheTTL = defaultStatusCacheTTL
	}
	if options.BenchmarkCacheTTL == 0 {
		options.BenchmarkCacheTTL = defaultBenchmarkCacheTTL
	}
	if options.MetricsPath == "" {
		options.MetricsPath = "/metrics"
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = defaultMaxBodyBytes
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	s := &Server{
		options:        options,
		memory:         mem,
		gateway:        gateway,
		metrics:        m,
		rateLimiter:    NewRateLimiter(options.RateLimitPerMinute),
		requestTracker: NewRequestTracker(),
		// Entries expire on read; no janitor goroutine
		cache:     gocache.New(options.StatusCacheTTL, 0),
		schemas:   schemas,
		logger:    logger,
		startTime: time.Now(),
	}
	s.lastBoost.Store(0.0)
	s.handler = s.routes()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.options.Host, fmt.Sprintf("%d", s.options.Port))
}

// Start listens on the configured address and blocks until Stop
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener and blocks until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting HTTP API server")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP API: %w", err)
	}
	return nil
}

// Stop rejects new requests, waits for in-flight ones until ctx expires,
// and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	if !s.isShuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	s.logger.Info().Msg("Shutting down HTTP API server")
	s.rateLimiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP API server: %w", err)
	}

	s.logger.Info().Msg("HTTP API server stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /memory", s.handleMemory)
	mux.HandleFunc("GET /performance", s.handlePerformance)
	mux.HandleFunc("POST /store", s.handleStore)
	mux.HandleFunc("GET /retrieve/{key}", s.handleRetrieve)
	mux.HandleFunc("POST /search", s.handleSearch)
	mux.HandleFunc("POST /optimize", s.handleOptimize)
	mux.HandleFunc("POST /benchmark", s.handleBenchmark)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.metrics != nil {
		mux.Handle("GET "+s.options.MetricsPath, s.metrics.Handler())
	}
	if s.gateway != nil {
		mux.Handle("GET /ws", s.gateway)
	}

	return s.withRecovery(s.withCORS(s.withTracing(s.withRateLimit(mux))))
}
