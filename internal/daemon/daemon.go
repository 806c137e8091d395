package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/brainmemory/internal/config"
	"github.com/harun/brainmemory/internal/logger"
	"github.com/harun/brainmemory/internal/metrics"
	"github.com/harun/brainmemory/internal/tracing"
	"github.com/harun/brainmemory/pkg/cron"
	"github.com/harun/brainmemory/pkg/gateway"
	"github.com/harun/brainmemory/pkg/memory"
	"github.com/harun/brainmemory/pkg/server"
	"github.com/rs/zerolog"
)

// Options carries process-level settings that are not part of the config file
type Options struct {
	// ConfigPath enables hot reload of the file at this path when set
	ConfigPath string
	// Version is reported by GET /status
	Version string
	// Listener overrides the configured host and port
	Listener net.Listener
}

// Daemon represents the BrainMemory daemon service
type Daemon struct {
	config  *config.Config
	options Options
	logger  *logger.Logger

	// Core modules
	store   *memory.TieredStore
	metrics *metrics.Metrics

	// Services
	scheduler *cron.Scheduler
	gateway   *gateway.Gateway
	server    *server.Server
	watcher   *config.Watcher

	// seen is the last reloaded config, nil before the first reload
	seen *config.Config

	// Internal
	sweep     *Sweep
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger, opts Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		options: opts,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if err := d.initializeCoreModules(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		d.abort()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// abort releases what New acquired before a failure
func (d *Daemon) abort() {
	d.cancel()
	if d.server != nil {
		_ = d.server.Stop(context.Background())
	}
	if d.tracingEnabled {
		_ = tracing.ShutdownOpenTelemetry(context.Background())
		d.tracingEnabled = false
	}
}

// initializeCoreModules initializes the store and metrics
func (d *Daemon) initializeCoreModules() error {
	if d.config.Metrics.Enabled {
		d.metrics = metrics.NewMetrics()
		d.logger.Info().Str("path", d.config.Metrics.Path).Msg("Metrics initialized")
	}

	mc := d.config.Memory
	d.store = memory.NewTieredStore(memory.Config{
		DemotionThreshold:      mc.DemotionThresholdDuration(),
		TrailCapacity:          mc.TrailCapacity,
		AssociationWidth:       mc.AssociationWidth,
		ExcludeSelfAssociation: mc.ExcludeSelfAssociation,
		SingleCopy:             mc.SingleCopy,
		Logger:                 d.logger.Component("memory"),
	})
	d.logger.Info().
		Dur("demotion_threshold", mc.DemotionThresholdDuration()).
		Int("trail_capacity", mc.TrailCapacity).
		Int("association_width", mc.AssociationWidth).
		Msg("Tiered store initialized")

	return nil
}

// initializeServices initializes the gateway, HTTP server and scheduler
func (d *Daemon) initializeServices() error {
	var gw server.Gateway
	if d.config.Gateway.Enabled {
		g, err := gateway.New(gateway.Config{
			Memory:       d.store,
			TickInterval: time.Duration(d.config.Gateway.TickInterval) * time.Second,
			Metrics:      d.metrics,
			Logger:       d.logger.Component("gateway"),
		})
		if err != nil {
			return fmt.Errorf("failed to create gateway: %w", err)
		}
		d.gateway = g
		gw = g
		d.logger.Info().Msg("Gateway initialized")
	}

	srv, err := server.NewServer(server.ServerOptions{
		Host:               d.config.Server.Host,
		Port:               d.config.Server.Port,
		Version:            d.options.Version,
		RateLimitPerMinute: d.config.Server.RateLimitPerMinute,
		StatusCacheTTL:     time.Duration(d.config.Server.StatusCacheTTL) * time.Second,
		MetricsPath:        d.config.Metrics.Path,
	}, d.store, gw, d.metrics, d.logger.Component("server"))
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	d.server = srv
	d.logger.Info().Str("addr", d.config.Server.Addr()).Msg("HTTP server initialized")

	d.sweep = NewSweep(d)
	d.scheduler = cron.NewScheduler(cron.Config{
		JobTimeout: time.Minute,
		OnEvent:    d.sweep.onSchedulerEvent,
	}, d.logger.Component("scheduler"))
	if err := d.scheduler.Add(OptimizeJobName, d.config.Scheduler.OptimizeSchedule, d.sweep.Run); err != nil {
		return fmt.Errorf("failed to schedule optimize sweep: %w", err)
	}

	return nil
}

// Start starts the daemon service
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Starting BrainMemory daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.markStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	ln := d.options.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", d.server.Addr())
		if err != nil {
			_ = d.lifecycle.Stop()
			d.markStopped()
			return fmt.Errorf("failed to listen on %s: %w", d.server.Addr(), err)
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Serve(ln); err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			d.cancel()
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP server started")

	if d.gateway != nil {
		d.gateway.Start()
		logger.Info().Msg("Gateway started")
	}

	if err := d.scheduler.Start(); err != nil {
		d.abortStart(logger)
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logger.Info().Str("schedule", d.config.Scheduler.OptimizeSchedule).Msg("Optimize sweep scheduled")

	if d.options.ConfigPath != "" {
		w, err := config.NewWatcher(config.NewLoader(d.options.ConfigPath), d.logger.Component("config"), func(next *config.Config) {
			d.applyConfig(next)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Config hot reload disabled")
		} else {
			d.watcher = w
			logger.Info().Str("path", d.options.ConfigPath).Msg("Config watcher started")
		}
	}

	logger.Info().Msg("Daemon started successfully")

	return nil
}

// Stop stops the daemon service gracefully
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	traceID := tracing.NewTraceID()
	logger := d.logger.GetZerolog().With().Str("trace_id", traceID).Logger()
	logger.Info().Msg("Stopping BrainMemory daemon")

	timeout := time.Duration(d.config.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop config watcher")
		}
	}

	if err := d.scheduler.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop scheduler")
	}

	// Clients hear server.shutdown before the listener closes
	if d.gateway != nil {
		d.gateway.Stop()
	}

	if err := d.server.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop HTTP server")
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-ctx.Done():
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	if d.tracingEnabled {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		d.tracingEnabled = false
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// abortStart undoes a partial Start once the HTTP server is serving
func (d *Daemon) abortStart(logger zerolog.Logger) {
	if d.gateway != nil {
		d.gateway.Stop()
	}
	if err := d.server.Stop(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to stop HTTP server")
	}
	d.wg.Wait()
	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}
	d.markStopped()
}

func (d *Daemon) markStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM arrives or the HTTP server fails,
// then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case <-d.ctx.Done():
		d.logger.Warn().Msg("Daemon context cancelled")
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetStore returns the tiered store
func (d *Daemon) GetStore() *memory.TieredStore {
	return d.store
}

// GetScheduler returns the sweep scheduler
func (d *Daemon) GetScheduler() *cron.Scheduler {
	return d.scheduler
}

// GetGateway returns the websocket gateway, nil when disabled
func (d *Daemon) GetGateway() *gateway.Gateway {
	return d.gateway
}

// GetServer returns the HTTP API server
func (d *Daemon) GetServer() *server.Server {
	return d.server
}

// GetMetrics returns the metrics registry, nil when disabled
func (d *Daemon) GetMetrics() *metrics.Metrics {
	return d.metrics
}
