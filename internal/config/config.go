package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main BrainMemory configuration
type Config struct {
	// HTTP API
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Tiered store
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Background sweep
	Scheduler SchedulerConfig `json:"scheduler" mapstructure:"scheduler"`

	// Websocket stats gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory (PID file, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Host               string `json:"host" mapstructure:"host"`
	Port               int    `json:"port" mapstructure:"port"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	ShutdownTimeout    int    `json:"shutdown_timeout" mapstructure:"shutdown_timeout"` // seconds
	StatusCacheTTL     int    `json:"status_cache_ttl" mapstructure:"status_cache_ttl"` // seconds
}

// MemoryConfig holds tiered store configuration
type MemoryConfig struct {
	DemotionThreshold      int  `json:"demotion_threshold" mapstructure:"demotion_threshold"` // seconds
	TrailCapacity          int  `json:"trail_capacity" mapstructure:"trail_capacity"`
	AssociationWidth       int  `json:"association_width" mapstructure:"association_width"`
	ExcludeSelfAssociation bool `json:"exclude_self_association" mapstructure:"exclude_self_association"`
	SingleCopy             bool `json:"single_copy" mapstructure:"single_copy"`
}

// SchedulerConfig holds background sweep configuration
type SchedulerConfig struct {
	OptimizeSchedule string `json:"optimize_schedule" mapstructure:"optimize_schedule"` // cron spec or @every
}

// GatewayConfig holds websocket gateway configuration
type GatewayConfig struct {
	Enabled      bool `json:"enabled" mapstructure:"enabled"`
	TickInterval int  `json:"tick_interval" mapstructure:"tick_interval"` // seconds, 0 disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			RateLimitPerMinute: 600,
			ShutdownTimeout:    10,
			StatusCacheTTL:     5,
		},
		Memory: MemoryConfig{
			DemotionThreshold: 300,
			TrailCapacity:     1000,
			AssociationWidth:  5,
		},
		Scheduler: SchedulerConfig{
			OptimizeSchedule: "@every 60s",
		},
		Gateway: GatewayConfig{
			Enabled:      true,
			TickInterval: 30,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "brainmemory",
		},
		DataDir: "",
	}
}

// Addr returns the host:port the HTTP API listens on
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DemotionThresholdDuration returns the demotion threshold as a duration
func (c MemoryConfig) DemotionThresholdDuration() time.Duration {
	return time.Duration(c.DemotionThreshold) * time.Second
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server rate_limit_per_minute must be >= 0")
	}

	if c.Memory.DemotionThreshold <= 0 {
		return fmt.Errorf("memory demotion_threshold must be positive")
	}
	if c.Memory.TrailCapacity <= 0 {
		return fmt.Errorf("memory trail_capacity must be positive")
	}
	if c.Memory.AssociationWidth <= 0 {
		return fmt.Errorf("memory association_width must be positive")
	}
	if c.Memory.AssociationWidth > c.Memory.TrailCapacity {
		return fmt.Errorf("memory association_width (%d) cannot exceed trail_capacity (%d)", c.Memory.AssociationWidth, c.Memory.TrailCapacity)
	}

	if c.Scheduler.OptimizeSchedule == "" {
		return fmt.Errorf("scheduler optimize_schedule is required")
	}

	if c.Gateway.TickInterval < 0 {
		return fmt.Errorf("gateway tick_interval must be >= 0")
	}

	return nil
}
