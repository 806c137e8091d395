package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateHost validates a listen host
func (v *Validator) ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if host == "localhost" {
		return nil
	}
	if net.ParseIP(host) == nil {
		return fmt.Errorf("invalid server host: %s (must be an IP address or localhost)", host)
	}
	return nil
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateSchedule validates a cron expression or @every descriptor
func (v *Validator) ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateDemotionThreshold validates the idle threshold in seconds
func (v *Validator) ValidateDemotionThreshold(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("demotion threshold must be positive, got %d", seconds)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMetricsPath validates the metrics endpoint path
func (v *Validator) ValidateMetricsPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", path)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate server
	if err := v.ValidateHost(cfg.Server.Host); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Errorf("server.rate_limit_per_minute must be >= 0"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Errorf("server.shutdown_timeout must be positive"))
	}
	if cfg.Server.StatusCacheTTL < 0 {
		errors = append(errors, fmt.Errorf("server.status_cache_ttl must be >= 0"))
	}

	// Validate memory
	if err := v.ValidateDemotionThreshold(cfg.Memory.DemotionThreshold); err != nil {
		errors = append(errors, err)
	}
	if cfg.Memory.TrailCapacity <= 0 {
		errors = append(errors, fmt.Errorf("memory.trail_capacity must be positive"))
	}
	if cfg.Memory.AssociationWidth <= 0 {
		errors = append(errors, fmt.Errorf("memory.association_width must be positive"))
	}

	// Validate scheduler
	if err := v.ValidateSchedule(cfg.Scheduler.OptimizeSchedule); err != nil {
		errors = append(errors, fmt.Errorf("scheduler: %w", err))
	}

	// Validate metrics
	if cfg.Metrics.Enabled {
		if err := v.ValidateMetricsPath(cfg.Metrics.Path); err != nil {
			errors = append(errors, err)
		}
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
