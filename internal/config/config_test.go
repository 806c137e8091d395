package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 600, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 300, cfg.Memory.DemotionThreshold)
	assert.Equal(t, 1000, cfg.Memory.TrailCapacity)
	assert.Equal(t, 5, cfg.Memory.AssociationWidth)
	assert.False(t, cfg.Memory.ExcludeSelfAssociation)
	assert.False(t, cfg.Memory.SingleCopy)
	assert.Equal(t, "@every 60s", cfg.Scheduler.OptimizeSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr())
	assert.Equal(t, 300*time.Second, cfg.Memory.DemotionThresholdDuration())
	assert.Contains(t, cfg.String(), `"demotion_threshold": 300`)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "port out of range")
	})

	t.Run("non-positive demotion threshold", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Memory.DemotionThreshold = 0

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "demotion_threshold")
	})

	t.Run("association width exceeds trail", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Memory.TrailCapacity = 3
		cfg.Memory.AssociationWidth = 5

		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("missing schedule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Scheduler.OptimizeSchedule = ""

		err := cfg.Validate()
		assert.Error(t, err)
	})

	t.Run("negative tick interval", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Gateway.TickInterval = -1

		assert.Error(t, cfg.Validate())
	})
}
