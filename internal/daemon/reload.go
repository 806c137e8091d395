package daemon

import (
	"github.com/harun/brainmemory/internal/config"
)

// applyConfig applies a reloaded config. Only the log level takes effect
// live; other changed sections are reported once and wait for a restart.
// It returns the sections reported by this call.
func (d *Daemon) applyConfig(next *config.Config) []string {
	d.mu.Lock()
	prev := d.seen
	if prev == nil {
		prev = d.config
	}
	prevLevel := prev.Logging.Level
	changed := restartRequired(prev, next)
	d.seen = next
	d.config.Logging.Level = next.Logging.Level
	d.mu.Unlock()

	if next.Logging.Level != prevLevel {
		d.logger.SetLevel(next.Logging.Level)
		d.logger.Info().
			Str("from", prevLevel).
			Str("to", next.Logging.Level).
			Msg("Log level changed")
	}

	if len(changed) > 0 {
		d.logger.Warn().
			Strs("fields", changed).
			Msg("Config changes require a restart to take effect")
	}

	return changed
}

func restartRequired(prev, next *config.Config) []string {
	var changed []string
	if prev.Server != next.Server {
		changed = append(changed, "server")
	}
	if prev.Memory != next.Memory {
		changed = append(changed, "memory")
	}
	if prev.Scheduler != next.Scheduler {
		changed = append(changed, "scheduler")
	}
	if prev.Gateway != next.Gateway {
		changed = append(changed, "gateway")
	}
	if prev.Metrics != next.Metrics {
		changed = append(changed, "metrics")
	}
	if prev.Tracing != next.Tracing {
		changed = append(changed, "tracing")
	}
	return changed
}
