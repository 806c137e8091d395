package daemon

import (
	"context"
	"time"

	"github.com/harun/brainmemory/pkg/cron"
	"github.com/harun/brainmemory/pkg/gateway"
)

// OptimizeJobName is the scheduler job that runs the demotion sweep
const OptimizeJobName = "optimize"

// Sweep runs the periodic demotion sweep and publishes its outcome
type Sweep struct {
	daemon *Daemon
}

// NewSweep creates a new sweep bound to the daemon's store
func NewSweep(d *Daemon) *Sweep {
	return &Sweep{
		daemon: d,
	}
}

// Run performs one optimize pass
func (s *Sweep) Run(ctx context.Context) error {
	d := s.daemon
	start := time.Now()

	result, err := d.store.Optimize()
	if d.metrics != nil {
		d.metrics.ObserveOperation("optimize", start, err)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if d.metrics != nil {
		d.metrics.ObserveOptimize(len(result.Demoted), elapsed)
	}

	stats, err := d.store.Stats()
	if err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.SetTierSizes(stats.Working.Entries, stats.LongTerm.Entries, stats.Associations.Nodes)
	}

	if d.gateway != nil {
		d.gateway.Broadcast(gateway.EventMemoryOptimized, result)
		d.gateway.Broadcast(gateway.EventBrainMemory, stats)
	}

	d.logger.Debug().
		Int("demoted", len(result.Demoted)).
		Int("working", result.Working).
		Int("long_term", result.LongTerm).
		Dur("duration", elapsed).
		Msg("Optimize sweep completed")

	return nil
}

func (s *Sweep) onSchedulerEvent(evt cron.Event) {
	if evt.Action == cron.EventActionFinished && evt.Status == cron.StatusSkipped {
		s.daemon.logger.Warn().
			Str("job", evt.Job).
			Msg("Scheduled job skipped, previous run still in progress")
	}
}
