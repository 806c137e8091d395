package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	// ErrJobExists is returned when a job name is already registered
	ErrJobExists = errors.New("job already exists")
	// ErrJobNotFound is returned for an unknown job name
	ErrJobNotFound = errors.New("job not found")
	// ErrStopped is returned once the scheduler has been stopped
	ErrStopped = errors.New("scheduler is stopped")
)

type registeredJob struct {
	name     string
	schedule string
	fn       JobFunc
	entryID  cron.EntryID
	running  bool
	state    JobState
}

// Scheduler runs named jobs on cron schedules. A job never overlaps with
// itself; a tick that arrives while the previous run is still going is
// recorded as skipped.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	cfg     Config
	logger  zerolog.Logger
	mu      sync.Mutex
	jobs    map[string]*registeredJob
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler(cfg Config, logger zerolog.Logger) *Scheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{logger: logger}),
		),
		parser: parser,
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*registeredJob),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers a job. schedule accepts 5-field cron expressions and
// descriptors such as "@every 60s" or "@hourly".
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if fn == nil {
		return fmt.Errorf("job %s: func is required", name)
	}
	if _, err := s.parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if _, exists := s.jobs[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	job := &registeredJob{name: name, schedule: schedule, fn: fn}
	id, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	job.entryID = id
	s.jobs[name] = job
	s.mu.Unlock()

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Job registered")

	s.emit(Event{Action: EventActionAdded, Job: name})
	return nil
}

// Remove unregisters a job. A run already in progress is allowed to finish.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	s.cron.Remove(job.entryID)
	delete(s.jobs, name)
	s.mu.Unlock()

	s.logger.Info().Str("job", name).Msg("Job removed")
	s.emit(Event{Action: EventActionRemoved, Job: name})
	return nil
}

// Start begins firing jobs on their schedules
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}
	s.started = true
	s.cron.Start()

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop stops firing new runs and waits for in-flight runs to return or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	done := s.cron.Stop()

	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop scheduler: %w", ctx.Err())
	}
}

// RunNow runs a job synchronously outside its schedule and returns its error
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(job)
}

// Jobs returns a snapshot of every registered job sorted by name
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		state := job.state
		if s.started {
			state.NextRunAt = s.cron.Entry(job.entryID).Next
		}
		jobs = append(jobs, Job{
			Name:     job.name,
			Schedule: job.schedule,
			State:    state,
		})
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

func (s *Scheduler) run(job *registeredJob) error {
	s.mu.Lock()
	if job.running {
		job.state.LastStatus = StatusSkipped
		s.mu.Unlock()

		s.logger.Debug().Str("job", job.name).Msg("Job still running, skipping tick")
		s.emit(Event{Action: EventActionFinished, Job: job.name, Status: StatusSkipped})
		return nil
	}
	job.running = true
	s.mu.Unlock()

	ctx := s.ctx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	started := time.Now()
	err := s.invoke(ctx, job)
	elapsed := time.Since(started)

	evt := Event{Action: EventActionFinished, Job: job.name, Duration: elapsed}

	s.mu.Lock()
	job.running = false
	job.state.LastRunAt = started
	job.state.LastDuration = elapsed
	job.state.Runs++
	if err != nil {
		job.state.LastStatus = StatusError
		job.state.LastError = err.Error()
		job.state.ConsecutiveErrors++
		evt.Status = StatusError
		evt.Error = err.Error()
	} else {
		job.state.LastStatus = StatusOK
		job.state.LastError = ""
		job.state.ConsecutiveErrors = 0
		evt.Status = StatusOK
	}
	consecutive := job.state.ConsecutiveErrors
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("job", job.name).
			Int("consecutive_errors", consecutive).
			Msg("Job failed")
	} else {
		s.logger.Debug().
			Str("job", job.name).
			Dur("duration", elapsed).
			Msg("Job finished")
	}

	s.emit(evt)
	return err
}

// invoke runs the job func and reports a panic as an error
func (s *Scheduler) invoke(ctx context.Context, job *registeredJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.name, r)
		}
	}()
	return job.fn(ctx)
}

func (s *Scheduler) emit(evt Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(evt)
	}
}

// cronLogger adapts zerolog to the cron.Logger interface
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
