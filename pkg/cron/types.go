package cron

import (
	"context"
	"time"
)

// JobFunc is the work a job performs on each run
type JobFunc func(ctx context.Context) error

// JobState tracks runtime state of a job
type JobState struct {
	NextRunAt         time.Time     `json:"next_run_at,omitempty"`
	LastRunAt         time.Time     `json:"last_run_at,omitempty"`
	LastStatus        string        `json:"last_status,omitempty"` // "ok", "error" or "skipped"
	LastError         string        `json:"last_error,omitempty"`
	LastDuration      time.Duration `json:"last_duration,omitempty"`
	Runs              int           `json:"runs"`
	ConsecutiveErrors int           `json:"consecutive_errors,omitempty"`
}

// Job is a snapshot of one registered job
type Job struct {
	Name     string   `json:"name"`
	Schedule string   `json:"schedule"`
	State    JobState `json:"state"`
}

// EventAction represents the type of event
type EventAction string

const (
	EventActionAdded    EventAction = "added"
	EventActionFinished EventAction = "finished"
	EventActionRemoved  EventAction = "removed"
)

// Run statuses
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Event is emitted when a job is added, finishes a run, or is removed
type Event struct {
	Action   EventAction   `json:"action"`
	Job      string        `json:"job"`
	Status   string        `json:"status,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Config configures the scheduler
type Config struct {
	// Location used for cron expressions; defaults to time.Local
	Location *time.Location
	// JobTimeout bounds a single run; 0 means no limit
	JobTimeout time.Duration
	// OnEvent is called after every job lifecycle change
	OnEvent func(Event)
}
