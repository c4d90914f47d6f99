// Package scheduler runs the ledger's periodic jobs: the daily alert sweep
// and the daily reconciliation summary. A cron loop decides when a job is
// due and a small worker pool runs it with a timeout and delayed retries.
package scheduler

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPoolStopped    = errors.New("job pool is not running")
	ErrQueueFull      = errors.New("job queue is full")
	ErrInvalidJobType = errors.New("invalid job type")
	ErrInvalidConfig  = errors.New("invalid scheduler configuration")
)

type JobType string

const (
	JobTypeAlertSweep   JobType = "ALERT_SWEEP"
	JobTypeDailySummary JobType = "DAILY_RECONCILIATION_SUMMARY"
)

// AllJobTypes lists the job types in status order
func AllJobTypes() []JobType {
	return []JobType{JobTypeAlertSweep, JobTypeDailySummary}
}

func (t JobType) IsValid() bool {
	return t == JobTypeAlertSweep || t == JobTypeDailySummary
}

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one run of a periodic job, evaluated as of AsOf. A job is owned by
// one worker at a time; its fields are read by observers only after it finished.
type Job struct {
	ID         uuid.UUID
	Type       JobType
	AsOf       time.Time
	MaxRetries int

	Status      JobStatus
	Attempts    int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func NewJob(jobType JobType, asOf time.Time, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		AsOf:       asOf,
		MaxRetries: maxRetries,
		Status:     JobStatusPending,
	}
}

func (j *Job) begin(at time.Time) {
	j.Attempts++
	j.Status = JobStatusRunning
	j.Error = ""
	j.CompletedAt = nil
	if j.StartedAt == nil {
		j.StartedAt = &at
	}
}

func (j *Job) finish(at time.Time, err error) {
	j.CompletedAt = &at
	if err != nil {
		j.Status = JobStatusFailed
		j.Error = err.Error()
		return
	}
	j.Status = JobStatusSuccess
}

// canRetry reports whether a failed job has attempts left
func (j *Job) canRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts <= j.MaxRetries
}
