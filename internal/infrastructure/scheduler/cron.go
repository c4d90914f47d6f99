package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haven/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// DailySchedule is a once-a-day trigger time
type DailySchedule struct {
	Hour   int
	Minute int
}

func (d DailySchedule) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// ParseCronSchedule parses a daily cron expression of the form "minute hour * * *".
// Only fixed minute and hour values are supported.
func ParseCronSchedule(schedule string) (DailySchedule, error) {
	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return DailySchedule{}, fmt.Errorf("%w: expected 5 fields in %q", ErrInvalidConfig, schedule)
	}
	for _, p := range parts[2:] {
		if p != "*" {
			return DailySchedule{}, fmt.Errorf("%w: only daily schedules are supported, got %q", ErrInvalidConfig, schedule)
		}
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return DailySchedule{}, fmt.Errorf("%w: invalid minute %q", ErrInvalidConfig, parts[0])
	}
	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return DailySchedule{}, fmt.Errorf("%w: invalid hour %q", ErrInvalidConfig, parts[1])
	}
	return DailySchedule{Hour: hour, Minute: minute}, nil
}

// Submitter accepts jobs for execution
type Submitter interface {
	Submit(job *Job) error
}

// CronOption configures a LedgerCronScheduler
type CronOption func(*LedgerCronScheduler)

// WithTickInterval overrides how often the schedules are checked
func WithTickInterval(d time.Duration) CronOption {
	return func(s *LedgerCronScheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) CronOption {
	return func(s *LedgerCronScheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// JobStatusInfo describes one scheduled job type
type JobStatusInfo struct {
	Type        JobType    `json:"type"`
	Schedule    string     `json:"schedule"`
	LastRunDate string     `json:"last_run_date,omitempty"`
	LastStatus  JobStatus  `json:"last_status,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// CronStatus is a snapshot of the cron scheduler
type CronStatus struct {
	Running bool            `json:"running"`
	Jobs    []JobStatusInfo `json:"jobs"`
}

type jobState struct {
	schedule    DailySchedule
	lastRunDate string
	lastStatus  JobStatus
	lastError   string
	finishedAt  *time.Time
}

// LedgerCronScheduler submits the alert sweep and the daily reconciliation
// summary once per day at their configured times.
type LedgerCronScheduler struct {
	submitter  Submitter
	logger     *zap.Logger
	maxRetries int
	tick       time.Duration
	now        func() time.Time

	mu      sync.Mutex
	jobs    map[JobType]*jobState
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLedgerCronScheduler creates a cron scheduler from configuration
func NewLedgerCronScheduler(cfg config.SchedulerConfig, submitter Submitter, logger *zap.Logger, opts ...CronOption) (*LedgerCronScheduler, error) {
	if submitter == nil {
		return nil, fmt.Errorf("%w: submitter is required", ErrInvalidConfig)
	}
	sweep, err := ParseCronSchedule(cfg.AlertCronSchedule)
	if err != nil {
		return nil, fmt.Errorf("alert schedule: %w", err)
	}
	summary, err := ParseCronSchedule(cfg.ReconcileSchedule)
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &LedgerCronScheduler{
		submitter:  submitter,
		logger:     logger.Named("cron"),
		maxRetries: cfg.RetryAttempts,
		tick:       time.Minute,
		now:        time.Now,
		jobs: map[JobType]*jobState{
			JobTypeAlertSweep:   {schedule: sweep},
			JobTypeDailySummary: {schedule: summary},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins checking the schedules in the background
func (s *LedgerCronScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("Ledger cron scheduler started",
		zap.String("alert_sweep", s.jobs[JobTypeAlertSweep].schedule.String()),
		zap.String("daily_summary", s.jobs[JobTypeDailySummary].schedule.String()),
	)
	go s.loop(ctx)
}

// Stop halts the background loop and waits for it to exit
func (s *LedgerCronScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("Ledger cron scheduler stopped")
}

func (s *LedgerCronScheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.checkSchedules()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.checkSchedules()
		}
	}
}

func (s *LedgerCronScheduler) checkSchedules() {
	now := s.now()
	for _, jobType := range AllJobTypes() {
		if s.shouldRun(jobType, now) {
			if err := s.submit(jobType, now); err != nil {
				s.logger.Error("Failed to submit scheduled job",
					zap.String("job_type", string(jobType)),
					zap.Error(err),
				)
			}
		}
	}
}

// shouldRun reports whether the job is due and has not yet run today
func (s *LedgerCronScheduler) shouldRun(jobType JobType, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.jobs[jobType]
	if st.lastRunDate == now.Format(time.DateOnly) {
		return false
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), st.schedule.Hour, st.schedule.Minute, 0, 0, now.Location())
	return !now.Before(due)
}

func (s *LedgerCronScheduler) submit(jobType JobType, asOf time.Time) error {
	job := NewJob(jobType, asOf, s.maxRetries)
	if err := s.submitter.Submit(job); err != nil {
		return err
	}

	s.mu.Lock()
	st := s.jobs[jobType]
	st.lastRunDate = asOf.Format(time.DateOnly)
	st.lastStatus = JobStatusPending
	st.lastError = ""
	st.finishedAt = nil
	s.mu.Unlock()

	s.logger.Info("Scheduled job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(jobType)),
	)
	return nil
}

// TriggerManualRun submits a job immediately regardless of its schedule
func (s *LedgerCronScheduler) TriggerManualRun(jobType JobType) error {
	if !jobType.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidJobType, jobType)
	}
	return s.submit(jobType, s.now())
}

// ObserveJob records the final state of a job; pass it to Pool.OnFinished
func (s *LedgerCronScheduler) ObserveJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.jobs[job.Type]
	if !ok {
		return
	}
	st.lastStatus = job.Status
	st.lastError = job.Error
	st.finishedAt = job.CompletedAt
}

// GetStatus returns the scheduler state
func (s *LedgerCronScheduler) GetStatus() CronStatus {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := CronStatus{Running: s.running}
	for _, jobType := range AllJobTypes() {
		st := s.jobs[jobType]
		status.Jobs = append(status.Jobs, JobStatusInfo{
			Type:        jobType,
			Schedule:    st.schedule.String(),
			LastRunDate: st.lastRunDate,
			LastStatus:  st.lastStatus,
			LastError:   st.lastError,
			NextRunAt:   nextRun(st, now),
			FinishedAt:  st.finishedAt,
		})
	}
	return status
}

func nextRun(st *jobState, now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), st.schedule.Hour, st.schedule.Minute, 0, 0, now.Location())
	switch {
	case st.lastRunDate == now.Format(time.DateOnly):
		return next.AddDate(0, 0, 1)
	case now.After(next):
		// overdue; picked up on the next tick
		return now
	}
	return next
}
