package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Executor runs one attempt of a job
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// PoolConfig sizes the worker pool. Zero values take the defaults.
type PoolConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	RetryDelay time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 2, QueueSize: 16, JobTimeout: 15 * time.Minute, RetryDelay: 5 * time.Minute}
}

func (c PoolConfig) withDefaults() PoolConfig {
	d := DefaultPoolConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Pool runs submitted jobs on a fixed set of workers. A failed job is
// retried by the worker that ran it after RetryDelay, up to the job's
// MaxRetries; the observer sees each job once, in its final state.
type Pool struct {
	cfg      PoolConfig
	exec     Executor
	logger   *zap.Logger
	observer func(*Job)
	queue    chan *Job

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewPool(cfg PoolConfig, exec Executor, logger *zap.Logger) *Pool {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:    cfg,
		exec:   exec,
		logger: logger.Named("jobs"),
		queue:  make(chan *Job, cfg.QueueSize),
	}
}

// OnFinished registers fn to receive every job once it succeeded or gave up
func (p *Pool) OnFinished(fn func(*Job)) {
	p.observer = fn
}

// Start launches the workers; a second Start is a no-op
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group != nil {
		return nil
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for i := range p.cfg.Workers {
		p.group.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	p.logger.Info("Job pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Duration("job_timeout", p.cfg.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers until ctx ends
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	group, cancel := p.group, p.cancel
	p.group, p.cancel = nil, nil
	p.mu.Unlock()
	if group == nil {
		return nil
	}

	cancel()
	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.logger.Info("Job pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Job pool stop timed out")
		return ctx.Err()
	}
}

// Submit queues job without blocking
func (p *Pool) Submit(job *Job) error {
	if !job.Type.IsValid() {
		return ErrInvalidJobType
	}
	p.mu.Lock()
	running := p.group != nil
	p.mu.Unlock()
	if !running {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.run(ctx, job, worker)
			if p.observer != nil {
				p.observer(job)
			}
		}
	}
}

func (p *Pool) run(ctx context.Context, job *Job, worker int) {
	log := p.logger.With(
		zap.Int("worker", worker),
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
	)
	for {
		job.begin(time.Now())
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
		err := p.exec.Execute(attemptCtx, job)
		cancel()
		job.finish(time.Now(), err)

		if err == nil {
			log.Info("Job succeeded", zap.Int("attempt", job.Attempts))
			return
		}
		log.Error("Job failed", zap.Int("attempt", job.Attempts), zap.Error(err))
		if ctx.Err() != nil || !job.canRetry() {
			return
		}

		log.Info("Retrying job", zap.Duration("delay", p.cfg.RetryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.RetryDelay):
		}
	}
}
