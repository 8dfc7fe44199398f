package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

func (c QueueConfig) normalized() QueueConfig {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.BufferSize < 1 {
		c.BufferSize = c.Workers * 4
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.RetryDelay < 1 {
		c.RetryDelay = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Queue is an in-memory job dispatcher backed by a fixed worker pool.
// Jobs that fail are re-enqueued after a delay until MaxRetries is spent.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	log     *zap.SugaredLogger

	jobs chan Job

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewQueue builds a queue that feeds jobs to handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg = cfg.normalized()
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		log:     cfg.Logger.Sugar().With("queue", name),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.done.Add(1)
		go q.run()
	}
	q.log.Infow("workers started", "workers", q.cfg.Workers)
}

// Stop signals the workers and blocks until they exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.done.Wait()
	q.log.Infow("workers stopped")
}

// Enqueue schedules a job. It fails when the queue was never started or
// has been stopped.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	running, ctx := q.running, q.ctx
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	}
}

func (q *Queue) run() {
	defer q.done.Done()
	for {
		select {
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.retry(job, err)
			}
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) retry(job Job, cause error) {
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.log.Errorw("job dropped after retries",
			"job_id", job.ID, "type", job.Type, "attempts", job.Attempt-1, "error", cause)
		return
	}
	q.log.Warnw("job failed, scheduling retry",
		"job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", cause)

	go func() {
		select {
		case <-time.After(q.cfg.RetryDelay):
		case <-q.ctx.Done():
			return
		}
		if err := q.Enqueue(job); err != nil {
			q.log.Errorw("retry enqueue failed", "job_id", job.ID, "error", err)
		}
	}()
}
