package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ProcessorQueue runs tasks in the background with at most `workers` running at once.
type ProcessorQueue struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Task
	sem     *semaphore.Weighted
	base    context.Context
	abort   context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	waiting atomic.Int64

	// dispatched closes when the dispatcher has handed out or dropped every task.
	dispatched chan struct{}

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

// WithProcessTimeout bounds each task. Zero leaves tasks unbounded.
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		logger:     logger,
		workers:    4,
		timeout:    10 * time.Minute,
		ch:         make(chan Task, 256),
		dispatched: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.sem = semaphore.NewWeighted(int64(q.workers))
	q.base, q.abort = context.WithCancel(context.Background())
	q.start()
	return q
}

// Workers is the concurrency limit.
func (q *ProcessorQueue) Workers() int { return q.workers }

func (q *ProcessorQueue) Waiting() int { return int(q.waiting.Load()) }

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			defer close(q.dispatched)
			q.logger.Info("queue.dispatcher.started", "workers", q.workers)
			for task := range q.ch {
				// Blocks until a slot frees up; the base context only ends on forced shutdown.
				err := q.sem.Acquire(q.base, 1)
				if err == nil && q.base.Err() != nil {
					q.sem.Release(1)
					err = q.base.Err()
				}
				if err != nil {
					q.waiting.Add(-1)
					q.drop(task, err)
					continue
				}
				q.waiting.Add(-1)
				q.wg.Add(1)
				go q.run(task)
			}
			q.logger.Info("queue.dispatcher.stopped")
		}()
	})
}

func (q *ProcessorQueue) drop(task Task, err error) {
	q.logger.Warn("queue.task.dropped", "task_id", task.ID, "error", err)
	if task.Dropped == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue.task.drop_callback_panicked", "task_id", task.ID, "panic", r)
		}
	}()
	task.Dropped(err)
}

func (q *ProcessorQueue) run(task Task) {
	defer q.wg.Done()
	defer q.sem.Release(1)

	ctx, cancel := q.base, context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(q.base, q.timeout)
	}
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return task.Run(ctx)
	}()
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		q.logger.Error("queue.task.failed", "task_id", task.ID, "elapsed_ms", elapsed, "error", err)
		return
	}
	q.logger.Info("queue.task.ok", "task_id", task.ID, "elapsed_ms", elapsed)
}

// Enqueue never blocks: a full buffer is reported as ErrQueueFull.
func (q *ProcessorQueue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.rejected", "task_id", task.ID, "reason", "shutting down")
		return ErrQueueClosed
	}
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = time.Now()
	}
	q.waiting.Add(1)
	select {
	case q.ch <- task:
		q.logger.Debug("queue.enqueue.ok", "task_id", task.ID, "waiting", q.waiting.Load())
		return nil
	default:
		q.waiting.Add(-1)
		q.logger.Warn("queue.enqueue.rejected", "task_id", task.ID, "reason", "full")
		return ErrQueueFull
	}
}

// Shutdown stops admission and waits for accepted tasks. When ctx ends first,
// running tasks are cancelled, tasks that never started are dropped (their
// Dropped callbacks have run when Shutdown returns) and ctx's error is returned.
func (q *ProcessorQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.abort()
		<-q.dispatched
		q.logger.Warn("queue.shutdown.interrupted")
		return ctx.Err()
	case <-done:
		q.abort()
		q.logger.Info("queue.shutdown.drained")
		return nil
	}
}
