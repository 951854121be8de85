// Package background runs fire-and-forget work after a response has been written.
package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 64
	defaultTaskTimeout = 10 * time.Second
)

// Task is a unit of best-effort work. Its context is cancelled on timeout or shutdown.
type Task func(ctx context.Context) error

type Config struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *zap.Logger
}

type job struct {
	name string
	task Task
}

// Executor is a bounded worker pool. Submitters never block: work that does not fit in the
// queue is dropped, and no caller ever observes task completion.
type Executor struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan job
	group   *errgroup.Group
	baseCtx context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

func NewExecutor(cfg Config) *Executor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	executor := &Executor{
		queue:   make(chan job, queueSize),
		group:   &errgroup.Group{},
		baseCtx: baseCtx,
		cancel:  cancel,
		timeout: timeout,
		logger:  logger,
	}
	for index := 0; index < workers; index++ {
		executor.group.Go(executor.work)
	}
	return executor
}

// Submit enqueues the task and reports whether it was accepted.
func (e *Executor) Submit(name string, task Task) bool {
	if task == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.logger.Warn("background task rejected after shutdown", zap.String("task", name))
		return false
	}
	select {
	case e.queue <- job{name: name, task: task}:
		return true
	default:
		e.logger.Warn("background queue full, task dropped", zap.String("task", name))
		return false
	}
}

// Shutdown stops accepting work and drains the queue until ctx expires; whatever is still
// running then is cancelled.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- e.group.Wait()
	}()

	select {
	case err := <-done:
		e.cancel()
		return err
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

func (e *Executor) work() error {
	for next := range e.queue {
		e.run(next)
	}
	return nil
}

func (e *Executor) run(next job) {
	ctx, cancel := context.WithTimeout(e.baseCtx, e.timeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("background task panicked",
				zap.String("task", next.name),
				zap.String("panic", fmt.Sprint(recovered)))
		}
	}()

	started := time.Now()
	if err := next.task(ctx); err != nil {
		e.logger.Warn("background task failed",
			zap.String("task", next.name),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return
	}
	e.logger.Debug("background task finished",
		zap.String("task", next.name),
		zap.Duration("elapsed", time.Since(started)))
}
