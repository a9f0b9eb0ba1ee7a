// Package queue provides the bounded instruction intake queue.
//
// Producers never block: when the queue is full the oldest task is
// evicted in favor of the newest and the user is told. A single worker
// consumes tasks strictly one at a time, so no two plans or actuator
// command sequences ever interleave.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hallgrim/golem/internal/notify"
)

// Task is one queued user instruction.
type Task struct {
	ID         string
	Source     string
	Message    string
	RetryCount int
	EnqueuedAt time.Time
}

// NewTask creates a task for an instruction from source.
func NewTask(source, message string) Task {
	return Task{
		ID:         uuid.NewString(),
		Source:     source,
		Message:    message,
		EnqueuedAt: time.Now(),
	}
}

// ProcessFunc handles one dequeued task. It must observe ctx: the
// worker enforces the per-task timeout through it.
type ProcessFunc func(ctx context.Context, task Task) error

// Config holds queue tuning.
type Config struct {
	Capacity    int           // max queued tasks (default 8)
	TaskTimeout time.Duration // per-task processing budget (default 5m)
	RetryLimit  int           // timeout re-enqueues per task (default 1)
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:    8,
		TaskTimeout: 5 * time.Minute,
		RetryLimit:  1,
	}
}

// Queue is the bounded drop-oldest task queue with its single worker.
type Queue struct {
	cfg      Config
	notifier notify.Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	items []Task
	wake  chan struct{}

	wg      sync.WaitGroup
	started bool
}

// New creates a queue. The notifier receives eviction and drop notices.
func New(cfg Config, notifier notify.Notifier, logger *slog.Logger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultConfig().TaskTimeout
	}
	if cfg.RetryLimit < 0 {
		cfg.RetryLimit = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds a task without ever blocking the producer. At capacity
// the oldest queued task is evicted and the user is notified that the
// older instruction was dropped in favor of the newest one.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	var evicted *Task
	if len(q.items) >= q.cfg.Capacity {
		old := q.items[0]
		q.items = q.items[1:]
		evicted = &old
	}
	q.items = append(q.items, task)
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Warn("queue overflow, oldest task evicted",
			"evicted_id", evicted.ID,
			"new_id", task.ID)
		q.notifier.Say(fmt.Sprintf(
			"I dropped the earlier instruction %q to make room for your newest one.",
			evicted.Message))
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Start launches the single consumer loop. It returns immediately; the
// worker runs until ctx is cancelled. Start may only be called once.
func (q *Queue) Start(ctx context.Context, process ProcessFunc) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return errors.New("queue already started")
	}
	q.started = true
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx, process)
	return nil
}

// Wait blocks until the worker has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, process ProcessFunc) {
	defer q.wg.Done()

	for {
		task, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		if ctx.Err() != nil {
			return
		}
		q.handle(ctx, task, process)
	}
}

func (q *Queue) pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Task{}, false
	}
	task := q.items[0]
	q.items = q.items[1:]
	return task, true
}

// handle runs one task under the configured timeout. A timed-out task
// is re-enqueued until its retry budget is spent, then dropped with a
// user notice. Processing failures are terminal for the task: the
// executor reports them through its own recovery path.
func (q *Queue) handle(ctx context.Context, task Task, process ProcessFunc) {
	taskCtx, cancel := context.WithTimeout(ctx, q.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := process(taskCtx, task)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		q.logger.Info("task processed", "task_id", task.ID, "elapsed", elapsed)

	case errors.Is(err, context.DeadlineExceeded) && taskCtx.Err() != nil && ctx.Err() == nil:
		if task.RetryCount < q.cfg.RetryLimit {
			task.RetryCount++
			q.logger.Warn("task timed out, re-enqueueing",
				"task_id", task.ID,
				"retry", task.RetryCount,
				"limit", q.cfg.RetryLimit)
			q.Enqueue(task)
			return
		}
		q.logger.Error("task dropped after timeout retries",
			"task_id", task.ID,
			"retries", task.RetryCount)
		q.notifier.Say(fmt.Sprintf(
			"I gave up on %q after it kept timing out.", task.Message))

	default:
		q.logger.Error("task processing failed",
			"task_id", task.ID,
			"elapsed", elapsed,
			"error", err)
	}
}
