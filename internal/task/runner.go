package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// MaxRetries bounds re-attempts for retryable faults: a task is
	// executed at most MaxRetries+1 times before it fails permanently.
	MaxRetries int

	// RetryDelay seeds the wait between attempts.
	RetryDelay time.Duration

	// RetryBackoff enables exponential growth of the retry delay
	// (RetryDelay * 2^attempt). When false the delay is constant.
	RetryBackoff bool

	// AlwaysEager makes Submit execute the task synchronously in the
	// caller's goroutine. Used in tests.
	AlwaysEager bool

	// StuckTaskAge defines how long a task can be in processing state
	// before it's considered stuck and reset
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              100,
		MaxRetries:             5,
		RetryDelay:             5 * time.Second,
		RetryBackoff:           true,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner manages background task processing.
//
// Tasks are persisted via the TaskStore before they enter the in-memory
// queue and are only marked completed or failed after Execute returns,
// which gives at-least-once semantics: a crash mid-execution leaves the
// task in processing state, and recovery resets and re-runs it. Every
// task must therefore tolerate duplicate execution.
//
// Retryable faults (see errors.go) are re-attempted in place with a
// bounded exponential backoff; exhaustion or a non-retryable error fails
// the task and routes the final fault to the failure handler.
type TaskRunner struct {
	store       TaskStore
	queue       *TaskQueue
	rehydrators map[string]RehydrateFunc
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
	config      TaskRunnerConfig
	logger      *slog.Logger
	failHandler func(task Task, err error)
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(store TaskStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		store:       store,
		queue:       NewTaskQueue(config.QueueSize, logger),
		rehydrators: make(map[string]RehydrateFunc),
		ctx:         ctx,
		cancelFunc:  cancel,
		wg:          sync.WaitGroup{},
		config:      config,
		logger:      logger,
		failHandler: func(task Task, err error) {
			// Default failure handler just logs the dead-lettered task
			logger.Error("task failed permanently",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetFailureHandler installs a custom handler for permanently failed
// tasks (the dead-letter hook).
func (r *TaskRunner) SetFailureHandler(handler func(task Task, err error)) {
	r.failHandler = handler
}

// RegisterRehydrator associates a task type with a function that can
// recreate an executable task from its persisted payload. Recovery marks
// tasks of unregistered types as failed.
func (r *TaskRunner) RegisterRehydrator(taskType string, fn RehydrateFunc) {
	r.rehydrators[taskType] = fn
}

// Submit adds a new task to the queue. The task is saved to the store
// first, so it survives a crash between submission and execution.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if r.config.AlwaysEager {
		r.processTask(task, -1)
		return nil
	}

	if err := r.queue.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Start initializes the worker pool and begins processing tasks
func (r *TaskRunner) Start() error {
	// Recover unfinished tasks from previous runs
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	return nil
}

// Stop gracefully shuts down the task runner
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
	r.queue.Close()
}

// Recover loads any unfinished tasks from the database and requeues
// them. Tasks found in processing state were interrupted by a crash and
// are reset to pending first.
func (r *TaskRunner) Recover() error {
	ctx := context.Background()

	pendingTasks, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processingTasks, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pendingTasks),
		"processing_count", len(processingTasks))

	for _, t := range pendingTasks {
		r.requeueRecovered(ctx, t)
	}

	for _, t := range processingTasks {
		if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending, "Reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", t.ID(),
				"task_type", t.Type(),
				"error", err)
			continue
		}

		r.requeueRecovered(ctx, t)
	}

	return nil
}

// requeueRecovered rehydrates a task loaded from the store into its
// executable form and puts it back on the queue.
func (r *TaskRunner) requeueRecovered(ctx context.Context, t Task) {
	executable, err := r.rehydrate(t)
	if err != nil {
		r.logger.Error("failed to rehydrate recovered task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark unrecoverable task as failed",
				"task_id", t.ID(),
				"error", updateErr)
		}
		return
	}

	if err := r.queue.Enqueue(executable); err != nil {
		r.logger.Error("failed to requeue recovered task",
			"task_id", t.ID(),
			"task_type", t.Type(),
			"error", err)
	}
}

// rehydrate turns a store-loaded task into an executable one using the
// registered rehydrator for its type.
func (r *TaskRunner) rehydrate(t Task) (Task, error) {
	fn, ok := r.rehydrators[t.Type()]
	if !ok {
		return nil, fmt.Errorf("no rehydrator registered for task type %q", t.Type())
	}
	return fn(t.ID(), t.Payload())
}

// worker processes tasks from the queue
func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case task, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.processTask(task, id)
		}
	}
}

// processTask handles execution of a single task, including the bounded
// retry policy for retryable faults.
func (r *TaskRunner) processTask(task Task, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}

	logger.Info("processing task")

	result, err := r.executeWithRetry(ctx, task, logger)

	if err != nil {
		logger.Error("task failed permanently", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}

		r.failHandler(task, err)
	} else {
		logger.Info("task completed", "result", result)
		if updateErr := r.store.UpdateTaskStatus(ctx, task.ID(), TaskStatusCompleted, result); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
	}
}

// executeWithRetry runs the task, re-attempting retryable faults up to
// MaxRetries times with the configured backoff. Non-retryable errors and
// retry exhaustion return the last fault to the caller.
func (r *TaskRunner) executeWithRetry(ctx context.Context, task Task, logger *slog.Logger) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := task.Execute(ctx)
		if err == nil {
			return result, nil
		}

		if !IsRetryable(err) {
			return "", err
		}

		lastErr = err

		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.retryDelay(attempt)
		logger.Warn("task raised retryable fault, retrying",
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetries+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-r.ctx.Done():
			return "", fmt.Errorf("task runner stopped during retry delay: %w", lastErr)
		case <-ctx.Done():
			return "", fmt.Errorf("task cancelled during retry delay: %w", lastErr)
		}
	}

	return "", fmt.Errorf("exceeded maximum retry attempts (%d): %w", r.config.MaxRetries, lastErr)
}

// retryDelay computes the wait before the next attempt.
func (r *TaskRunner) retryDelay(attempt int) time.Duration {
	if !r.config.RetryBackoff {
		return r.config.RetryDelay
	}
	return r.config.RetryDelay * time.Duration(1<<uint(attempt))
}

// stuckTaskMonitor periodically checks for tasks that have been in
// "processing" state for too long and resets them.
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuckTasks, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}

			if len(stuckTasks) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuckTasks))

			for _, t := range stuckTasks {
				if err := r.store.UpdateTaskStatus(ctx, t.ID(), TaskStatusPending,
					"Reset after being stuck in processing state"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", t.ID(),
						"task_type", t.Type(),
						"error", err)
					continue
				}

				r.requeueRecovered(ctx, t)
			}
		}
	}
}

// Ensure TaskRunner satisfies TaskSubmitter
var _ TaskSubmitter = (*TaskRunner)(nil)
