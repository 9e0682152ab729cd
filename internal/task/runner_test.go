package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eagerRunnerConfig returns a config that executes tasks synchronously
// with no retry delay, which keeps these tests fast and deterministic.
func eagerRunnerConfig() TaskRunnerConfig {
	cfg := DefaultTaskRunnerConfig()
	cfg.AlwaysEager = true
	cfg.RetryDelay = time.Millisecond
	cfg.RetryBackoff = false
	return cfg
}

func TestTaskRunnerSubmit(t *testing.T) {
	t.Parallel()

	t.Run("persists the task before execution", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		var saved bool
		var executedAfterSave bool

		store.SaveFn = func(ctx context.Context, task Task) error {
			saved = true
			store.mutex.Lock()
			store.tasks[task.ID()] = task
			store.statuses[task.ID()] = task.Status()
			store.mutex.Unlock()
			return nil
		}

		task := CreateMockTaskWithPayload("persist first")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			executedAfterSave = saved
			return "done", nil
		}

		runner := NewTaskRunner(store, eagerRunnerConfig(), discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		assert.True(t, saved)
		assert.True(t, executedAfterSave, "task must be durable before it runs")
	})

	t.Run("a store failure rejects the submission", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		store.SaveFn = func(ctx context.Context, task Task) error {
			return errors.New("connection lost")
		}

		runner := NewTaskRunner(store, eagerRunnerConfig(), discardLogger())
		err := runner.Submit(context.Background(), CreateMockTaskWithPayload("doomed"))
		assert.ErrorContains(t, err, "failed to save task")
	})

	t.Run("records the result message on completion", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		task := CreateMockTaskWithPayload("result")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			return "User_1@203.0.113.5: Successfully created geolocation information.", nil
		}

		runner := NewTaskRunner(store, eagerRunnerConfig(), discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		status, ok := store.TaskStatusFor(task.ID())
		require.True(t, ok)
		assert.Equal(t, TaskStatusCompleted, status)
		assert.Equal(t,
			"User_1@203.0.113.5: Successfully created geolocation information.",
			store.TaskMessageFor(task.ID()))
	})
}

func TestTaskRunnerRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("retryable faults are re-attempted up to the limit", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := eagerRunnerConfig()
		cfg.MaxRetries = 3

		var attempts int32
		task := CreateMockTaskWithPayload("flaky")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			atomic.AddInt32(&attempts, 1)
			return "", &RetryableError{Err: errors.New("provider down")}
		}

		runner := NewTaskRunner(store, cfg, discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		assert.Equal(t, int32(cfg.MaxRetries+1), atomic.LoadInt32(&attempts))

		status, _ := store.TaskStatusFor(task.ID())
		assert.Equal(t, TaskStatusFailed, status)
		assert.Contains(t, store.TaskMessageFor(task.ID()), "exceeded maximum retry attempts")
	})

	t.Run("a retryable status error is also re-attempted", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := eagerRunnerConfig()
		cfg.MaxRetries = 2

		var attempts int32
		task := CreateMockTaskWithPayload("throttled")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			atomic.AddInt32(&attempts, 1)
			return "", &RetryableStatusError{Message: "retryable status 503", StatusCode: 503}
		}

		runner := NewTaskRunner(store, cfg, discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("non-retryable errors fail on the first attempt", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := eagerRunnerConfig()
		cfg.MaxRetries = 5

		var attempts int32
		task := CreateMockTaskWithPayload("broken")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			atomic.AddInt32(&attempts, 1)
			return "", errors.New("missing country_code")
		}

		runner := NewTaskRunner(store, cfg, discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))

		status, _ := store.TaskStatusFor(task.ID())
		assert.Equal(t, TaskStatusFailed, status)
	})

	t.Run("a success after a retryable fault completes the task", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := eagerRunnerConfig()
		cfg.MaxRetries = 5

		var attempts int32
		task := CreateMockTaskWithPayload("eventually fine")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return "", &RetryableError{Err: errors.New("blip")}
			}
			return "recovered", nil
		}

		runner := NewTaskRunner(store, cfg, discardLogger())
		require.NoError(t, runner.Submit(context.Background(), task))

		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

		status, _ := store.TaskStatusFor(task.ID())
		assert.Equal(t, TaskStatusCompleted, status)
		assert.Equal(t, "recovered", store.TaskMessageFor(task.ID()))
	})

	t.Run("exhaustion routes the final fault to the failure handler", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := eagerRunnerConfig()
		cfg.MaxRetries = 1

		task := CreateMockTaskWithPayload("dead letter")
		task.ExecuteFn = func(ctx context.Context) (string, error) {
			return "", &RetryableStatusError{Message: "no luck", StatusCode: 502}
		}

		runner := NewTaskRunner(store, cfg, discardLogger())

		var handledTask Task
		var handledErr error
		runner.SetFailureHandler(func(t Task, err error) {
			handledTask = t
			handledErr = err
		})

		require.NoError(t, runner.Submit(context.Background(), task))

		require.NotNil(t, handledTask)
		assert.Equal(t, task.ID(), handledTask.ID())

		var statusErr *RetryableStatusError
		require.ErrorAs(t, handledErr, &statusErr)
		assert.Equal(t, 502, statusErr.StatusCode)
	})
}

func TestTaskRunnerRetryDelay(t *testing.T) {
	t.Parallel()

	t.Run("constant delay without backoff", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultTaskRunnerConfig()
		cfg.RetryDelay = 5 * time.Second
		cfg.RetryBackoff = false

		runner := NewTaskRunner(NewMockTaskStore(), cfg, discardLogger())
		assert.Equal(t, 5*time.Second, runner.retryDelay(0))
		assert.Equal(t, 5*time.Second, runner.retryDelay(4))
	})

	t.Run("delay doubles per attempt with backoff", func(t *testing.T) {
		t.Parallel()

		cfg := DefaultTaskRunnerConfig()
		cfg.RetryDelay = 5 * time.Second
		cfg.RetryBackoff = true

		runner := NewTaskRunner(NewMockTaskStore(), cfg, discardLogger())
		assert.Equal(t, 5*time.Second, runner.retryDelay(0))
		assert.Equal(t, 10*time.Second, runner.retryDelay(1))
		assert.Equal(t, 40*time.Second, runner.retryDelay(3))
	})
}

func TestTaskRunnerWorkers(t *testing.T) {
	t.Parallel()

	t.Run("queued tasks are processed by the worker pool", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		cfg := DefaultTaskRunnerConfig()
		cfg.WorkerCount = 2
		cfg.QueueSize = 10

		runner := NewTaskRunner(store, cfg, discardLogger())
		require.NoError(t, runner.Start())
		defer runner.Stop()

		var wg sync.WaitGroup
		wg.Add(3)

		for i := 0; i < 3; i++ {
			task := CreateMockTaskWithPayload("concurrent")
			task.ExecuteFn = func(ctx context.Context) (string, error) {
				wg.Done()
				return "done", nil
			}
			require.NoError(t, runner.Submit(context.Background(), task))
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("workers did not process submitted tasks in time")
		}
	})
}

func TestTaskRunnerRecover(t *testing.T) {
	t.Parallel()

	t.Run("pending tasks are rehydrated and requeued", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		persisted := NewMockTask(uuid.New(), "recoverable", []byte(`{"k":"v"}`))
		require.NoError(t, store.SaveTask(context.Background(), persisted))

		cfg := DefaultTaskRunnerConfig()
		cfg.WorkerCount = 1
		runner := NewTaskRunner(store, cfg, discardLogger())

		executed := make(chan struct{})
		runner.RegisterRehydrator("recoverable", func(id uuid.UUID, payload []byte) (Task, error) {
			task := NewMockTask(id, "recoverable", payload)
			task.ExecuteFn = func(ctx context.Context) (string, error) {
				close(executed)
				return "recovered", nil
			}
			return task, nil
		})

		require.NoError(t, runner.Start())
		defer runner.Stop()

		select {
		case <-executed:
		case <-time.After(5 * time.Second):
			t.Fatal("recovered task was never executed")
		}
	})

	t.Run("a persisted task is executed exactly once on startup", func(t *testing.T) {
		t.Parallel()

		// Start recovers on its own. A second recovery pass after the
		// workers are live would sweep up tasks already in flight and
		// run them again.
		store := NewMockTaskStore()
		persisted := NewMockTask(uuid.New(), "recoverable", []byte(`{"k":"v"}`))
		require.NoError(t, store.SaveTask(context.Background(), persisted))

		cfg := DefaultTaskRunnerConfig()
		cfg.WorkerCount = 2
		runner := NewTaskRunner(store, cfg, discardLogger())

		var executions int32
		runner.RegisterRehydrator("recoverable", func(id uuid.UUID, payload []byte) (Task, error) {
			task := NewMockTask(id, "recoverable", payload)
			task.ExecuteFn = func(ctx context.Context) (string, error) {
				atomic.AddInt32(&executions, 1)
				time.Sleep(200 * time.Millisecond)
				return "recovered", nil
			}
			return task, nil
		})

		require.NoError(t, runner.Start())
		defer runner.Stop()

		time.Sleep(500 * time.Millisecond)
		assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
	})

	t.Run("interrupted processing tasks are reset to pending", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		interrupted := NewMockTask(uuid.New(), "recoverable", nil)
		interrupted.TaskStatus = TaskStatusProcessing
		require.NoError(t, store.SaveTask(context.Background(), interrupted))

		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), discardLogger())
		runner.RegisterRehydrator("recoverable", func(id uuid.UUID, payload []byte) (Task, error) {
			return NewMockTask(id, "recoverable", payload), nil
		})

		require.NoError(t, runner.Recover())

		status, ok := store.TaskStatusFor(interrupted.ID())
		require.True(t, ok)
		assert.Equal(t, TaskStatusPending, status)
	})

	t.Run("tasks of unregistered types are marked failed", func(t *testing.T) {
		t.Parallel()

		store := NewMockTaskStore()
		orphan := NewMockTask(uuid.New(), "forgotten_type", nil)
		require.NoError(t, store.SaveTask(context.Background(), orphan))

		runner := NewTaskRunner(store, DefaultTaskRunnerConfig(), discardLogger())
		require.NoError(t, runner.Recover())

		status, ok := store.TaskStatusFor(orphan.ID())
		require.True(t, ok)
		assert.Equal(t, TaskStatusFailed, status)
	})
}
