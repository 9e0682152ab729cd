package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task type constants
const (
	// TaskTypeGeolocationCreate looks up a new user's IP geolocation and
	// persists it (pipeline stage one).
	TaskTypeGeolocationCreate = "geolocation_create"

	// TaskTypeHolidayUpdate determines whether the user signed up on a
	// public holiday in their local timezone (pipeline stage two).
	TaskTypeHolidayUpdate = "holiday_update"
)

// Task represents a unit of background work to be processed.
//
// Execute returns a human-readable result message and an error. A nil
// error covers both genuine success and terminal business outcomes
// (entity missing, provider rejected the request with a non-retryable
// status); the message distinguishes them for the task record. A
// retryable fault is signalled with RetryableError or
// RetryableStatusError; any other error fails the task immediately.
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Payload returns the task data as a byte slice
	Payload() []byte

	// Status returns the current task status
	Status() TaskStatus

	// Execute runs the task logic
	Execute(ctx context.Context) (string, error)
}

// TaskSubmitter enqueues tasks for background processing. It is the
// narrow interface tasks and handlers use to chain or trigger work
// without depending on the full runner.
type TaskSubmitter interface {
	// Submit persists the task and schedules it for execution.
	Submit(ctx context.Context, task Task) error
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a task to the database
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task. The message records
	// the task's result string on completion or the failure reason.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, message string) error

	// GetPendingTasks retrieves all tasks with "pending" status
	GetPendingTasks(ctx context.Context) ([]Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status.
	// If olderThan is non-zero, only returns tasks that have been in this
	// state longer than the specified duration.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)
}

// RehydrateFunc recreates a concrete, executable task from its persisted
// id and payload. The runner uses registered rehydrators to recover
// tasks that were pending or in flight when the process stopped.
type RehydrateFunc func(id uuid.UUID, payload []byte) (Task, error)
