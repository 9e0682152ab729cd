package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockTaskStore implements the TaskStore interface for testing. It keeps
// the last status and message per task so tests can assert on the state
// transitions the runner performs.
type MockTaskStore struct {
	mutex           sync.RWMutex
	tasks           map[uuid.UUID]Task
	statuses        map[uuid.UUID]TaskStatus
	messages        map[uuid.UUID]string
	taskStatusTimes map[uuid.UUID]time.Time
	SaveFn          func(ctx context.Context, task Task) error
	UpdateStatusFn  func(ctx context.Context, taskID uuid.UUID, status TaskStatus, message string) error
}

// NewMockTaskStore creates a new MockTaskStore with default implementations
func NewMockTaskStore() *MockTaskStore {
	store := &MockTaskStore{
		tasks:           make(map[uuid.UUID]Task),
		statuses:        make(map[uuid.UUID]TaskStatus),
		messages:        make(map[uuid.UUID]string),
		taskStatusTimes: make(map[uuid.UUID]time.Time),
	}

	store.SaveFn = func(ctx context.Context, task Task) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		store.tasks[task.ID()] = task
		store.statuses[task.ID()] = task.Status()
		store.taskStatusTimes[task.ID()] = time.Now()
		return nil
	}

	store.UpdateStatusFn = func(ctx context.Context, taskID uuid.UUID, status TaskStatus, message string) error {
		store.mutex.Lock()
		defer store.mutex.Unlock()

		if _, exists := store.tasks[taskID]; !exists {
			return nil
		}

		store.statuses[taskID] = status
		store.messages[taskID] = message
		store.taskStatusTimes[taskID] = time.Now()
		return nil
	}

	return store
}

// SaveTask persists a task to the mock store
func (s *MockTaskStore) SaveTask(ctx context.Context, task Task) error {
	return s.SaveFn(ctx, task)
}

// UpdateTaskStatus updates the status of a task in the mock store
func (s *MockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	message string,
) error {
	return s.UpdateStatusFn(ctx, taskID, status, message)
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *MockTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var pendingTasks []Task
	for id, task := range s.tasks {
		if s.statuses[id] == TaskStatusPending {
			pendingTasks = append(pendingTasks, task)
		}
	}

	return pendingTasks, nil
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *MockTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var processingTasks []Task
	now := time.Now()

	for id, task := range s.tasks {
		if s.statuses[id] == TaskStatusProcessing {
			statusTime, exists := s.taskStatusTimes[id]
			if olderThan == 0 || (exists && now.Sub(statusTime) > olderThan) {
				processingTasks = append(processingTasks, task)
			}
		}
	}

	return processingTasks, nil
}

// TaskStatusFor returns the last status written for the given task.
func (s *MockTaskStore) TaskStatusFor(taskID uuid.UUID) (TaskStatus, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status, ok := s.statuses[taskID]
	return status, ok
}

// TaskMessageFor returns the last status message written for the given task.
func (s *MockTaskStore) TaskMessageFor(taskID uuid.UUID) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.messages[taskID]
}
