package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/store"
)

// Common errors
var (
	ErrNilUserStore        = errors.New("user store cannot be nil")
	ErrNilGeolocationStore = errors.New("geolocation store cannot be nil")
	ErrNilGeolocationAPI   = errors.New("geolocation API client cannot be nil")
	ErrNilSubmitter        = errors.New("task submitter cannot be nil")
	ErrNilHolidayFactory   = errors.New("holiday task factory cannot be nil")
	ErrNilLogger           = errors.New("logger cannot be nil")
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyIPAddress      = errors.New("IP address cannot be empty")
)

// GeolocationAPI defines the outbound call this task makes to the IP
// geolocation provider. The client returns the raw status code and body;
// interpretation and retry decisions live here, not in the client.
type GeolocationAPI interface {
	GetGeolocation(ctx context.Context, ipAddress string) (int, []byte, error)
}

// geolocationTaskPayload represents the serialized data stored in the task
type geolocationTaskPayload struct {
	UserID        int64  `json:"user_id"`
	IPAddress     string `json:"ip_address"`
	SignupTimeUTC string `json:"signup_time_utc"`
}

// GeolocationTask implements the Task interface for stage one of the
// signup enrichment pipeline: look up the new user's IP geolocation,
// persist it, and chain the holiday update task.
type GeolocationTask struct {
	id             uuid.UUID
	userID         int64
	ipAddress      string
	signupTimeUTC  string
	userStore      store.UserStore
	geoStore       store.GeolocationStore
	client         GeolocationAPI
	holidayFactory *HolidayTaskFactory
	submitter      TaskSubmitter
	logger         *slog.Logger
	status         TaskStatus
}

// NewGeolocationTask creates a new geolocation creation task.
func NewGeolocationTask(
	id uuid.UUID,
	userID int64,
	ipAddress string,
	signupTimeUTC string,
	userStore store.UserStore,
	geoStore store.GeolocationStore,
	client GeolocationAPI,
	holidayFactory *HolidayTaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) (*GeolocationTask, error) {
	if userStore == nil {
		return nil, ErrNilUserStore
	}
	if geoStore == nil {
		return nil, ErrNilGeolocationStore
	}
	if client == nil {
		return nil, ErrNilGeolocationAPI
	}
	if holidayFactory == nil {
		return nil, ErrNilHolidayFactory
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if userID == 0 {
		return nil, ErrEmptyUserID
	}
	if ipAddress == "" {
		return nil, ErrEmptyIPAddress
	}

	if id == uuid.Nil {
		id = uuid.New()
	}

	return &GeolocationTask{
		id:             id,
		userID:         userID,
		ipAddress:      ipAddress,
		signupTimeUTC:  signupTimeUTC,
		userStore:      userStore,
		geoStore:       geoStore,
		client:         client,
		holidayFactory: holidayFactory,
		submitter:      submitter,
		logger:         logger.With("task_type", TaskTypeGeolocationCreate, "user_id", userID),
		status:         TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *GeolocationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *GeolocationTask) Type() string {
	return TaskTypeGeolocationCreate
}

// Payload returns the task data as a byte slice
func (t *GeolocationTask) Payload() []byte {
	data, err := json.Marshal(geolocationTaskPayload{
		UserID:        t.userID,
		IPAddress:     t.ipAddress,
		SignupTimeUTC: t.signupTimeUTC,
	})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *GeolocationTask) Status() TaskStatus {
	return t.status
}

// Execute runs the geolocation lookup.
//
// A missing user and a non-retryable provider status are terminal
// business outcomes, reported through the result string with a nil
// error. Transport faults and retryable statuses surface as retryable
// errors for the runner's bounded retry policy.
func (t *GeolocationTask) Execute(ctx context.Context) (string, error) {
	t.status = TaskStatusProcessing
	logPrefix := fmt.Sprintf("User_%d@%s: ", t.userID, t.ipAddress)

	_, err := t.userStore.GetByID(ctx, t.userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Deleted between signup and task execution; nothing to enrich.
			message := logPrefix + "User cannot be found in DB! Skipping geolocation creation."
			t.logger.Warn(message)
			t.status = TaskStatusCompleted
			return message, nil
		}
		t.status = TaskStatusFailed
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	statusCode, body, err := t.client.GetGeolocation(ctx, t.ipAddress)
	if err != nil {
		t.logger.Warn(logPrefix+"Request to geolocation api failed",
			"error", err)
		t.status = TaskStatusFailed
		return "", classifyClientError(err)
	}

	switch {
	case statusCode == http.StatusOK:
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.status = TaskStatusFailed
			return "", fmt.Errorf("failed to parse geolocation response: %w", err)
		}

		geo, err := domain.NewGeolocation(t.userID, t.ipAddress, payload)
		if err != nil {
			t.status = TaskStatusFailed
			return "", err
		}

		if err := t.geoStore.Create(ctx, geo); err != nil {
			// A redelivered task finds the record already written; the
			// uniqueness constraint makes this already-done, not an error.
			if !errors.Is(err, store.ErrGeolocationExists) {
				t.status = TaskStatusFailed
				return "", fmt.Errorf("failed to persist geolocation: %w", err)
			}
			t.logger.Info(logPrefix + "Geolocation already exists, treating as done.")
		}

		t.enqueueHolidayUpdate(ctx, logPrefix)

		t.status = TaskStatusCompleted
		return logPrefix + "Successfully created geolocation information.", nil

	case IsRetryableStatusCode(statusCode):
		message := fmt.Sprintf(
			"%sGeolocation api returned a retryable status code - %d.", logPrefix, statusCode)
		t.logger.Warn(message)
		t.status = TaskStatusFailed
		return "", &RetryableStatusError{Message: message, StatusCode: statusCode}

	default:
		message := fmt.Sprintf(
			"%sGeolocation api response status code %d is not good to retry.", logPrefix, statusCode)
		t.logger.Warn(message)
		t.status = TaskStatusCompleted
		return message, nil
	}
}

// enqueueHolidayUpdate chains stage two of the pipeline. An enqueue
// failure leaves the record without a holiday flag permanently; there is
// no compensating action, so it is logged loudly for operators.
func (t *GeolocationTask) enqueueHolidayUpdate(ctx context.Context, logPrefix string) {
	holidayTask, err := t.holidayFactory.CreateTask(t.userID, t.signupTimeUTC)
	if err != nil {
		t.logger.Error(logPrefix+"Failed to create holiday update task",
			"error", err)
		return
	}

	if err := t.submitter.Submit(ctx, holidayTask); err != nil {
		t.logger.Error(logPrefix+"Failed to enqueue holiday update task; holiday flag will stay unset",
			"error", err)
	}
}

// GeolocationTaskFactory creates GeolocationTask instances with their
// dependencies wired in.
type GeolocationTaskFactory struct {
	userStore      store.UserStore
	geoStore       store.GeolocationStore
	client         GeolocationAPI
	holidayFactory *HolidayTaskFactory
	submitter      TaskSubmitter
	logger         *slog.Logger
}

// NewGeolocationTaskFactory creates a new factory for GeolocationTasks
func NewGeolocationTaskFactory(
	userStore store.UserStore,
	geoStore store.GeolocationStore,
	client GeolocationAPI,
	holidayFactory *HolidayTaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) *GeolocationTaskFactory {
	return &GeolocationTaskFactory{
		userStore:      userStore,
		geoStore:       geoStore,
		client:         client,
		holidayFactory: holidayFactory,
		submitter:      submitter,
		logger:         logger.With("component", "geolocation_task_factory"),
	}
}

// CreateTask creates a new GeolocationTask for the given signup.
func (f *GeolocationTaskFactory) CreateTask(userID int64, ipAddress, signupTimeUTC string) (Task, error) {
	return NewGeolocationTask(
		uuid.Nil,
		userID,
		ipAddress,
		signupTimeUTC,
		f.userStore,
		f.geoStore,
		f.client,
		f.holidayFactory,
		f.submitter,
		f.logger,
	)
}

// Rehydrate recreates a GeolocationTask from its persisted id and payload.
func (f *GeolocationTaskFactory) Rehydrate(id uuid.UUID, payload []byte) (Task, error) {
	var p geolocationTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geolocation task payload: %w", err)
	}

	return NewGeolocationTask(
		id,
		p.UserID,
		p.IPAddress,
		p.SignupTimeUTC,
		f.userStore,
		f.geoStore,
		f.client,
		f.holidayFactory,
		f.submitter,
		f.logger,
	)
}
