package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/social-text-api/internal/store"
)

// Holiday task errors
var (
	ErrNilHolidayAPI       = errors.New("holiday API client cannot be nil")
	ErrEmptyGeolocationID  = errors.New("geolocation ID cannot be empty")
	ErrMissingCountryCode  = errors.New("geolocation payload is missing country_code")
	ErrMissingTimezoneName = errors.New("geolocation payload is missing timezone name")
)

// HolidayAPI defines the outbound call this task makes to the holiday
// calendar provider. The client returns the raw status code and body;
// interpretation and retry decisions live here, not in the client.
type HolidayAPI interface {
	GetHolidays(ctx context.Context, countryCode string, year, month, day int) (int, []byte, error)
}

// holidayTaskPayload represents the serialized data stored in the task
type holidayTaskPayload struct {
	GeolocationID int64  `json:"geolocation_id"`
	SignupTimeUTC string `json:"signup_time_utc"`
}

// HolidayTask implements the Task interface for stage two of the signup
// enrichment pipeline: convert the signup instant to the user's local
// date, ask the holiday provider about that date, and set the
// signed_up_on_holiday flag.
//
// Duplicate delivery is naturally idempotent: the task recomputes the
// same deterministic value and overwrites the flag.
type HolidayTask struct {
	id            uuid.UUID
	geolocationID int64
	signupTimeUTC string
	geoStore      store.GeolocationStore
	client        HolidayAPI
	logger        *slog.Logger
	status        TaskStatus
}

// NewHolidayTask creates a new holiday update task.
func NewHolidayTask(
	id uuid.UUID,
	geolocationID int64,
	signupTimeUTC string,
	geoStore store.GeolocationStore,
	client HolidayAPI,
	logger *slog.Logger,
) (*HolidayTask, error) {
	if geoStore == nil {
		return nil, ErrNilGeolocationStore
	}
	if client == nil {
		return nil, ErrNilHolidayAPI
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if geolocationID == 0 {
		return nil, ErrEmptyGeolocationID
	}

	if id == uuid.Nil {
		id = uuid.New()
	}

	return &HolidayTask{
		id:            id,
		geolocationID: geolocationID,
		signupTimeUTC: signupTimeUTC,
		geoStore:      geoStore,
		client:        client,
		logger:        logger.With("task_type", TaskTypeHolidayUpdate, "geolocation_id", geolocationID),
		status:        TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *HolidayTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *HolidayTask) Type() string {
	return TaskTypeHolidayUpdate
}

// Payload returns the task data as a byte slice
func (t *HolidayTask) Payload() []byte {
	data, err := json.Marshal(holidayTaskPayload{
		GeolocationID: t.geolocationID,
		SignupTimeUTC: t.signupTimeUTC,
	})
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *HolidayTask) Status() TaskStatus {
	return t.status
}

// Execute runs the holiday lookup and flag update.
//
// A malformed stored payload (missing country_code or timezone name) and
// a bad timestamp/timezone are NOT retryable: they fail the task
// immediately through the runner's failure handler, since no number of
// re-attempts changes the stored data.
func (t *HolidayTask) Execute(ctx context.Context) (string, error) {
	t.status = TaskStatusProcessing
	logPrefix := fmt.Sprintf("Geolocation_%d: ", t.geolocationID)

	geo, err := t.geoStore.GetByUserID(ctx, t.geolocationID)
	if err != nil {
		if errors.Is(err, store.ErrGeolocationNotFound) {
			message := logPrefix + "Geolocation cannot be found in DB! Skipping holiday column update."
			t.logger.Warn(message)
			t.status = TaskStatusCompleted
			return message, nil
		}
		t.status = TaskStatusFailed
		return "", fmt.Errorf("failed to look up geolocation: %w", err)
	}

	countryCode, timezoneName, err := extractHolidayKeys(geo.Payload)
	if err != nil {
		t.status = TaskStatusFailed
		return "", fmt.Errorf("%s%w", logPrefix, err)
	}

	localTime, err := ConvertUTCToZone(t.signupTimeUTC, timezoneName)
	if err != nil {
		t.status = TaskStatusFailed
		return "", fmt.Errorf("%s%w", logPrefix, err)
	}

	statusCode, body, err := t.client.GetHolidays(
		ctx, countryCode, localTime.Year(), int(localTime.Month()), localTime.Day())
	if err != nil {
		t.logger.Warn(logPrefix+"Request to holiday api failed",
			"error", err)
		t.status = TaskStatusFailed
		return "", classifyClientError(err)
	}

	switch {
	case statusCode == http.StatusOK:
		var holidays []any
		if err := json.Unmarshal(body, &holidays); err != nil {
			t.status = TaskStatusFailed
			return "", fmt.Errorf("failed to parse holiday response: %w", err)
		}

		onHoliday := len(holidays) > 0
		if err := t.geoStore.SetSignedUpOnHoliday(ctx, t.geolocationID, onHoliday); err != nil {
			t.status = TaskStatusFailed
			return "", fmt.Errorf("failed to update holiday flag: %w", err)
		}

		t.status = TaskStatusCompleted
		return logPrefix + "Successfully updated holiday information.", nil

	case IsRetryableStatusCode(statusCode):
		message := fmt.Sprintf(
			"%sHoliday api returned a retryable status code - %d.", logPrefix, statusCode)
		t.logger.Warn(message)
		t.status = TaskStatusFailed
		return "", &RetryableStatusError{Message: message, StatusCode: statusCode}

	default:
		message := fmt.Sprintf(
			"%sHoliday api response status code %d is not good to retry.", logPrefix, statusCode)
		t.logger.Warn(message)
		t.status = TaskStatusCompleted
		return message, nil
	}
}

// extractHolidayKeys pulls the country code and the nested timezone name
// out of the stored provider payload.
func extractHolidayKeys(payload map[string]any) (countryCode, timezoneName string, err error) {
	countryCode, ok := payload["country_code"].(string)
	if !ok || countryCode == "" {
		return "", "", ErrMissingCountryCode
	}

	timezone, ok := payload["timezone"].(map[string]any)
	if !ok {
		return "", "", ErrMissingTimezoneName
	}

	timezoneName, ok = timezone["name"].(string)
	if !ok || timezoneName == "" {
		return "", "", ErrMissingTimezoneName
	}

	return countryCode, timezoneName, nil
}

// HolidayTaskFactory creates HolidayTask instances with their
// dependencies wired in.
type HolidayTaskFactory struct {
	geoStore store.GeolocationStore
	client   HolidayAPI
	logger   *slog.Logger
}

// NewHolidayTaskFactory creates a new factory for HolidayTasks
func NewHolidayTaskFactory(
	geoStore store.GeolocationStore,
	client HolidayAPI,
	logger *slog.Logger,
) *HolidayTaskFactory {
	return &HolidayTaskFactory{
		geoStore: geoStore,
		client:   client,
		logger:   logger.With("component", "holiday_task_factory"),
	}
}

// CreateTask creates a new HolidayTask for the given geolocation record.
func (f *HolidayTaskFactory) CreateTask(geolocationID int64, signupTimeUTC string) (Task, error) {
	return NewHolidayTask(uuid.Nil, geolocationID, signupTimeUTC, f.geoStore, f.client, f.logger)
}

// Rehydrate recreates a HolidayTask from its persisted id and payload.
func (f *HolidayTaskFactory) Rehydrate(id uuid.UUID, payload []byte) (Task, error) {
	var p holidayTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal holiday task payload: %w", err)
	}

	return NewHolidayTask(id, p.GeolocationID, p.SignupTimeUTC, f.geoStore, f.client, f.logger)
}
