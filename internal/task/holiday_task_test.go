package task

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/store"
)

func storedGeolocation(payload map[string]any) *domain.Geolocation {
	return &domain.Geolocation{
		UserID:    1,
		IPAddress: "203.0.113.5",
		Payload:   payload,
	}
}

type holidayTaskDeps struct {
	geoStore *mockGeolocationStore
	client   *mockHolidayAPI
}

func newHolidayTaskDeps() holidayTaskDeps {
	return holidayTaskDeps{
		geoStore: &mockGeolocationStore{
			GetByUserIDFn: func(ctx context.Context, userID int64) (*domain.Geolocation, error) {
				return storedGeolocation(map[string]any{
					"country_code": "TR",
					"timezone":     map[string]any{"name": "Europe/Istanbul"},
				}), nil
			},
		},
		client: &mockHolidayAPI{statusCode: http.StatusOK, body: []byte(`[]`)},
	}
}

func (d holidayTaskDeps) newTask(t *testing.T) *HolidayTask {
	t.Helper()

	task, err := NewHolidayTask(
		uuid.Nil, 1, "2023-09-30 22:30:00", d.geoStore, d.client, discardLogger())
	require.NoError(t, err)
	return task
}

func TestHolidayTaskExecute(t *testing.T) {
	t.Parallel()

	t.Run("queries the provider for the user's local signup date", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.client.body = []byte(`[{"name":"Republic Day"}]`)

		var flagUser int64
		var flagValue bool
		deps.geoStore.SetSignedUpOnHolidayFn = func(ctx context.Context, userID int64, onHoliday bool) error {
			flagUser = userID
			flagValue = onHoliday
			return nil
		}

		message, err := deps.newTask(t).Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "Geolocation_1: Successfully updated holiday information.", message)

		// 22:30 UTC on Sep 30 is Oct 1 in Istanbul; the provider must be
		// asked about the local date, not the UTC one.
		assert.Equal(t, "TR", deps.client.lastCountryCode)
		assert.Equal(t, 2023, deps.client.lastYear)
		assert.Equal(t, 10, deps.client.lastMonth)
		assert.Equal(t, 1, deps.client.lastDay)

		assert.Equal(t, int64(1), flagUser)
		assert.True(t, flagValue)
	})

	t.Run("an empty holiday list clears the flag", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()

		var flagValue bool
		var flagWritten bool
		deps.geoStore.SetSignedUpOnHolidayFn = func(ctx context.Context, userID int64, onHoliday bool) error {
			flagValue = onHoliday
			flagWritten = true
			return nil
		}

		_, err := deps.newTask(t).Execute(context.Background())
		require.NoError(t, err)

		assert.True(t, flagWritten)
		assert.False(t, flagValue)
	})

	t.Run("skips the update when the record no longer exists", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.geoStore.GetByUserIDFn = func(ctx context.Context, userID int64) (*domain.Geolocation, error) {
			return nil, store.ErrGeolocationNotFound
		}

		message, err := deps.newTask(t).Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t,
			"Geolocation_1: Geolocation cannot be found in DB! Skipping holiday column update.",
			message)
		assert.Zero(t, deps.client.calls)
	})

	t.Run("a payload without a country code fails without retry", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.geoStore.GetByUserIDFn = func(ctx context.Context, userID int64) (*domain.Geolocation, error) {
			return storedGeolocation(map[string]any{
				"timezone": map[string]any{"name": "Europe/Istanbul"},
			}), nil
		}

		_, err := deps.newTask(t).Execute(context.Background())
		assert.ErrorIs(t, err, ErrMissingCountryCode)
		assert.False(t, IsRetryable(err))
	})

	t.Run("a payload without a timezone name fails without retry", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.geoStore.GetByUserIDFn = func(ctx context.Context, userID int64) (*domain.Geolocation, error) {
			return storedGeolocation(map[string]any{"country_code": "TR"}), nil
		}

		_, err := deps.newTask(t).Execute(context.Background())
		assert.ErrorIs(t, err, ErrMissingTimezoneName)
	})

	t.Run("an unknown stored timezone fails without retry", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.geoStore.GetByUserIDFn = func(ctx context.Context, userID int64) (*domain.Geolocation, error) {
			return storedGeolocation(map[string]any{
				"country_code": "TR",
				"timezone":     map[string]any{"name": "DUMMY_TIMEZONE"},
			}), nil
		}

		_, err := deps.newTask(t).Execute(context.Background())
		assert.ErrorIs(t, err, ErrUnknownTimezone)
		assert.False(t, IsRetryable(err))
	})

	t.Run("wraps transport faults as retryable", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.client.err = &url.Error{Op: "Get", URL: "https://holidays.abstractapi.com/v1/",
			Err: errors.New("dial tcp: i/o timeout")}

		_, err := deps.newTask(t).Execute(context.Background())

		var retryable *RetryableError
		require.ErrorAs(t, err, &retryable)
	})

	t.Run("client errors raised before the request is sent are permanent", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.client.err = errors.New("failed to build request: missing protocol scheme")

		_, err := deps.newTask(t).Execute(context.Background())

		require.Error(t, err)
		assert.False(t, IsRetryable(err))
	})

	t.Run("raises a retryable status error for transient provider codes", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.client.statusCode = http.StatusTooManyRequests

		_, err := deps.newTask(t).Execute(context.Background())

		var statusErr *RetryableStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
		assert.Equal(t,
			"Geolocation_1: Holiday api returned a retryable status code - 429.",
			statusErr.Message)
	})

	t.Run("completes without a flag write on terminal provider codes", func(t *testing.T) {
		t.Parallel()

		deps := newHolidayTaskDeps()
		deps.client.statusCode = http.StatusForbidden

		var flagWritten bool
		deps.geoStore.SetSignedUpOnHolidayFn = func(ctx context.Context, userID int64, onHoliday bool) error {
			flagWritten = true
			return nil
		}

		message, err := deps.newTask(t).Execute(context.Background())
		require.NoError(t, err)

		assert.Equal(t,
			"Geolocation_1: Holiday api response status code 403 is not good to retry.",
			message)
		assert.False(t, flagWritten)
	})
}

func TestNewHolidayTaskValidation(t *testing.T) {
	t.Parallel()

	deps := newHolidayTaskDeps()

	_, err := NewHolidayTask(uuid.Nil, 0, "2023-09-30 22:30:00", deps.geoStore, deps.client, discardLogger())
	assert.ErrorIs(t, err, ErrEmptyGeolocationID)

	_, err = NewHolidayTask(uuid.Nil, 1, "2023-09-30 22:30:00", nil, deps.client, discardLogger())
	assert.ErrorIs(t, err, ErrNilGeolocationStore)

	_, err = NewHolidayTask(uuid.Nil, 1, "2023-09-30 22:30:00", deps.geoStore, nil, discardLogger())
	assert.ErrorIs(t, err, ErrNilHolidayAPI)
}

func TestHolidayTaskFactoryRehydrate(t *testing.T) {
	t.Parallel()

	deps := newHolidayTaskDeps()
	factory := NewHolidayTaskFactory(deps.geoStore, deps.client, discardLogger())

	original, err := factory.CreateTask(9, "2023-12-25 08:00:00")
	require.NoError(t, err)

	rehydrated, err := factory.Rehydrate(original.ID(), original.Payload())
	require.NoError(t, err)

	assert.Equal(t, original.ID(), rehydrated.ID())
	assert.Equal(t, TaskTypeHolidayUpdate, rehydrated.Type())
	assert.Equal(t, original.Payload(), rehydrated.Payload())
}
