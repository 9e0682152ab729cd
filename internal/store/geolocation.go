package store

import (
	"context"

	"github.com/phrazzld/social-text-api/internal/domain"
)

// GeolocationStore defines the interface for geolocation record persistence.
//
// A geolocation record shares its primary key with the owning user, so a
// record exists for a user only after the create-geolocation task has run
// to completion for them.
type GeolocationStore interface {
	// Create saves a new geolocation record.
	// Returns ErrGeolocationExists if a record for the user already exists;
	// redelivered tasks rely on this to detect already-done work.
	// Returns ErrInvalidEntity if the owning user does not exist.
	Create(ctx context.Context, geo *domain.Geolocation) error

	// GetByUserID retrieves the geolocation record for the given user.
	// Returns ErrGeolocationNotFound if no record exists.
	GetByUserID(ctx context.Context, userID int64) (*domain.Geolocation, error)

	// SetSignedUpOnHoliday writes the holiday flag for the given record.
	// The write is an idempotent overwrite: redelivered holiday tasks
	// recompute the same deterministic value.
	// Returns ErrGeolocationNotFound if no record exists.
	SetSignedUpOnHoliday(ctx context.Context, userID int64, onHoliday bool) error
}
