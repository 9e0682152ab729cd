package domain

import (
	"errors"
	"time"
)

// Geolocation validation errors
var (
	ErrEmptyGeolocationUserID  = errors.New("geolocation user ID cannot be empty")
	ErrEmptyGeolocationPayload = errors.New("geolocation payload cannot be empty")
)

// Geolocation represents signup enrichment data attached to exactly one
// user. The owning user's ID is also this record's primary key, which is
// what makes redelivered create-geolocation tasks safe: a second insert
// for the same user fails the uniqueness constraint instead of creating
// a duplicate row.
//
// Payload holds the geolocation provider's response verbatim. The holiday
// update task later expects a "country_code" key and a nested
// "timezone"."name" key inside it; their absence fails that task.
//
// SignedUpOnHoliday is tri-state: nil until the holiday update task has
// completed for this record, then true or false. It is never reset to nil.
type Geolocation struct {
	UserID            int64          `json:"user_id"`
	IPAddress         string         `json:"ip_address"`
	Payload           map[string]any `json:"geolocation"`
	SignedUpOnHoliday *bool          `json:"signed_up_on_holiday"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// NewGeolocation creates a new Geolocation record for the given user.
func NewGeolocation(userID int64, ipAddress string, payload map[string]any) (*Geolocation, error) {
	geo := &Geolocation{
		UserID:    userID,
		IPAddress: ipAddress,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := geo.Validate(); err != nil {
		return nil, err
	}

	return geo, nil
}

// Validate checks if the Geolocation has valid data.
func (g *Geolocation) Validate() error {
	if g.UserID == 0 {
		return ErrEmptyGeolocationUserID
	}

	if g.Payload == nil {
		return ErrEmptyGeolocationPayload
	}

	return nil
}
