package task

import (
	"errors"
	"fmt"
	"time"
)

// signupTimeLayout is the exact wire format for signup instants handed to
// the enrichment pipeline. No alternate formats are accepted.
const signupTimeLayout = "2006-01-02 15:04:05"

// Time conversion errors
var (
	ErrInvalidTimestamp = errors.New("timestamp does not match format YYYY-MM-DD HH:MM:SS")
	ErrUnknownTimezone  = errors.New("unknown timezone name")
)

// ConvertUTCToZone interprets value as a UTC wall-clock time in the exact
// format "YYYY-MM-DD HH:MM:SS" and returns the equivalent time in the
// named IANA timezone. Pure function; DST at the conversion instant is
// handled by the timezone database.
func ConvertUTCToZone(value, zone string) (time.Time, error) {
	utc, err := time.ParseInLocation(signupTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, value)
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTimezone, zone)
	}

	return utc.In(loc), nil
}

// FormatSignupTime renders t in the pipeline's wire format, in UTC.
func FormatSignupTime(t time.Time) string {
	return t.UTC().Format(signupTimeLayout)
}
