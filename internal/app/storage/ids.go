package storage

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for a place or measurement.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current UTC time truncated to the microsecond precision
// kept by the SQL backends, so a returned record equals its stored form.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
