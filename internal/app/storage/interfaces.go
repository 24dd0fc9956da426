package storage

import (
	"context"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
)

// PlaceStore persists places and reads them back with their measurements.
type PlaceStore interface {
	CreatePlace(ctx context.Context, p place.Place) (place.Place, error)
	// ListPlacesWithMeasurements returns every place with all of its
	// measurements in one consistent read, places and measurements each
	// ordered by creation time then id.
	ListPlacesWithMeasurements(ctx context.Context) ([]place.WithMeasurements, error)
}

// MeasurementStore persists measurements. CreateMeasurement must fail with a
// referential-integrity StorageError when the place does not exist.
type MeasurementStore interface {
	CreateMeasurement(ctx context.Context, m place.Measurement) (place.Measurement, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is the full storage surface implemented by every backend.
type Store interface {
	PlaceStore
	MeasurementStore
	Pinger
	Close() error
}
