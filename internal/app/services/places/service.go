// Package places implements the Quiet Map operations: registering places,
// recording noise measurements and listing places with their average level.
package places

import (
	"context"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

// CreatePlaceParams is validated input for CreatePlace. Nil flags default to
// false.
type CreatePlaceParams struct {
	Name        string
	Description *string
	Latitude    float64
	Longitude   float64

	IsStudying        *bool
	IsDimlyLit        *bool
	HasOutlets        *bool
	HasWifi           *bool
	IsPremium         *bool
	HasErgonomicChair *bool
}

// AddMeasurementParams is validated input for AddMeasurement.
type AddMeasurementParams struct {
	PlaceID string
	Value   float64
}

// Service manages places and their measurements.
type Service struct {
	places       storage.PlaceStore
	measurements storage.MeasurementStore
	log          *logger.Logger
}

// New constructs a places service.
func New(places storage.PlaceStore, measurements storage.MeasurementStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("places")
	}
	return &Service{places: places, measurements: measurements, log: log}
}

// CreatePlace persists a new place and returns it as stored.
func (s *Service) CreatePlace(ctx context.Context, params CreatePlaceParams) (place.Place, error) {
	created, err := s.places.CreatePlace(ctx, place.Place{
		Name:              params.Name,
		Description:       params.Description,
		Latitude:          params.Latitude,
		Longitude:         params.Longitude,
		IsStudying:        flag(params.IsStudying),
		IsDimlyLit:        flag(params.IsDimlyLit),
		HasOutlets:        flag(params.HasOutlets),
		HasWifi:           flag(params.HasWifi),
		IsPremium:         flag(params.IsPremium),
		HasErgonomicChair: flag(params.HasErgonomicChair),
	})
	if err != nil {
		s.log.WithError(err).WithField("name", params.Name).Warn("create place failed")
		return place.Place{}, err
	}
	s.log.WithField("place_id", created.ID).
		WithField("name", created.Name).
		Info("place created")
	return created, nil
}

// AddMeasurement records a noise reading for an existing place.
func (s *Service) AddMeasurement(ctx context.Context, params AddMeasurementParams) (place.Measurement, error) {
	created, err := s.measurements.CreateMeasurement(ctx, place.Measurement{
		PlaceID: params.PlaceID,
		Value:   params.Value,
	})
	if err != nil {
		s.log.WithError(err).WithField("place_id", params.PlaceID).Warn("add measurement failed")
		return place.Measurement{}, err
	}
	s.log.WithField("measurement_id", created.ID).
		WithField("place_id", created.PlaceID).
		WithField("value", created.Value).
		Info("measurement recorded")
	return created, nil
}

// ListPlaces returns every place with its measurements and average level.
func (s *Service) ListPlaces(ctx context.Context) ([]place.Summary, error) {
	records, err := s.places.ListPlacesWithMeasurements(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]place.Summary, 0, len(records))
	for _, rec := range records {
		out = append(out, place.Summarize(rec))
	}
	return out, nil
}

func flag(v *bool) bool {
	return v != nil && *v
}
