package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

var errClosed = errors.New("memory store closed")

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	closed       bool
	order        []string
	places       map[string]place.Place
	measurements map[string][]place.Measurement
}

var _ storage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		places:       make(map[string]place.Place),
		measurements: make(map[string][]place.Measurement),
	}
}

func (s *Store) CreatePlace(_ context.Context, p place.Place) (place.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return place.Place{}, svcerrors.Storage("create place", errClosed)
	}
	if p.ID == "" {
		p.ID = storage.NewID()
	} else if _, exists := s.places[p.ID]; exists {
		return place.Place{}, svcerrors.Storage("create place", fmt.Errorf("place %s already exists", p.ID))
	}

	now := storage.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Description = cloneString(p.Description)

	s.places[p.ID] = p
	s.order = append(s.order, p.ID)
	return clonePlace(p), nil
}

func (s *Store) CreateMeasurement(_ context.Context, m place.Measurement) (place.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return place.Measurement{}, svcerrors.Storage("create measurement", errClosed)
	}
	if _, ok := s.places[m.PlaceID]; !ok {
		return place.Measurement{}, svcerrors.ReferentialIntegrity("place", m.PlaceID, nil)
	}
	if m.ID == "" {
		m.ID = storage.NewID()
	}
	m.CreatedAt = storage.Now()

	s.measurements[m.PlaceID] = append(s.measurements[m.PlaceID], m)
	return m, nil
}

func (s *Store) ListPlacesWithMeasurements(_ context.Context) ([]place.WithMeasurements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, svcerrors.Storage("list places", errClosed)
	}
	result := make([]place.WithMeasurements, 0, len(s.order))
	for _, id := range s.order {
		measurements := make([]place.Measurement, len(s.measurements[id]))
		copy(measurements, s.measurements[id])
		result = append(result, place.WithMeasurements{
			Place:        clonePlace(s.places[id]),
			Measurements: measurements,
		})
	}
	return result, nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close marks the store unusable. Data is discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.places = nil
	s.measurements = nil
	s.order = nil
	return nil
}

func clonePlace(p place.Place) place.Place {
	p.Description = cloneString(p.Description)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
