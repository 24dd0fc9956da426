package app

import (
	"context"

	"github.com/R3E-Network/quietmap/internal/app/services/places"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	"github.com/R3E-Network/quietmap/internal/app/storage/memory"
	"github.com/R3E-Network/quietmap/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Places       storage.PlaceStore
	Measurements storage.MeasurementStore
	Health       storage.Pinger
}

// Application ties domain services together.
type Application struct {
	log    *logger.Logger
	health storage.Pinger

	Places *places.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	if stores.Places == nil || stores.Measurements == nil {
		// Places and measurements must share one store for referential checks.
		mem := memory.New()
		stores.Places = mem
		stores.Measurements = mem
		if stores.Health == nil {
			stores.Health = mem
		}
	}

	return &Application{
		log:    log,
		health: stores.Health,
		Places: places.New(stores.Places, stores.Measurements, log.Named("places")),
	}, nil
}

// Ping reports whether the backing store is reachable. Without a health
// checker the application is always considered healthy.
func (a *Application) Ping(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	return a.health.Ping(ctx)
}
