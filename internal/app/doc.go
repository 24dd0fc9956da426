// Package app composes the Quiet Map service from its stores and services.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct and wiring
//	├── domain/place/       # Place and measurement models, average derivation
//	├── services/places/    # createPlace, addMeasurement and getPlaces logic
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # PlaceStore, MeasurementStore, Pinger
//	│   ├── memory/         # In-memory store for tests and local runs
//	│   ├── postgres/       # PostgreSQL store (sqlx over lib/pq or pgx)
//	│   └── sqlite/         # Embedded SQLite store (gorm)
//	├── httpapi/            # RPC gateway, health and metrics routes
//	├── metrics/            # Prometheus collectors
//	└── runtime/            # Config-driven process lifecycle
//
// # Dependency Direction
//
//	cmd/quietmap/
//	      │
//	      ▼
//	internal/cli ──► internal/app/runtime
//	                        │
//	                        ├──► internal/app/httpapi ──► internal/app/services/places
//	                        │                                      │
//	                        └──► internal/app/storage/* ◄──────────┘
//
// Services depend on the storage interfaces only; the runtime picks the
// concrete store from configuration.
package app
