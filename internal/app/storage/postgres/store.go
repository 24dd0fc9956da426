package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

// foreignKeyViolation is the SQLSTATE reported by PostgreSQL when a row
// references a missing parent.
const foreignKeyViolation = "23503"

const placeColumns = `id, name, description, latitude, longitude,
	is_studying, is_dimly_lit, has_outlets, has_wifi, is_premium, has_ergonomic_chair,
	created_at, updated_at`

const insertPlace = `
	INSERT INTO places (id, name, description, latitude, longitude,
		is_studying, is_dimly_lit, has_outlets, has_wifi, is_premium, has_ergonomic_chair,
		created_at, updated_at)
	VALUES (:id, :name, :description, :latitude, :longitude,
		:is_studying, :is_dimly_lit, :has_outlets, :has_wifi, :is_premium, :has_ergonomic_chair,
		:created_at, :updated_at)
	RETURNING ` + placeColumns

const insertMeasurement = `
	INSERT INTO measurements (id, place_id, value, created_at)
	VALUES (:id, :place_id, :value, :created_at)
	RETURNING id, place_id, value, created_at`

const selectPlacesWithMeasurements = `
	SELECT p.id, p.name, p.description, p.latitude, p.longitude,
		p.is_studying, p.is_dimly_lit, p.has_outlets, p.has_wifi, p.is_premium, p.has_ergonomic_chair,
		p.created_at, p.updated_at,
		m.id AS m_id, m.value AS m_value, m.created_at AS m_created_at
	FROM places p
	LEFT JOIN measurements m ON m.place_id = p.id
	ORDER BY p.created_at, p.id, m.created_at, m.id`

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Wrap creates a Store over a plain database/sql handle opened with the named
// driver ("postgres" for lib/pq, "pgx" for the pgx stdlib adapter).
func Wrap(db *sql.DB, driverName string) *Store {
	return New(sqlx.NewDb(db, driverName))
}

func (s *Store) CreatePlace(ctx context.Context, p place.Place) (place.Place, error) {
	if p.ID == "" {
		p.ID = storage.NewID()
	}
	now := storage.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query, args, err := sqlx.Named(insertPlace, p)
	if err != nil {
		return place.Place{}, svcerrors.Storage("create place", err)
	}

	var created place.Place
	if err := s.db.GetContext(ctx, &created, s.db.Rebind(query), args...); err != nil {
		return place.Place{}, svcerrors.Storage("create place", err)
	}
	return created, nil
}

func (s *Store) CreateMeasurement(ctx context.Context, m place.Measurement) (place.Measurement, error) {
	if m.ID == "" {
		m.ID = storage.NewID()
	}
	m.CreatedAt = storage.Now()

	query, args, err := sqlx.Named(insertMeasurement, m)
	if err != nil {
		return place.Measurement{}, svcerrors.Storage("create measurement", err)
	}

	var created place.Measurement
	if err := s.db.GetContext(ctx, &created, s.db.Rebind(query), args...); err != nil {
		if isForeignKeyViolation(err) {
			return place.Measurement{}, svcerrors.ReferentialIntegrity("place", m.PlaceID, err)
		}
		return place.Measurement{}, svcerrors.Storage("create measurement", err)
	}
	return created, nil
}

// placeMeasurementRow is one row of the places/measurements outer join. The
// measurement columns are NULL for places without measurements.
type placeMeasurementRow struct {
	place.Place
	MeasurementID        sql.NullString  `db:"m_id"`
	MeasurementValue     sql.NullFloat64 `db:"m_value"`
	MeasurementCreatedAt sql.NullTime    `db:"m_created_at"`
}

func (s *Store) ListPlacesWithMeasurements(ctx context.Context) ([]place.WithMeasurements, error) {
	var rows []placeMeasurementRow
	if err := s.db.SelectContext(ctx, &rows, selectPlacesWithMeasurements); err != nil {
		return nil, svcerrors.Storage("list places", err)
	}
	return foldRows(rows), nil
}

func foldRows(rows []placeMeasurementRow) []place.WithMeasurements {
	result := make([]place.WithMeasurements, 0, len(rows))
	for _, row := range rows {
		if n := len(result); n == 0 || result[n-1].ID != row.ID {
			result = append(result, place.WithMeasurements{
				Place:        row.Place,
				Measurements: []place.Measurement{},
			})
		}
		if !row.MeasurementID.Valid {
			continue
		}
		last := &result[len(result)-1]
		last.Measurements = append(last.Measurements, place.Measurement{
			ID:        row.MeasurementID.String,
			PlaceID:   row.ID,
			Value:     row.MeasurementValue.Float64,
			CreatedAt: row.MeasurementCreatedAt.Time,
		})
	}
	return result
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == foreignKeyViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == foreignKeyViolation
	}
	return false
}
