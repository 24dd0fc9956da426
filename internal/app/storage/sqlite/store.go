// Package sqlite implements the storage interfaces on an embedded SQLite
// database through gorm. It backs the local, single-binary mode of the
// service.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/app/storage"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

type placeRecord struct {
	ID                string  `gorm:"primaryKey;type:text"`
	Name              string  `gorm:"not null"`
	Description       *string `gorm:"type:text"`
	Latitude          float64 `gorm:"not null"`
	Longitude         float64 `gorm:"not null"`
	IsStudying        bool    `gorm:"not null;default:false"`
	IsDimlyLit        bool    `gorm:"not null;default:false"`
	HasOutlets        bool    `gorm:"not null;default:false"`
	HasWifi           bool    `gorm:"not null;default:false"`
	IsPremium         bool    `gorm:"not null;default:false"`
	HasErgonomicChair bool    `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (placeRecord) TableName() string { return "places" }

type measurementRecord struct {
	ID        string  `gorm:"primaryKey;type:text"`
	PlaceID   string  `gorm:"not null;index"`
	Value     float64 `gorm:"not null"`
	CreatedAt time.Time

	Place *placeRecord `gorm:"foreignKey:PlaceID;references:ID;constraint:OnDelete:CASCADE"`
}

func (measurementRecord) TableName() string { return "measurements" }

// Store implements the storage interfaces backed by SQLite.
type Store struct {
	db *gorm.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path, enables
// foreign keys and migrates the schema.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	} else if !strings.Contains(dsn, "_foreign_keys") {
		dsn += "&_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&placeRecord{}, &measurementRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) CreatePlace(ctx context.Context, p place.Place) (place.Place, error) {
	if p.ID == "" {
		p.ID = storage.NewID()
	}
	now := storage.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	rec := toPlaceRecord(p)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return place.Place{}, svcerrors.Storage("create place", err)
	}
	return fromPlaceRecord(rec), nil
}

func (s *Store) CreateMeasurement(ctx context.Context, m place.Measurement) (place.Measurement, error) {
	if m.ID == "" {
		m.ID = storage.NewID()
	}
	m.CreatedAt = storage.Now()

	rec := measurementRecord{ID: m.ID, PlaceID: m.PlaceID, Value: m.Value, CreatedAt: m.CreatedAt}
	if err := s.db.WithContext(ctx).Omit("Place").Create(&rec).Error; err != nil {
		if isForeignKeyViolation(err) {
			return place.Measurement{}, svcerrors.ReferentialIntegrity("place", m.PlaceID, err)
		}
		return place.Measurement{}, svcerrors.Storage("create measurement", err)
	}
	return fromMeasurementRecord(rec), nil
}

func (s *Store) ListPlacesWithMeasurements(ctx context.Context) ([]place.WithMeasurements, error) {
	var (
		places       []placeRecord
		measurements []measurementRecord
	)
	// Both reads run in one transaction so they see the same snapshot.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("created_at, id").Find(&places).Error; err != nil {
			return err
		}
		return tx.Order("created_at, id").Find(&measurements).Error
	})
	if err != nil {
		return nil, svcerrors.Storage("list places", err)
	}

	byPlace := make(map[string][]place.Measurement, len(places))
	for _, m := range measurements {
		byPlace[m.PlaceID] = append(byPlace[m.PlaceID], fromMeasurementRecord(m))
	}

	result := make([]place.WithMeasurements, 0, len(places))
	for _, rec := range places {
		ms := byPlace[rec.ID]
		if ms == nil {
			ms = []place.Measurement{}
		}
		result = append(result, place.WithMeasurements{Place: fromPlaceRecord(rec), Measurements: ms})
	}
	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toPlaceRecord(p place.Place) placeRecord {
	return placeRecord{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		IsStudying:        p.IsStudying,
		IsDimlyLit:        p.IsDimlyLit,
		HasOutlets:        p.HasOutlets,
		HasWifi:           p.HasWifi,
		IsPremium:         p.IsPremium,
		HasErgonomicChair: p.HasErgonomicChair,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromPlaceRecord(rec placeRecord) place.Place {
	return place.Place{
		ID:                rec.ID,
		Name:              rec.Name,
		Description:       rec.Description,
		Latitude:          rec.Latitude,
		Longitude:         rec.Longitude,
		IsStudying:        rec.IsStudying,
		IsDimlyLit:        rec.IsDimlyLit,
		HasOutlets:        rec.HasOutlets,
		HasWifi:           rec.HasWifi,
		IsPremium:         rec.IsPremium,
		HasErgonomicChair: rec.HasErgonomicChair,
		CreatedAt:         rec.CreatedAt.UTC(),
		UpdatedAt:         rec.UpdatedAt.UTC(),
	}
}

func fromMeasurementRecord(rec measurementRecord) place.Measurement {
	return place.Measurement{
		ID:        rec.ID,
		PlaceID:   rec.PlaceID,
		Value:     rec.Value,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
