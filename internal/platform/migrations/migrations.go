// Package migrations owns the PostgreSQL schema for places and measurements.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/R3E-Network/quietmap/pkg/logger"
)

//go:embed sql/*.sql
var files embed.FS

// Source returns the embedded migration files as a golang-migrate source.
func Source() (source.Driver, error) {
	return iofs.New(files, "sql")
}

// Up applies every pending migration. Running it on an up-to-date schema is a
// no-op.
func Up(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	return run(ctx, db, log, func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back every applied migration.
func Down(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	return run(ctx, db, log, func(m *migrate.Migrate) error { return m.Down() })
}

func run(ctx context.Context, db *sql.DB, log *logger.Logger, step func(*migrate.Migrate) error) error {
	if log == nil {
		log = logger.NewDefault("migrations")
	}
	src, err := Source()
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}

	// A dedicated connection keeps m.Close from closing the shared pool.
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		_ = conn.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := newMigrator(src, driver, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("schema has no applied migrations")
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		log.WithField("version", version).WithField("dirty", dirty).Info("schema migrated")
	}
	return nil
}

var newInstance = migrate.NewWithInstance

// newMigrator builds a migrator over src and driver. Both are closed when it
// fails; on success m.Close owns them.
func newMigrator(src source.Driver, driver database.Driver, log *logger.Logger) (*migrate.Migrate, error) {
	m, err := newInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	m.Log = migrateLogger{log: log}
	return m, nil
}

type migrateLogger struct {
	log *logger.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}
