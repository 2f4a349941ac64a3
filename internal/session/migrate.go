package session

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/jtodevs/fastlap/internal/errs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateUp brings db's schema to the latest embedded migration, grounded
// on the teacher's internal/db.MigrateUp but sourcing from the binary's
// embedded SQL rather than a filesystem directory, since this module ships
// as a single artifact.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errs.New(errs.Internal, "session.migrateUp", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return errs.New(errs.Internal, "session.migrateUp", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errs.New(errs.Internal, "session.migrateUp", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errs.New(errs.Internal, "session.migrateUp", err)
	}
	return nil
}
