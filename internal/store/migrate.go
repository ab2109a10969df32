package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schemaFiles embed.FS

// migrateUp brings the database to the newest schema version. A database
// that is already current is not an error.
func migrateUp(db *sql.DB) error {
	m, src, err := newMigrator(db)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// checkSchema verifies the open database matches the schema versions built
// into the binary.
func checkSchema(db *sql.DB) error {
	m, src, err := newMigrator(db)
	if err != nil {
		return err
	}
	defer src.Close()

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return errors.New("database has no schema version (needs migration)")
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case dirty:
		return fmt.Errorf("database is in dirty state at version %d (migration failed previously)", version)
	}

	newest, err := newestVersion(src)
	if err != nil {
		return fmt.Errorf("reading schema files: %w", err)
	}
	switch {
	case version < newest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			version, newest, newest-version)
	case version > newest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			version, newest)
	}
	return nil
}

// newMigrator wires the embedded schema files to an open database. The
// migrate instance is never closed here: closing it would close db, which
// the caller owns.
func newMigrator(db *sql.DB) (*migrate.Migrate, source.Driver, error) {
	src, err := iofs.New(schemaFiles, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("loading schema files: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("wrapping database for migration: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, src, nil
}

// newestVersion walks the embedded migration sequence to its end.
func newestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			// Next errors once the sequence is exhausted.
			return version, nil
		}
		version = next
	}
}
