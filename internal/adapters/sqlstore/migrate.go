package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate moves the schema of db to targetVersion.
//   - targetVersion < 0 migrates to the latest version.
//   - targetVersion == 0 rolls every migration back.
//   - targetVersion > 0 migrates to exactly that version.
//
// It returns the resulting version. MySQL DSNs must enable multiStatements.
func Migrate(db *sql.DB, backend Backend, targetVersion int) (uint, error) {
	var (
		driver database.Driver
		err    error
	)
	switch backend {
	case SQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case PostgreSQL:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case MySQL:
		driver, err = mysql.WithInstance(db, &mysql.Config{})
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}
	if err != nil {
		return 0, fmt.Errorf("create %s migrate driver: %w", backend, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("access migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, string(backend), driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}

	if _, dirty, err := m.Version(); err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read migration version: %w", err)
	} else if dirty {
		return 0, ErrDirty
	}

	switch {
	case targetVersion < 0:
		err = m.Up()
	case targetVersion == 0:
		err = m.Down()
	default:
		err = m.Migrate(uint(targetVersion))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate to %d: %w", targetVersion, err)
	}

	v, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	return v, err
}
