package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Each dialect has its own directory of numbered migrations. They describe
// the same schema; only the column types differ (INTEGER vs BOOLEAN,
// DATETIME vs TIMESTAMPTZ).
//
//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration. Running it on an up-to-date
// database is a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	m, release, err := db.migrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version and whether the last
// migration failed half way.
func (db *DB) SchemaVersion(ctx context.Context) (uint, bool, error) {
	m, release, err := db.migrator(ctx)
	if err != nil {
		return 0, false, err
	}
	defer release()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: reading schema version: %w", err)
	}
	return version, dirty, nil
}

// migrator builds a migrate.Migrate for the dialect.
//
// CLOSING:
// migrate.Close closes the *sql.DB handed to the database driver. For
// SQLite that handle must be our own pool (a ":memory:" database exists only
// on that connection), so it is never closed here. The Postgres driver pins
// a connection for its lifetime, so it gets a short-lived pool of its own
// which release closes.
func (db *DB) migrator(ctx context.Context) (*migrate.Migrate, func(), error) {
	dir := "migrations/" + string(db.dialect)
	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: loading migrations: %w", err)
	}

	var (
		driver  database.Driver
		release = func() {}
	)
	switch db.dialect {
	case DialectPostgres:
		pool, err := sql.Open("pgx", db.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: opening migration connection: %w", err)
		}
		if err := pool.PingContext(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("sqlstore: pinging migration connection: %w", err)
		}
		driver, err = migratepgx.WithInstance(pool, &migratepgx.Config{})
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("sqlstore: creating migration driver: %w", err)
		}
	default:
		driver, err = migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: creating migration driver: %w", err)
		}
	}

	m, err := migrate.NewWithInstance("iofs", source, string(db.dialect), driver)
	if err != nil {
		if db.dialect == DialectPostgres {
			driver.Close()
		}
		return nil, nil, fmt.Errorf("sqlstore: creating migrator: %w", err)
	}

	if db.dialect == DialectPostgres {
		release = func() { m.Close() }
	}
	return m, release, nil
}
