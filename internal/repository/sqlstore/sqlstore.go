// Package sqlstore implements the repository interfaces on database/sql.
//
// TWO DIALECTS, ONE SET OF QUERIES:
// The same code runs against SQLite (modernc.org/sqlite, pure Go, the
// default for development and tests) and Postgres (pgx through its
// database/sql adapter, for production). Queries are written once with "?"
// placeholders; rebind rewrites them to $1, $2, ... for Postgres. Everything
// else used here (ON CONFLICT, LOWER, LIKE ... ESCAPE, CASCADE foreign keys)
// behaves the same on both engines.
//
// SQLite's built-in LOWER folds ASCII only, so this package replaces it
// with strings.ToLower on every SQLite connection. Search then folds "É"
// the same way Postgres does.
//
// The dialect is picked from the database URL:
//   - "postgres://..." or "postgresql://..." → Postgres
//   - anything else                           → SQLite file path (":memory:" for tests)
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

// unicodeLower is LOWER(x) for SQLite with full Unicode case folding.
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DetectDialect maps a database URL to its dialect.
func DetectDialect(databaseURL string) Dialect {
	lower := strings.ToLower(databaseURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// DB wraps a sql.DB connection pool and implements every repository
// interface in package repository.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	dsn     string
}

// Open connects, configures the pool for the dialect and applies pending
// migrations.
//
// SQLITE AND ONE CONNECTION:
// SQLite allows a single writer. With several pooled connections, two
// concurrent writes fail with SQLITE_BUSY instead of waiting. Capping the
// pool at one connection makes database/sql queue callers instead, and it
// is also what keeps a ":memory:" database alive: every new connection
// would otherwise open a fresh, empty in-memory database.
//
// The consequence for this package: never issue a query on db.conn while
// a *sql.Rows from db.conn is still open or a transaction is in progress.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	dialect := DetectDialect(databaseURL)

	var (
		conn *sql.DB
		err  error
	)
	switch dialect {
	case DialectPostgres:
		conn, err = sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening postgres: %w", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxIdleTime(5 * time.Minute)
	default:
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path != ":memory:" && !strings.HasPrefix(path, "file:") {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("sqlstore: creating database directory: %w", err)
				}
			}
		}
		conn, err = sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: opening sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		databaseURL = path
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// Foreign keys are OFF by default in SQLite; the cascade rules for
		// likes, comments and replies depend on them.
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
			}
		}
	}

	db := &DB{conn: conn, dialect: dialect, dsn: databaseURL}

	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Ping is used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
// None of our queries contain a literal question mark.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// now is truncated to microseconds so SQLite and Postgres round-trip the
// same value. UTC() also strips the monotonic clock reading.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// encodeList stores a string slice as a JSON array in a TEXT column.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeList(raw string) []string {
	items := []string{}
	if raw == "" {
		return items
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return []string{}
	}
	return items
}

// likePattern builds a case-insensitive substring pattern, escaping the
// LIKE wildcards in user input. Use with ESCAPE '\'.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}

// isUniqueViolation recognises a UNIQUE/PRIMARY KEY failure from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation recognises a missing referenced row.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// rowsAffected treats a driver that cannot report the count as zero rows.
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
