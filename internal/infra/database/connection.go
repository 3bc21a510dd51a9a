package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is a connection pool plus the SQL dialect it speaks.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
	Driver  string
}

// NewDBConnection opens the pool, pings it and applies the embedded
// migrations for the driver's dialect.
func NewDBConnection(ctx context.Context, driver, connString string) (*DB, error) {
	driver = strings.TrimSpace(driver)
	if driver == "" {
		driver = DriverPgx
	}
	if strings.TrimSpace(connString) == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	var dialect Dialect
	switch driver {
	case DriverPgx, DriverPostgres:
		dialect = Postgres
	case DriverSQLite:
		dialect = SQLite
		connString = sqliteDSN(connString)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dialect == SQLite {
		// One writer at a time; readers share the rest.
		db.SetMaxOpenConns(4)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := ApplyMigrations(ctx, db, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{SQL: db, Dialect: dialect, Driver: driver}, nil
}

func (d *DB) Close() error {
	if d == nil || d.SQL == nil {
		return nil
	}
	return d.SQL.Close()
}

// sqliteDSN adds the pragmas the store relies on unless the caller already
// set query parameters. Immediate transactions take the write lock at BEGIN,
// so two conversions of the same lead queue up instead of deadlocking.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}
