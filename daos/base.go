// Package daos provides database access for the catalog: connection handling,
// compiled query execution, transactions and driver error classification.
package daos

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverLibSQL   = "libsql"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// Database wraps the connection pool together with its SQL dialect.
type Database struct {
	Client  *sqlx.DB      // pooled connection
	Driver  string        // database/sql driver name
	Dialect query.Dialect // placeholder and locking dialect
}

// Executor is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// DialectFor maps a driver name to the SQL dialect it speaks.
func DialectFor(driver string) (query.Dialect, error) {
	switch driver {
	case DriverSQLite, DriverLibSQL:
		return query.SQLite, nil
	case DriverPgx, DriverPostgres:
		return query.Postgres, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Database, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}

	client, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, Classify("open", err)
	}

	if dialect == query.Postgres {
		client.SetMaxOpenConns(25)
		client.SetMaxIdleConns(5)
		client.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := client.PingContext(ctx); err != nil {
		client.Close()
		return nil, Classify("ping", err)
	}

	return &Database{Client: client, Driver: driver, Dialect: dialect}, nil
}

// sqliteDSN makes sure go-sqlite3 begins transactions with BEGIN IMMEDIATE.
// The delete engine counts and removes dependents inside one transaction and
// needs the write lock from the first statement.
func sqliteDSN(dsn string) (string, error) {
	base, raw, hasQuery := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("sqlite dsn: %w", err)
	}

	switch mode := strings.ToLower(params.Get("_txlock")); mode {
	case "":
	case "immediate", "exclusive":
		return dsn, nil
	default:
		return "", fmt.Errorf("sqlite dsn: _txlock=%s does not take the write lock, use immediate", mode)
	}

	if !hasQuery || raw == "" {
		return base + "?_txlock=immediate", nil
	}
	return dsn + "&_txlock=immediate", nil
}

// Close releases the connection pool.
func (dao *Database) Close() error {
	if dao == nil || dao.Client == nil {
		return nil
	}
	return dao.Client.Close()
}

// logger receives schema drift reports from query execution.
var logger tools.Logger = tools.NewNopLogger()

// SetLogger installs the logger used for driver failures worth an operator's attention.
func SetLogger(l tools.Logger) {
	if l == nil {
		l = tools.NewNopLogger()
	}
	logger = l
}
