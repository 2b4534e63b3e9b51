package daos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Classify wraps a driver failure into a *tools.DatabaseError. The driver
// message is kept; nil stays nil and already classified errors pass through.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *tools.DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return &tools.DatabaseError{Kind: classifyKind(err), Op: op, Err: pkgerrors.WithStack(err)}
}

// KindOf reports the classification of err, or DBUnknown if it was never classified.
func KindOf(err error) tools.DBErrorKind {
	var dbErr *tools.DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return tools.DBUnknown
}

func classifyKind(err error) tools.DBErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return tools.DBTimeout
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn):
		return tools.DBConnection
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if kind, ok := sqliteKind(liteErr); ok {
			return kind
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateKind(pgErr.Code)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlStateKind(string(pqErr.Code))
	}

	return messageKind(err.Error())
}

func sqliteKind(e sqlite3.Error) (tools.DBErrorKind, bool) {
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return tools.DBUnique, true
	case sqlite3.ErrConstraintForeignKey:
		return tools.DBForeignKey, true
	case sqlite3.ErrConstraintNotNull:
		return tools.DBNotNull, true
	case sqlite3.ErrConstraintCheck:
		return tools.DBCheck, true
	}

	switch e.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return tools.DBLocked, true
	case sqlite3.ErrTooBig:
		return tools.DBTruncation, true
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return tools.DBPermission, true
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return tools.DBConnection, true
	}
	// Schema errors arrive as the generic SQLITE_ERROR code; only the message
	// tells them apart.
	return "", false
}

// sqlStateKind maps a postgres SQLSTATE code.
func sqlStateKind(code string) tools.DBErrorKind {
	switch code {
	case "23505":
		return tools.DBUnique
	case "23503":
		return tools.DBForeignKey
	case "23502":
		return tools.DBNotNull
	case "23514":
		return tools.DBCheck
	case "22001":
		return tools.DBTruncation
	case "42501":
		return tools.DBPermission
	case "28000", "28P01":
		return tools.DBLogin
	case "57014":
		return tools.DBTimeout
	case "40P01", "55P03", "40001":
		return tools.DBLocked
	case "42703", "42P01":
		return tools.DBSchemaDrift
	}
	if strings.HasPrefix(code, "08") {
		return tools.DBConnection
	}
	return tools.DBUnknown
}

func messageKind(msg string) tools.DBErrorKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "table is locked"):
		return tools.DBLocked
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "no such table"):
		return tools.DBSchemaDrift
	case strings.Contains(msg, "unique constraint failed"):
		return tools.DBUnique
	case strings.Contains(msg, "foreign key constraint failed"):
		return tools.DBForeignKey
	case strings.Contains(msg, "not null constraint failed"):
		return tools.DBNotNull
	case strings.Contains(msg, "check constraint failed"):
		return tools.DBCheck
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "broken pipe"):
		return tools.DBConnection
	}
	return tools.DBUnknown
}
