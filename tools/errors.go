// Package tools provides shared utilities for the catalog core.
package tools

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for API consumers.
// These codes are stable and can be used for programmatic error handling.
const (
	CodeColumnNotAllowed    = "COLUMN_NOT_ALLOWED"
	CodeJoinNotAllowed      = "JOIN_NOT_ALLOWED"
	CodeTableNotAllowed     = "TABLE_NOT_ALLOWED"
	CodeEmptyInList         = "EMPTY_IN_LIST"
	CodeInListTooLarge      = "IN_LIST_TOO_LARGE"
	CodeInvalidPagination   = "INVALID_PAGINATION"
	CodeDuplicateSortColumn = "DUPLICATE_SORT_COLUMN"
	CodeMalformedCondition  = "MALFORMED_CONDITION"
	CodeRawWhereRejected    = "RAW_WHERE_REJECTED"
	CodeInvalidIdentifier   = "INVALID_IDENTIFIER"
	CodeInvalidJSON         = "INVALID_JSON"
	CodeEntityNotFound      = "ENTITY_NOT_FOUND"
	CodeDependencyConflict  = "DEPENDENCY_CONFLICT"
	CodeUniqueViolation     = "UNIQUE_VIOLATION"
	CodeForeignKeyViolation = "FOREIGN_KEY_VIOLATION"
	CodeNotNullViolation    = "NOT_NULL_VIOLATION"
	CodeCheckViolation      = "CHECK_VIOLATION"
	CodeValueTooLong        = "VALUE_TOO_LONG"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeLoginFailed         = "LOGIN_FAILED"
	CodeTimeout             = "TIMEOUT"
	CodeDatabaseBusy        = "DATABASE_BUSY"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// APIError represents a structured error response for the API.
// Code is a stable identifier for client error handling.
// Message describes what went wrong.
// Hint provides actionable guidance to resolve the issue.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Sentinel errors for common failure conditions.
var (
	// Compile-time whitelist violations.
	ErrColumnNotAllowed = errors.New("column not allowed")
	ErrJoinNotAllowed   = errors.New("join not allowed")
	ErrTableNotAllowed  = errors.New("table not allowed")

	// Compile-time payload shape errors.
	ErrEmptyInList         = errors.New("IN list cannot be empty")
	ErrInListTooLarge      = errors.New("IN list exceeds maximum size")
	ErrInvalidPagination   = errors.New("invalid pagination")
	ErrDuplicateSortColumn = errors.New("duplicate sort column")
	ErrMalformedCondition  = errors.New("malformed condition")

	ErrRawWhereRejected = errors.New("raw where clause rejected")

	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrEmptyIdentifier   = errors.New("identifier cannot be empty")
	ErrIdentifierTooLong = errors.New("identifier exceeds maximum length")
	ErrInvalidCharacter  = errors.New("identifier contains invalid characters")

	ErrInvalidJSON = errors.New("invalid request body")

	ErrEntityNotFound     = errors.New("entity not found")
	ErrDependencyConflict = errors.New("entity has dependent records")
	ErrDatabase           = errors.New("database error")
	ErrUnknownEntityKind  = errors.New("unknown entity kind")
	ErrInvalidKey         = errors.New("invalid entity key")
)

// ColumnNotAllowedErr returns an error naming the rejected column reference.
func ColumnNotAllowedErr(entity, column string) error {
	return fmt.Errorf("%w: %s on %s", ErrColumnNotAllowed, column, entity)
}

// JoinNotAllowedErr returns an error naming the rejected join.
func JoinNotAllowedErr(entity, table, alias string) error {
	return fmt.Errorf("%w: %s %s for %s", ErrJoinNotAllowed, table, alias, entity)
}

// TableNotAllowedErr returns an error naming the rejected table or entity.
func TableNotAllowedErr(name string) error {
	return fmt.Errorf("%w: %s", ErrTableNotAllowed, name)
}

// MalformedConditionErr returns an error describing a condition shape problem.
func MalformedConditionErr(key, msg string) error {
	if key == "" {
		return fmt.Errorf("%w: %s", ErrMalformedCondition, msg)
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformedCondition, key, msg)
}

// RawWhereRejectedErr returns an error carrying the specific rejection reason.
func RawWhereRejectedErr(reason string) error {
	return fmt.Errorf("%w: %s", ErrRawWhereRejected, reason)
}

// EntityNotFoundErr returns an error for a missing row.
func EntityNotFoundErr(kind string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrEntityNotFound, kind, key)
}

// DBErrorKind classifies a driver failure.
type DBErrorKind string

// Database error kinds.
const (
	DBUnique      DBErrorKind = "unique"
	DBCheck       DBErrorKind = "check"
	DBForeignKey  DBErrorKind = "foreign_key"
	DBNotNull     DBErrorKind = "not_null"
	DBTruncation  DBErrorKind = "truncation"
	DBPermission  DBErrorKind = "permission"
	DBLogin       DBErrorKind = "login"
	DBTimeout     DBErrorKind = "timeout"
	DBConnection  DBErrorKind = "connection"
	DBLocked      DBErrorKind = "locked"
	DBSchemaDrift DBErrorKind = "schema_drift"
	DBUnknown     DBErrorKind = "unknown"
)

// DatabaseError wraps a driver error with its classification.
// The original driver message is preserved for diagnostics.
type DatabaseError struct {
	Kind DBErrorKind
	Op   string
	Err  error
}

func (e *DatabaseError) Error() string {
	var b strings.Builder
	b.WriteString("database error")
	if e.Op != "" {
		b.WriteString(" during ")
		b.WriteString(e.Op)
	}
	b.WriteString(" (")
	b.WriteString(string(e.Kind))
	b.WriteString(")")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDatabase) match every classified driver failure.
func (e *DatabaseError) Is(target error) bool { return target == ErrDatabase }
