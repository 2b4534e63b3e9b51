package tools

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespErr writes a structured error response for err.
func RespErr(c *gin.Context, err error) {
	status, apiErr := BuildAPIError(err)
	c.AbortWithStatusJSON(status, apiErr)
}

// BuildAPIError maps an error to an HTTP status code and structured APIError.
// Query compiler rejections are always client errors, never 5xx.
func BuildAPIError(err error) (int, APIError) {
	switch {
	case errors.Is(err, ErrColumnNotAllowed):
		return http.StatusBadRequest, APIError{
			Code:    CodeColumnNotAllowed,
			Message: err.Error(),
			Hint:    "Only columns of the queried entity or of its registered joins can be referenced.",
		}
	case errors.Is(err, ErrJoinNotAllowed):
		return http.StatusBadRequest, APIError{
			Code:    CodeJoinNotAllowed,
			Message: err.Error(),
			Hint:    "Joins must match a join registered for the entity or use a predefined query.",
		}
	case errors.Is(err, ErrTableNotAllowed), errors.Is(err, ErrUnknownEntityKind):
		return http.StatusNotFound, APIError{
			Code:    CodeTableNotAllowed,
			Message: err.Error(),
			Hint:    "Verify the entity or predefined query name.",
		}
	case errors.Is(err, ErrEmptyInList):
		return http.StatusBadRequest, APIError{
			Code:    CodeEmptyInList,
			Message: err.Error(),
			Hint:    "IN and NOT IN require at least one value. Drop the condition instead of sending an empty list.",
		}
	case errors.Is(err, ErrInListTooLarge):
		return http.StatusBadRequest, APIError{
			Code:    CodeInListTooLarge,
			Message: err.Error(),
			Hint:    "Split large IN lists into multiple smaller queries.",
		}
	case errors.Is(err, ErrInvalidPagination):
		return http.StatusBadRequest, APIError{
			Code:    CodeInvalidPagination,
			Message: err.Error(),
			Hint:    "limit and offset must be non-negative integers and limit may not exceed the configured maximum.",
		}
	case errors.Is(err, ErrDuplicateSortColumn):
		return http.StatusBadRequest, APIError{
			Code:    CodeDuplicateSortColumn,
			Message: err.Error(),
			Hint:    "Each column may appear only once in orderBy.",
		}
	case errors.Is(err, ErrMalformedCondition):
		return http.StatusBadRequest, APIError{
			Code:    CodeMalformedCondition,
			Message: err.Error(),
			Hint:    "Check the operator and the shape of val: arrays for IN, two values for BETWEEN, none for IS NULL.",
		}
	case errors.Is(err, ErrRawWhereRejected):
		return http.StatusBadRequest, APIError{
			Code:    CodeRawWhereRejected,
			Message: err.Error(),
			Hint:    "Raw filters may only compare whitelisted columns using plain operators.",
		}
	case errors.Is(err, ErrInvalidIdentifier),
		errors.Is(err, ErrEmptyIdentifier),
		errors.Is(err, ErrIdentifierTooLong),
		errors.Is(err, ErrInvalidCharacter):
		return http.StatusBadRequest, APIError{
			Code:    CodeInvalidIdentifier,
			Message: err.Error(),
			Hint:    "Identifiers must start with a letter or underscore, contain only letters, digits, and underscores, and be at most 128 characters.",
		}
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest, APIError{
			Code:    CodeInvalidJSON,
			Message: err.Error(),
		}
	case errors.Is(err, ErrEntityNotFound):
		return http.StatusNotFound, APIError{
			Code:    CodeEntityNotFound,
			Message: err.Error(),
		}
	case errors.Is(err, ErrDependencyConflict):
		return http.StatusConflict, APIError{
			Code:    CodeDependencyConflict,
			Message: err.Error(),
			Hint:    "Retry with cascade=true to remove structural children, or forceCascade=true to also remove business records.",
		}
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return buildDatabaseAPIError(dbErr)
	}

	return http.StatusInternalServerError, APIError{
		Code:    CodeInternalError,
		Message: "an internal error occurred",
	}
}

// buildDatabaseAPIError maps a classified driver failure to a response.
func buildDatabaseAPIError(err *DatabaseError) (int, APIError) {
	switch err.Kind {
	case DBUnique:
		return http.StatusConflict, APIError{
			Code:    CodeUniqueViolation,
			Message: err.Error(),
			Hint:    "A record with this value already exists.",
		}
	case DBForeignKey:
		return http.StatusConflict, APIError{
			Code:    CodeForeignKeyViolation,
			Message: err.Error(),
			Hint:    "The record is referenced by, or references, a record that does not allow this change.",
		}
	case DBNotNull:
		return http.StatusBadRequest, APIError{
			Code:    CodeNotNullViolation,
			Message: err.Error(),
		}
	case DBCheck:
		return http.StatusBadRequest, APIError{
			Code:    CodeCheckViolation,
			Message: err.Error(),
		}
	case DBTruncation:
		return http.StatusBadRequest, APIError{
			Code:    CodeValueTooLong,
			Message: err.Error(),
		}
	case DBPermission:
		return http.StatusForbidden, APIError{
			Code:    CodePermissionDenied,
			Message: err.Error(),
		}
	case DBLogin:
		return http.StatusServiceUnavailable, APIError{
			Code:    CodeLoginFailed,
			Message: "database login failed",
		}
	case DBTimeout:
		return http.StatusGatewayTimeout, APIError{
			Code:    CodeTimeout,
			Message: err.Error(),
		}
	case DBLocked, DBConnection:
		return http.StatusServiceUnavailable, APIError{
			Code:    CodeDatabaseBusy,
			Message: err.Error(),
			Hint:    "Retry the request.",
		}
	default:
		return http.StatusInternalServerError, APIError{
			Code:    CodeDatabaseError,
			Message: err.Error(),
		}
	}
}
