// Package apperr provides the structured error type shared by the domain
// packages and the HTTP layer.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal Code = "INTERNAL"

	// Input errors
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeInvalidRole          Code = "INVALID_ROLE"
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"

	// Identity errors
	CodeDuplicateUser     Code = "DUPLICATE_USER"
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"

	// Document errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeProjectNotFound Code = "PROJECT_NOT_FOUND"
	CodeDuplicateID     Code = "DUPLICATE_ID"
	CodeConflict        Code = "CONFLICT"

	// Gate errors
	CodeOutsideWindow Code = "OUTSIDE_WINDOW"

	// Infrastructure errors
	CodeUnavailable Code = "UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// DuplicateUser is reported as a bad request on signup, unlike DuplicateID.
	case CodeValidation,
		CodeInvalidRole,
		CodeDuplicateUser:
		return http.StatusBadRequest

	case CodeInvalidCredential,
		CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeForbidden,
		CodeOutsideWindow:
		return http.StatusForbidden

	case CodeNotFound,
		CodeProjectNotFound:
		return http.StatusNotFound

	case CodeDuplicateID,
		CodeConflict:
		return http.StatusConflict

	case CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType

	case CodeUnavailable:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
