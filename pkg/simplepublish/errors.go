package simplepublish

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failed operation for the dispatcher.
type ErrorCode string

// Error codes.
const (
	CodeUnauthenticated ErrorCode = "unauthenticated"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeNotFound        ErrorCode = "not_found"
	CodeInvalidArgument ErrorCode = "invalid_argument"
	CodeConflict        ErrorCode = "conflict"
	CodeInternal        ErrorCode = "internal"
)

// HTTPStatus maps an error code to the status the dispatcher should emit.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single structured error returned for a failed call. Err, when
// set, preserves the collaborator's original error for unwrapping.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a coded error with a formatted message.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags a collaborator error while preserving its message.
func WrapError(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the error code, defaulting to internal for untyped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func is(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsUnauthorized reports whether err is a capability denial.
func IsUnauthorized(err error) bool { return is(err, CodeUnauthorized) }

// IsInvalidArgument reports whether err is a validation failure.
func IsInvalidArgument(err error) bool { return is(err, CodeInvalidArgument) }

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool { return is(err, CodeConflict) }

// Sentinels repositories return for missing rows; the service layer wraps
// them into coded errors with operation context.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrTermNotFound = errors.New("term not found")
	ErrUserNotFound = errors.New("user not found")
	ErrBlobNotFound = errors.New("blob not found")
)

// Uniqueness sentinels the stores return on duplicate rows.
var (
	ErrDuplicateLogin = errors.New("login already exists")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrDuplicateTerm  = errors.New("term already exists in taxonomy")
)
