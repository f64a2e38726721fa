package submanager

import (
	"errors"
	"fmt"
)

// Error represents a subscription manager error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
// It lets callers write errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Error codes for subscription manager operations.
const (
	// ErrCodeValidation indicates malformed or missing input.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeNotFound indicates the resource is absent or not owned by the caller.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeAccessDenied indicates an authenticated caller without the admin role.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeUnauthorized indicates invalid credentials.
	ErrCodeUnauthorized = "UNAUTHORIZED"

	// ErrCodeDuplicate indicates a uniqueness constraint violation.
	ErrCodeDuplicate = "DUPLICATE"

	// ErrCodeDatabase indicates any other storage failure.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeBroker indicates a broker call failed.
	ErrCodeBroker = "BROKER_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
)

// Common errors.
var (
	// ErrNotFound is returned by repositories when a query matches no row.
	ErrNotFound = &Error{
		Code:    ErrCodeNotFound,
		Message: "not found",
	}

	// ErrInvalidCredentials is returned when a username/password pair is rejected.
	ErrInvalidCredentials = &Error{
		Code:    ErrCodeUnauthorized,
		Message: "invalid credentials",
	}

	// ErrAdminRequired is returned for non-admin callers on admin-only operations.
	ErrAdminRequired = &Error{
		Code:    ErrCodeAccessDenied,
		Message: "admin rights required",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// ErrorCode returns the code of the outermost *Error in err's chain,
// or an empty string when there is none.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// IsNotFound checks if an error is a NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation checks if an error is a VALIDATION_ERROR.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsDuplicate checks if an error is a uniqueness violation.
func IsDuplicate(err error) bool { return hasCode(err, ErrCodeDuplicate) }

// IsAccessDenied checks if an error is an ACCESS_DENIED error.
func IsAccessDenied(err error) bool { return hasCode(err, ErrCodeAccessDenied) }

// IsUnauthorized checks if an error is an invalid credentials error.
func IsUnauthorized(err error) bool { return hasCode(err, ErrCodeUnauthorized) }

// IsStorage checks if an error is a generic storage failure.
func IsStorage(err error) bool { return hasCode(err, ErrCodeDatabase) }

// IsBroker checks if an error originated from a broker call.
func IsBroker(err error) bool { return hasCode(err, ErrCodeBroker) }
