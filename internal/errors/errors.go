package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an Abyss error code.
type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrCorruptData    ErrorCode = "CORRUPT_DATA"    // 422
	ErrStorage        ErrorCode = "STORAGE"         // 500
	ErrInvalidState   ErrorCode = "INVALID_STATE"   // 409
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// AbyssError represents a structured error with code, status, and details.
//
// Inference failures are deliberately absent from this taxonomy: the
// inference client converts them into placeholder reply text instead of
// returning an error value to the caller.
type AbyssError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *AbyssError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFound creates a 404 error for an unknown character name.
func NewNotFound(name string) *AbyssError {
	return &AbyssError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("character not found: %s", name),
		Details: map[string]any{"name": name},
	}
}

// NewSessionNotFound creates a 404 error for an unknown archived session.
func NewSessionNotFound(id string) *AbyssError {
	return &AbyssError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("session not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewCorruptData creates a 422 error for a stored record that cannot be
// parsed into the expected schema.
func NewCorruptData(name string, cause error) *AbyssError {
	details := map[string]any{"name": name}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &AbyssError{
		Code:    ErrCorruptData,
		Status:  422,
		Message: fmt.Sprintf("character record %q is corrupt", name),
		Details: details,
	}
}

// NewStorage creates a 500 error for an I/O failure on durable storage.
func NewStorage(op string, cause error) *AbyssError {
	msg := fmt.Sprintf("storage failure during %s", op)
	details := map[string]any{"op": op}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &AbyssError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
		Details: details,
	}
}

// NewInvalidState creates a 409 error for an operation invoked on a
// session in the wrong state (no bound character, empty input).
func NewInvalidState(msg string) *AbyssError {
	return &AbyssError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: msg,
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *AbyssError {
	return &AbyssError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error goes into Details for logging.
func NewInternal(err error) *AbyssError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &AbyssError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error is an AbyssError with the given code.
// Wrapped AbyssErrors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var aErr *AbyssError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}
