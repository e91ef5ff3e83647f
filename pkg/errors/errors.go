// Package errors defines the sentinel errors and typed failures shared by the
// catalog engine, its storage backends, and the outer surfaces (API, CLI).
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("project not found")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrMalformedRecord    = errors.New("malformed persisted record")
	ErrUnknownBackend     = errors.New("unknown backend")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("operation timed out")
)

// ValidationError reports the required fields a record is missing.
type ValidationError struct {
	Name    string
	Missing []string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: missing required fields: %s", ErrValidation, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: project %q missing required fields: %s", ErrValidation, e.Name, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BackendUnavailableError is raised when a storage backend cannot reach its
// durable store. Target names the server/database/directory, Remedy tells the
// operator what to check.
type BackendUnavailableError struct {
	Backend string
	Target  string
	Remedy  string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	msg := fmt.Sprintf("%s backend unavailable at %s", e.Backend, e.Target)
	if e.Remedy != "" {
		msg += ": " + e.Remedy
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBackendUnavailable}
	}
	return []error{ErrBackendUnavailable, e.Err}
}

// MalformedRecordError identifies a persisted record that failed to parse.
// Source is the file name or document id.
type MalformedRecordError struct {
	Source string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrMalformedRecord, e.Source, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

func Malformed(source string, err error) error {
	return &MalformedRecordError{Source: source, Err: err}
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps an error to a process exit status for the command-line tools.
// Usage problems exit 2, like the standard flag parsers.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownBackend):
		return 2
	case errors.Is(err, ErrBackendUnavailable):
		return 3
	default:
		return 1
	}
}
