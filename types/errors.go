package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the opcsub library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// Components wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error classes:
//   - Configuration errors fail the call synchronously and are never retried
//   - Caller errors (double registration, use after close) fail synchronously
//   - Transient session errors are logged, isolated and retried in the background

// Configuration errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSubscriptionOptionsRequired is returned when a registration's configuration
	// source carries no subscription options.
	ErrSubscriptionOptionsRequired = errors.New("subscription options are required")

	// ErrSessionRequired is returned when a nil session is supplied.
	ErrSessionRequired = errors.New("session is required")

	// ErrSourceRequired is returned when a nil configuration source is supplied.
	ErrSourceRequired = errors.New("configuration source is required")

	// ErrQueueRequired is returned when a nil notification queue is supplied.
	ErrQueueRequired = errors.New("notification queue is required")

	// ErrQueueNotComparable is returned when a notification queue cannot be used as
	// a registration key (its dynamic type is not comparable).
	ErrQueueNotComparable = errors.New("notification queue must be comparable")
)

// Caller errors.
var (
	// ErrAlreadyRegistered is returned when a notification queue registers twice.
	ErrAlreadyRegistered = errors.New("notification queue already registered")

	// ErrClientClosed is returned when an operation is attempted on a closed client.
	ErrClientClosed = errors.New("client closed")

	// ErrReaderClosed is returned by a Reader after it has been closed.
	ErrReaderClosed = errors.New("reader closed")
)

// Session errors.
var (
	// ErrNotConnected indicates the session is currently not connected.
	ErrNotConnected = errors.New("session not connected")
)

// ServiceError carries an OPC UA status code for a failed service call.
//
// Session adapters convert protocol-level failures into ServiceError so that the
// sampling path can report the exact status code in-band.
type ServiceError struct {
	Code StatusCode
	Err  error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("service error: %s", e.Code)
	}

	return fmt.Sprintf("service error %s: %v", e.Code, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError wraps err with the given status code.
func NewServiceError(code StatusCode, err error) *ServiceError {
	return &ServiceError{Code: code, Err: err}
}

// StatusCodeOf maps an error to the status code reported to consumers.
//
// Returns:
//   - StatusGood for a nil error
//   - The carried code for a *ServiceError
//   - StatusBadTimeout for context.DeadlineExceeded
//   - StatusBadUnexpectedError otherwise
func StatusCodeOf(err error) StatusCode {
	if err == nil {
		return StatusGood
	}

	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusBadTimeout
	}
	if errors.Is(err, ErrNotConnected) {
		return StatusBadNotConnected
	}

	return StatusBadUnexpectedError
}
