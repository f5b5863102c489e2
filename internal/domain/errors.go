package domain

import "errors"

// Sentinel errors shared across the controller. Callers classify with
// errors.Is after wrapping with fmt.Errorf("...: %w", err).
var (
	// ErrNotFound indicates a lab definition or student record is absent.
	ErrNotFound = errors.New("not found")

	// ErrTimeout indicates an external check or chat call exceeded its bound.
	ErrTimeout = errors.New("timed out")

	// ErrMalformedResult indicates an external check exited 0 but emitted
	// output that could not be parsed or validated.
	ErrMalformedResult = errors.New("malformed result")

	// ErrExternalFailure indicates an external check exited non-zero or an
	// HTTP call failed to connect.
	ErrExternalFailure = errors.New("external failure")

	// ErrValidation indicates a caller-supplied argument outside its
	// allowed domain.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence indicates a student record could not be written.
	// Persistence failures are fatal to the invoking command and must not
	// be confused with verification failures.
	ErrPersistence = errors.New("persistence failure")
)
