// Package cerr defines the closed set of error kinds every chronocache
// component returns. Callers classify failures with errors.Is/errors.As
// instead of comparing strings, and backends/managers wrap the sentinel
// kinds with context via fmt.Errorf("%w: ...", cerr.ErrNotFound).
package cerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Timeout and CapacityExceeded carry no
// payload, so they stay bare sentinels.
var (
	ErrNotFound          = errors.New("key not found")
	ErrSerialization     = errors.New("serialization error")
	ErrDeserialization   = errors.New("deserialization error")
	ErrConnection        = errors.New("connection error")
	ErrBackend           = errors.New("backend error")
	ErrCyclicDependency  = errors.New("cyclic dependency detected")
	ErrLockConflict      = errors.New("lock conflict")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrCompression       = errors.New("compression error")
	ErrDecompression     = errors.New("decompression error")
	ErrTimeout           = errors.New("operation timed out")
	ErrInternal          = errors.New("internal error")
	// ErrUnsupported is returned when a runtime capability probe
	// (backend.Tagged, backend.Dependencies, ...) comes up empty.
	ErrUnsupported = errors.New("capability not supported by backend")
)

// VersionMismatchError reports a failed conditional write (IfVersion).
type VersionMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *VersionMismatchError) Is(target error) bool {
	return target == ErrVersionMismatchKind
}

// ErrVersionMismatchKind is the sentinel matched by errors.Is against a
// *VersionMismatchError; use errors.As to recover Expected/Actual.
var ErrVersionMismatchKind = errors.New("version mismatch")

// NotFound wraps ErrNotFound with the offending key.
func NotFound(key string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Backend wraps ErrBackend with a cause.
func Backend(msg string) error {
	return fmt.Errorf("%w: %s", ErrBackend, msg)
}

// Connection wraps ErrConnection with a cause.
func Connection(msg string) error {
	return fmt.Errorf("%w: %s", ErrConnection, msg)
}

// Internal wraps ErrInternal with a cause.
func Internal(msg string) error {
	return fmt.Errorf("%w: %s", ErrInternal, msg)
}

// CyclicDependency wraps ErrCyclicDependency with the offending key.
func CyclicDependency(key string) error {
	return fmt.Errorf("%w: %s", ErrCyclicDependency, key)
}

// VersionMismatch builds the typed version-conflict error.
func VersionMismatch(expected, actual uint64) error {
	return &VersionMismatchError{Expected: expected, Actual: actual}
}

// IsTripping reports whether err should trip a circuit breaker:
// connectivity/backend/timeout/internal failures count, logical
// failures like NotFound/Deserialization/VersionMismatch don't.
func IsTripping(err error) bool {
	switch {
	case errors.Is(err, ErrConnection),
		errors.Is(err, ErrBackend),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrInternal):
		return true
	default:
		return false
	}
}
