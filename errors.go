package glyphkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the glyphkit package. All errors returned by the
// package either are one of these or wrap one of them, so callers can
// always classify a failure with errors.Is.
var (
	// ErrUnknownFormat is returned by registration when the backend does
	// not recognize the font data format.
	ErrUnknownFormat = errors.New("glyphkit: unknown font format")

	// ErrCorruptFont is returned by registration when the backend
	// recognizes the format but fails to decode the face.
	ErrCorruptFont = errors.New("glyphkit: corrupt font")

	// ErrUnknownFont is returned when a FontHandle does not reference a
	// registered face (never registered, or unregistered since).
	ErrUnknownFont = errors.New("glyphkit: unknown font handle")

	// ErrMissingGlyph is returned by production when the face has no
	// glyph for the requested index. Eligible for negative memoization.
	ErrMissingGlyph = errors.New("glyphkit: missing glyph")

	// ErrInvalidOutline is returned by production when the backend emits
	// an outline that violates its structural invariants.
	ErrInvalidOutline = errors.New("glyphkit: invalid outline")

	// ErrBackendIO is returned for transient backend I/O failures.
	// Never negatively memoized.
	ErrBackendIO = errors.New("glyphkit: backend i/o")

	// ErrInvalidFingerprint is returned for malformed requests, such as a
	// non-positive pixel size or an unknown representation. A caller bug.
	ErrInvalidFingerprint = errors.New("glyphkit: invalid fingerprint")

	// ErrConfigOutOfRange is returned by production when render flags ask
	// for something outside the producible range (e.g. absurd gamma).
	// Eligible for negative memoization.
	ErrConfigOutOfRange = errors.New("glyphkit: config out of range")

	// ErrBudgetExhausted is returned when a single artifact's byte cost
	// exceeds the entire cache budget. The artifact is still produced and
	// returned alongside this error; it is just not cached.
	ErrBudgetExhausted = errors.New("glyphkit: artifact exceeds cache budget")

	// ErrTimeout is returned when a caller abandons its wait on another
	// caller's in-flight production. The production itself keeps running.
	ErrTimeout = errors.New("glyphkit: wait timed out")

	// ErrUnsupported is returned by backends for capabilities they do not
	// implement (e.g. variation axes on a static font).
	ErrUnsupported = errors.New("glyphkit: unsupported by backend")

	// ErrBackendVersionChanged is returned by dump loading when the dump
	// was written against a different backend version. The dump is
	// discarded; at runtime this is not an error condition.
	ErrBackendVersionChanged = errors.New("glyphkit: dump backend version changed")

	// ErrCacheClosed is returned by cache operations after Close.
	ErrCacheClosed = errors.New("glyphkit: cache closed")
)

// FingerprintError decorates ErrInvalidFingerprint with the offending field.
type FingerprintError struct {
	Field  string
	Reason string
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("glyphkit: invalid fingerprint.%s: %s", e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidFingerprint) hold.
func (e *FingerprintError) Unwrap() error { return ErrInvalidFingerprint }

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("glyphkit: invalid config.%s: %s", e.Field, e.Reason)
}

// isDeterministicFailure reports whether a production error is a property
// of the request itself rather than a transient condition, and is therefore
// eligible for negative memoization.
func isDeterministicFailure(err error) bool {
	return errors.Is(err, ErrMissingGlyph) ||
		errors.Is(err, ErrInvalidOutline) ||
		errors.Is(err, ErrConfigOutOfRange) ||
		errors.Is(err, ErrInvalidFingerprint)
}
