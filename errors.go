package hopscotch

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies the errors a Map can surface, per spec.md 7.
type Kind int

const (
	// KindKeyNotFound is returned by At for an absent key.
	KindKeyNotFound Kind = iota
	// KindAllocationFailed is returned when a custom Allocator fails to
	// allocate a bucket array, on construction or on growth. Overflow-list
	// nodes are not allocated through the Allocator, so adding an entry to
	// the overflow list never returns this kind.
	KindAllocationFailed
	// KindMoveConstructFailed is returned when re-inserting an entry into
	// the new table during a rehash fails. Displacement (hop-closer) never
	// returns an error.
	KindMoveConstructFailed
	// KindCopyConstructFailed completes the error vocabulary; no operation
	// of this package returns it.
	KindCopyConstructFailed
	// KindConfigurationInvalid is returned by New/MustNew for a static
	// misconfiguration: N out of range, growth ratio too small, or an
	// initial bucket count that cannot be honored.
	KindConfigurationInvalid
)

func (k Kind) String() string {
	switch k {
	case KindKeyNotFound:
		return "key not found"
	case KindAllocationFailed:
		return "allocation failed"
	case KindMoveConstructFailed:
		return "move construction failed"
	case KindCopyConstructFailed:
		return "copy construction failed"
	case KindConfigurationInvalid:
		return "invalid configuration"
	default:
		return "unknown"
	}
}

// mapError wraps a Kind so callers can classify failures with errors.As
// without depending on error string contents, matching the errWithCode
// pattern used elsewhere in the pack for typed, wrapped errors.
type mapError struct {
	kind  Kind
	cause error
}

var _ error = (*mapError)(nil)
var _ fmt.Formatter = (*mapError)(nil)

func (e *mapError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *mapError) Unwrap() error { return e.cause }

func (e *mapError) Format(s fmt.State, verb rune) { errors.FormatError(e, s, verb) }

// KindOf reports the Kind of err, if err (or something it wraps) was
// produced by this package.
func KindOf(err error) (Kind, bool) {
	var me *mapError
	if errors.As(err, &me) {
		return me.kind, true
	}
	return 0, false
}

// IsKeyNotFound reports whether err is (or wraps) a KindKeyNotFound error.
func IsKeyNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindKeyNotFound
}

func newKindError(kind Kind, format string, args ...interface{}) error {
	return &mapError{kind: kind, cause: errors.Newf(format, args...)}
}

func wrapKindError(kind Kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return newKindError(kind, format, args...)
	}
	return &mapError{kind: kind, cause: errors.Wrapf(cause, format, args...)}
}

// errKeyNotFound builds the error At returns for an absent key.
func errKeyNotFound[K any](key K) error {
	return newKindError(KindKeyNotFound, "key %v not found", key)
}
