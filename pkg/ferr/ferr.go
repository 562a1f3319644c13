// Package ferr defines the fisherman's error taxonomy: a closed set of
// kinds every component boundary reports through, so callers can decide
// whether to retry, surface to a human, or exit the process.
package ferr

import (
	"errors"
	"fmt"
)

// Kind is a closed classification of failure handling policy.
type Kind string

const (
	// InvalidInput: malformed key material, short passphrase, bad signature
	// hex, malformed envelope header. Never retried; surfaced to the caller.
	InvalidInput Kind = "invalid_input"

	// Transient: RPC timeout, DB connection lost, extrinsic mempool
	// rejection due to staleness. Absorbed and retried by the scheduler.
	Transient Kind = "transient"

	// Inconsistent: a post-extrinsic forest root didn't match the
	// completion event. Fatal for the tick; the intent stays pending and
	// the next tick recomputes.
	Inconsistent Kind = "inconsistent"

	// Fatal: on-chain runtime incompatibility (decode failure). The
	// process exits non-zero for operator intervention.
	Fatal Kind = "fatal"
)

// Error wraps an underlying error with a Kind so callers can branch on
// handling policy via errors.As without string matching.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "chainrpc.SubmitExtrinsic"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as a classified Error. Returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid is a convenience constructor for InvalidInput errors.
func Invalid(op string, format string, args ...any) error {
	return &Error{Kind: InvalidInput, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind of err, defaulting to Fatal for unclassified
// errors — an unrecognized failure should not be silently retried forever.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if err == nil {
		return ""
	}
	return Fatal
}

// IsTransient reports whether err should be retried by a scheduler loop.
func IsTransient(err error) bool {
	return KindOf(err) == Transient
}

// IsInvalidInput reports whether err should surface verbatim to a caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == InvalidInput
}
