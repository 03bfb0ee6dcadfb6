// Package invdomain defines the failure taxonomy shared by the service layer
// and its callers. Storage-level errors (constraint violations, connectivity)
// are translated into these kinds at the repository boundary so that raw
// driver detail never reaches a client.
package invdomain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. Handlers map kinds to HTTP statuses;
// automation clients use them to decide whether a retry is safe.
type Kind string

const (
	// Caller errors — retrying the same request will fail again.
	KindInvalidInput Kind = "invalid_input"
	KindInvalidCost  Kind = "invalid_cost"
	KindDuplicateSKU Kind = "duplicate_sku"
	KindNotFound     Kind = "not_found"

	// Business-rule violations — the caller must change intent (e.g. force).
	KindNonZeroOnHand Kind = "non_zero_on_hand"
	KindInactiveItem  Kind = "inactive_item"
	KindInvalidDelta  Kind = "invalid_delta"

	// Same idempotency key, different semantics — a caller bug.
	KindIdempotencyConflict Kind = "idempotency_conflict"

	// Transient — safe to retry with backoff.
	KindInProgress Kind = "in_progress"
	KindTimeout    Kind = "timeout"

	// Everything else. Detail is logged server-side, never returned.
	KindInternal Kind = "internal"
)

// Retryable reports whether a failure of this kind is transient.
func (k Kind) Retryable() bool {
	return k == KindInProgress || k == KindTimeout
}

// Error is a domain failure with a stable kind and a safe message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a domain error.
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Ef builds a domain error with a formatted message.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause for server-side logs. The cause is
// reachable via errors.Unwrap but handlers only ever render Message.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf extracts the Kind of err, or KindInternal for non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Is reports whether err is a domain error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
