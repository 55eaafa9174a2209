package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an [Error] for boundary translation. Kinds map to
// HTTP-equivalent status codes; messages within a kind are deliberately
// drawn from a small fixed set so that distinct internal causes stay
// indistinguishable on the wire.
type ErrorKind uint8

const (
	// KindValidation marks malformed, missing, or oversized input. Raised
	// before any storage access or cryptographic work.
	KindValidation ErrorKind = iota + 1
	// KindAuth marks every credential-shaped failure: wrong password,
	// unknown user, disabled account, consumed/immature/expired refresh
	// token. All of them share the same external shape.
	KindAuth
	// KindNotFound marks a redeemed refresh credential whose owning user
	// record is gone.
	KindNotFound
	// KindInternal marks hashing, signing, permission-resolution, and
	// storage faults. Detail is logged server-side, never returned.
	KindInternal
	// KindUnavailable marks an unacknowledged write.
	KindUnavailable
)

// Error is the tagged result type produced by all Engine operations. The
// Message is the exact string a boundary may expose; the wrapped cause is
// for server-side logging only.
//
// Error instances are intended to be constructed by this package and treated
// as immutable.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the internal cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is reports kind+message equality so that wrapped instances match their
// sentinel (errors.Is(err, ErrInvalidCredentials) works on a wrapped copy).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Status returns the HTTP-equivalent status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrInvalidCredentials is the single externally observable outcome for
	// unknown-username and wrong-password login failures.
	ErrInvalidCredentials = &Error{Kind: KindAuth, Message: "Invalid username/password"}
	// ErrInvalidRefresh is the single externally observable outcome for
	// never-issued, already-consumed, immature, expired, and wrong-owner
	// refresh credentials.
	ErrInvalidRefresh = &Error{Kind: KindAuth, Message: "Invalid credential"}
	// ErrAccountDisabled is the generic account-disabled failure (no
	// operator-supplied reason on record).
	ErrAccountDisabled = &Error{Kind: KindAuth, Message: "Your account is disabled."}
	// ErrUserNotFound is returned when a consumed refresh credential points
	// at a user record that no longer exists.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "No such user is known"}
	// ErrInternal is the generic internal fault. The cause is carried for
	// logging and never rendered.
	ErrInternal = &Error{Kind: KindInternal, Message: "Internal error"}
	// ErrWriteNotAcknowledged is returned when the store did not confirm a
	// password write.
	ErrWriteNotAcknowledged = &Error{Kind: KindUnavailable, Message: "Write not acknowledged"}
)

// errNotReady guards against use of a zero-value Engine.
var errNotReady = errors.New("engine not initialized")

// validationError constructs a KindValidation error with the exact boundary
// message.
func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// internalError wraps a cause into the generic internal fault.
func internalError(cause error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, cause: cause}
}

// disabledError renders the account-disabled failure. A non-empty reason is
// embedded verbatim; it is operator free text and any renderer must treat it
// as untrusted markup.
func disabledError(reason string) *Error {
	if reason == "" {
		return ErrAccountDisabled
	}
	return &Error{Kind: KindAuth, Message: fmt.Sprintf("Your account is disabled: %s", reason)}
}
