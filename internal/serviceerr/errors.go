// Package serviceerr defines the error taxonomy shared by the login
// flow: protocol errors surfaced to the caller with a 4xx status,
// upstream failures reaching the identity provider, and programming
// errors in the callback extension point.
package serviceerr

import (
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidRequest       Code = "invalid_request"
	CodeUnauthorized         Code = "unauthorized"
	CodeStateMismatch        Code = "state_mismatch"
	CodeNonceMismatch        Code = "nonce_mismatch"
	CodeExchangeRejected     Code = "exchange_rejected"
	CodeUpstreamUnavailable  Code = "upstream_unavailable"
	CodeInterceptorViolation Code = "interceptor_violation"
	CodeNotFound             Code = "not_found"
	CodeConflict             Code = "conflict"
	CodeUnknown              Code = "unknown"
)

var (
	ErrNotFound     = New(CodeNotFound, "not found")
	ErrConflict     = New(CodeConflict, "already exists")
	ErrUnauthorized = New(CodeUnauthorized, "unauthorized")
	ErrUnknown      = New(CodeUnknown, "unknown error")

	ErrStateMismatch = New(CodeStateMismatch, "state does not match the value stored for this login attempt")
	ErrStateMissing  = New(CodeStateMismatch, "no state is stored for this login attempt")
	ErrNonceMismatch = New(CodeNonceMismatch, "nonce in the ID token does not match the value stored for this login attempt")
	ErrInvalidAtHash = New(CodeExchangeRejected, "access token hash does not match the at_hash claim")
)

// Error carries a stable code for callers plus a human readable
// description. The description is meant for debugging and must not
// embed secret material or verbatim provider responses.
type Error struct {
	Err         Code
	Description string

	wrapped error
}

func New(code Code, description string) *Error {
	return &Error{Err: code, Description: description}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Err: code, Description: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error. The cause stays available via
// errors.Unwrap but is not part of the client visible description.
func Wrap(code Code, description string, cause error) *Error {
	return &Error{Err: code, Description: description, wrapped: cause}
}

func (e *Error) Error() string {
	switch {
	case e.Description == "" && e.wrapped == nil:
		return string(e.Err)
	case e.wrapped == nil:
		return fmt.Sprintf("%s: %s", e.Err, e.Description)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Err, e.Description, e.wrapped)
	}
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches any *Error with the same code, so sentinel comparisons
// like errors.Is(err, ErrStateMismatch) hold for wrapped instances.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Err == e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeStateMismatch, CodeNonceMismatch, CodeExchangeRejected:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
