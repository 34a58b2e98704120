package common

import (
	"errors"
	"net/http"
)

// Error kinds. Match with errors.Is. There is no forbidden kind: every
// authorization failure is reported as 401, never 403.
var (
	ErrValidation      = errors.New("validation error")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream error")
	ErrStorage         = errors.New("storage error")
	ErrTooManyRequests = errors.New("too many requests")
)

// Error carries a kind, a client-safe message and the underlying cause.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Kind.Error() + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Msg: msg}
}

func Unauthenticated() error {
	return &Error{Kind: ErrUnauthenticated}
}

func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Msg: msg}
}

func Upstream(err error) error {
	return &Error{Kind: ErrUpstream, Err: err}
}

func Storage(err error) error {
	return &Error{Kind: ErrStorage, Err: err}
}

func TooManyRequests(msg string) error {
	return &Error{Kind: ErrTooManyRequests, Msg: msg}
}

// Status maps an error to its HTTP status and the message that may be shown
// to the client. Auth failures share one message so callers cannot tell
// expiry from forgery.
func Status(err error) (int, string) {
	var e *Error
	msg := ""
	if errors.As(err, &e) {
		msg = e.Msg
	}
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, orDefault(msg, "invalid request")
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, orDefault(msg, "conflict")
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, orDefault(msg, "too many requests")
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway, "upstream generation failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
