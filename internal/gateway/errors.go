package gateway

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindPaymentRequired
	KindRateLimit
	KindConfiguration
	KindContextUnavailable
	KindUpstreamUnavailable
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindConfiguration, KindContextUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// String is the outcome label used in logs, metrics and usage events.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "invalid"
	case KindAuthorization:
		return "forbidden"
	case KindPaymentRequired:
		return "payment_required"
	case KindRateLimit:
		return "rate_limited"
	case KindConfiguration:
		return "not_configured"
	case KindContextUnavailable:
		return "context_unavailable"
	default:
		return "unavailable"
	}
}

// Error is the typed failure returned by Handle. Message is safe to show to
// the caller; Err is for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int { return e.Kind.Status() }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

const unavailableMessage = "The AI tutor is temporarily unavailable. Please try again in a moment."

// AsError returns err as a *Error. Anything untyped becomes an upstream
// failure with a generic message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return newError(KindUpstreamUnavailable, unavailableMessage, err)
}
