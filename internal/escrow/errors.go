package escrow

import (
	"errors"
	"fmt"
)

// Kind classifies escrow failures for callers deciding whether a retry is safe.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidParty        Kind = "invalid_party"
	KindInvalidState        Kind = "invalid_state"
	KindNotEligible         Kind = "not_eligible"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindUpstream            Kind = "upstream_error"
	KindConflict            Kind = "conflict"
)

// Error is the only error type that crosses the adapter boundary.
type Error struct {
	Kind     Kind
	Op       string
	Provider string
	Message  string
	Err      error
}

var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidParty        = &Error{Kind: KindInvalidParty}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrNotEligible         = &Error{Kind: KindNotEligible}
	ErrProviderUnavailable = &Error{Kind: KindProviderUnavailable}
	ErrUpstream            = &Error{Kind: KindUpstream}
	ErrConflict            = &Error{Kind: KindConflict}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotEligible)
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, format, args...)
}

func InvalidParty(op, format string, args ...any) *Error {
	return newError(KindInvalidParty, op, format, args...)
}

func InvalidState(op, format string, args ...any) *Error {
	return newError(KindInvalidState, op, format, args...)
}

func NotEligible(op, format string, args ...any) *Error {
	return newError(KindNotEligible, op, format, args...)
}

func ProviderUnavailable(op, provider, format string, args ...any) *Error {
	e := newError(KindProviderUnavailable, op, format, args...)
	e.Provider = provider
	return e
}

// Upstream wraps a provider failure, including timeouts.
func Upstream(op, provider string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Provider: provider, Message: "provider call failed", Err: err}
}

// KindOf returns the escrow kind of err, or "" if err is not an escrow error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// RetrySafe reports whether the caller can repeat the operation without
// reconciling first. Upstream failures are never retry-safe: a capture or
// refund may have gone through.
func RetrySafe(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindProviderUnavailable, KindConflict:
		return true
	default:
		return false
	}
}

// fallbackEligible reports whether a create failure may be retried on the
// default provider.
func fallbackEligible(err error) bool {
	switch KindOf(err) {
	case KindProviderUnavailable, KindUpstream:
		return true
	default:
		return false
	}
}
