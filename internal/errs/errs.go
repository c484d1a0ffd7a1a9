// Package errs defines the closed error taxonomy every component in the
// core reports against: Validation, InsufficientData, Transient,
// RateLimited, Permanent, Fatal. Policy (retry? surface? abort?) is
// decided once, here, rather than re-derived ad hoc at each call site.
package errs

import "errors"

// Kind is one of the six policy buckets.
type Kind int

const (
	KindValidation Kind = iota
	KindInsufficientData
	KindTransient
	KindRateLimited
	KindPermanent
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientData:
		return "insufficient_data"
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindPermanent:
		return "permanent"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// policy without string-matching error messages.
type Error struct {
	Kind Kind
	Op   string // component/operation that produced the error, e.g. "exchange.FetchTicker"
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a kinded error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) *Error       { return New(KindValidation, op, err) }
func InsufficientData(op string, err error) *Error { return New(KindInsufficientData, op, err) }
func Transient(op string, err error) *Error        { return New(KindTransient, op, err) }
func RateLimited(op string, err error) *Error      { return New(KindRateLimited, op, err) }
func Permanent(op string, err error) *Error        { return New(KindPermanent, op, err) }
func Fatal(op string, err error) *Error            { return New(KindFatal, op, err) }

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the retry package should attempt the
// operation again: Transient and RateLimited are retryable, everything
// else is not.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient || e.Kind == KindRateLimited
	}
	return false
}
