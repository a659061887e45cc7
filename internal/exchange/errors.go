package exchange

import (
	"errors"
	"fmt"
)

// Kind classifies adapter and controller failures. Transient kinds
// (RateLimited, Network) are retried by the controller; the rest abort
// the affected pair immediately.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindNotFound
	KindSchema
	KindNetwork
	KindUnsupported
	KindNoProgress
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindSchema:
		return "schema_error"
	case KindNetwork:
		return "network_error"
	case KindUnsupported:
		return "unsupported"
	case KindNoProgress:
		return "no_progress"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced per (asset, exchange) pair.
type Error struct {
	Kind     Kind
	Exchange string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Exchange, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Exchange, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, exchange, msg string) *Error {
	return &Error{Kind: kind, Exchange: exchange, Msg: msg}
}

func WrapError(kind Kind, exchange, msg string, err error) *Error {
	return &Error{Kind: kind, Exchange: exchange, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain, KindUnknown when the
// chain carries no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Retryable reports whether the controller may retry the failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNetwork:
		return true
	default:
		return false
	}
}
