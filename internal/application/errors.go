package application

import (
	"context"
	"errors"

	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

// Sentinel errors returned by the application services.
var (
	// ErrInvalidSource indicates a preferred source that names no provider.
	ErrInvalidSource = errors.New("unknown source")

	// ErrBadRequest indicates a malformed request such as a missing field.
	ErrBadRequest = errors.New("bad request")

	ErrMissingKey     = errors.New("no key")
	ErrInvalidKey     = errors.New("invalid key")
	ErrKeyDeactivated = errors.New("deactivated")

	// ErrRateLimited indicates the caller exhausted its window quota.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrProvidersExhausted is returned only when no provider produced a
	// record and no always-succeeding fallback is configured.
	ErrProvidersExhausted = errors.New("all providers failed")
)

// ErrorKind is the stable label reported to API callers.
type ErrorKind string

const (
	KindInvalidFormat    ErrorKind = "invalid_format"
	KindBadRequest       ErrorKind = "bad_request"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindRateLimited      ErrorKind = "rate_limited"
	KindNotFound         ErrorKind = "not_found"
	KindStoreUnavailable ErrorKind = "store_unavailable"
	KindCanceled         ErrorKind = "canceled"
	KindInternal         ErrorKind = "internal"
)

// KindOf classifies err. Unrecognized errors are internal. A caller that went
// away is reported as canceled even when the failure surfaced from a store.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, validate.ErrInvalidFormat), errors.Is(err, ErrInvalidSource):
		return KindInvalidFormat
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, ErrMissingKey), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrKeyDeactivated):
		return KindUnauthorized
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, driven.ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, driven.ErrStoreUnavailable):
		return KindStoreUnavailable
	default:
		return KindInternal
	}
}
