// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// Sentinel errors returned by Provider implementations. The orchestrator
// treats all of them as non-terminal and moves on to the next provider.
var (
	// ErrProviderUnavailable indicates the provider has no credential configured
	// or is temporarily disabled.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderError indicates a remote 4xx/5xx response or a transport fault.
	ErrProviderError = errors.New("provider error")

	// ErrNotFound indicates the provider has no data for the query.
	ErrNotFound = errors.New("no match found")
)

// Provider is an upstream enrichment source.
type Provider interface {
	// Name is the stable source label stored with cached results.
	Name() string

	// Configured reports whether the provider has the credentials it needs.
	Configured() bool

	EnrichEmail(ctx context.Context, email string) (model.Record, error)
	EnrichDomain(ctx context.Context, domain string) (model.Record, error)
}
