package model

import (
	"fmt"
	"time"
)

// Kind identifies what an enrichment query is about.
type Kind string

const (
	KindEmail  Kind = "email"
	KindDomain Kind = "domain"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEmail, KindDomain:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown enrichment kind %q", s)
	}
}

// Operation returns the usage-log operation name for the kind.
func (k Kind) Operation() string {
	if k == KindEmail {
		return OperationEnrichEmail
	}
	return OperationEnrichDomain
}

// CacheEntry is a cached enrichment payload keyed by (Kind, Query).
type CacheEntry struct {
	Kind      Kind
	Query     string
	Data      Record
	Source    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Live reports whether the entry is usable at now.
func (e CacheEntry) Live(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}
