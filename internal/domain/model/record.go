package model

import (
	"encoding/json"
	"time"
)

// Source labels that are not provider names.
const (
	SourceAuto     = "auto"
	SourceFallback = "fallback"
)

// Record is a normalized provider payload. Its fields are provider-specific.
type Record map[string]any

// Result is what an enrichment call returns to its caller.
type Result struct {
	Kind   Kind
	Query  string
	Data   Record
	Source string
	Cached bool
}

// MarshalJSON flattens the record next to the queried value, source and
// cached flag. The reserved keys always win over record fields.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	out[string(r.Kind)] = r.Query
	out["source"] = r.Source
	out["cached"] = r.Cached
	return json.Marshal(out)
}

// RateDecision is the outcome of a rate-limit check.
type RateDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long until the window resets, never negative.
func (d RateDecision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}
