// Package sanitize strips markup from text returned by remote providers before
// it is cached and served.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

var strict = bluemonday.StrictPolicy()

// maxPasses bounds how many decode rounds Text runs before giving up on
// plain-text output.
const maxPasses = 8

// Text removes every HTML element from s and returns plain text. Entities are
// decoded after stripping so text such as "AT&T" survives, and the result is
// stripped again until it is stable so that entity-encoded or split tags can
// never decode into live markup. Input that does not settle is returned in its
// escaped form.
func Text(s string) string {
	if s == "" || !strings.ContainsAny(s, "<>&") {
		return s
	}

	for range maxPasses {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	return strict.Sanitize(s)
}

// Record returns a copy of rec with every string value sanitized, descending
// into nested maps and slices.
func Record(rec model.Record) model.Record {
	if rec == nil {
		return nil
	}
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[k] = value(v)
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case model.Record:
		return Record(t)
	case map[string]any:
		return map[string]any(Record(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = value(item)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = Text(item)
		}
		return out
	default:
		return v
	}
}
