// Package validate turns raw enrichment input into canonical cache keys.
// Every function here is pure.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned for input that is not a usable email or domain.
var ErrInvalidFormat = errors.New("invalid format")

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// One or more labels followed by an alphabetic TLD of at least two
	// characters. Labels are 1-63 alphanumerics or hyphens with no hyphen at
	// either end.
	domainPattern = regexp.MustCompile(`^(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,63}$`)
)

// Email is a validated email address.
type Email struct {
	Value  string
	Domain string
}

// NormalizeEmail validates input as an email address. The value is returned
// unchanged, case included, together with the text after the @.
func NormalizeEmail(input string) (Email, error) {
	if !emailPattern.MatchString(input) {
		return Email{}, fmt.Errorf("email %q: %w", input, ErrInvalidFormat)
	}
	at := strings.LastIndexByte(input, '@')
	return Email{Value: input, Domain: input[at+1:]}, nil
}

// NormalizeDomain strips a leading http:// or https:// and any path, query or
// fragment, then validates what remains as a hostname. Case is preserved.
func NormalizeDomain(input string) (string, error) {
	cleaned := stripScheme(input)
	if i := strings.IndexAny(cleaned, "/?#"); i >= 0 {
		cleaned = cleaned[:i]
	}

	if !domainPattern.MatchString(cleaned) {
		return "", fmt.Errorf("domain %q: %w", input, ErrInvalidFormat)
	}
	return cleaned, nil
}

func stripScheme(s string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme) {
			return s[len(scheme):]
		}
	}
	return s
}

// FirstLabel returns the leftmost label of a domain ("acme" for "acme.co.uk").
func FirstLabel(domain string) string {
	if i := strings.IndexByte(domain, '.'); i >= 0 {
		return domain[:i]
	}
	return domain
}
