// Package synthetic implements a Provider that fabricates a plausible company
// profile from the query alone. It never fails and is always the last
// provider in the fallback chain.
package synthetic

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

// Compile-time interface satisfaction check.
var _ driven.Provider = (*Provider)(nil)

var (
	industries = []string{"Technology", "Financial Services", "Healthcare", "E-commerce", "SaaS"}
	cities     = []string{"San Francisco", "New York", "London", "Austin", "Seattle"}
	webmail    = map[string]bool{
		"gmail.com":   true,
		"yahoo.com":   true,
		"outlook.com": true,
		"hotmail.com": true,
	}
)

// Provider derives records deterministically: the same query always yields
// the same record.
type Provider struct{}

// New returns the synthetic provider.
func New() *Provider { return &Provider{} }

func (*Provider) Name() string     { return model.SourceFallback }
func (*Provider) Configured() bool { return true }

// EnrichDomain builds a company profile named after the domain's first label.
func (*Provider) EnrichDomain(_ context.Context, domain string) (model.Record, error) {
	label := validate.FirstLabel(domain)
	name := companyName(label)
	seed := newSeed(domain)

	return model.Record{
		"name":           name,
		"description":    fmt.Sprintf("%s is a leading company in their industry, providing innovative solutions and services to customers worldwide.", name),
		"industry":       industries[seed.intn(len(industries))],
		"employees":      10 + seed.intn(10000),
		"employeesRange": "51-200",
		"foundedYear":    1980 + seed.intn(40),
		"revenue":        "$10M - $50M",
		"location": map[string]any{
			"city":    cities[seed.intn(len(cities))],
			"state":   "California",
			"country": "United States",
		},
		"website":  "https://" + domain,
		"linkedin": "https://linkedin.com/company/" + label,
		"twitter":  "@" + label,
		"logo":     "https://logo.clearbit.com/" + domain,
		"tags":     []string{"technology", "innovation", "growth", "startup"},
		"tech":     []string{"AWS", "React", "Node.js", "PostgreSQL", "Docker"},
	}, nil
}

// EnrichEmail builds a deliverability verdict plus the company behind the
// address's domain.
func (*Provider) EnrichEmail(_ context.Context, email string) (model.Record, error) {
	domain := email
	if at := strings.LastIndexByte(email, '@'); at >= 0 {
		domain = email[at+1:]
	}
	label := validate.FirstLabel(domain)
	name := companyName(label)
	seed := newSeed(email)

	return model.Record{
		"status":     "valid",
		"result":     "deliverable",
		"score":      95,
		"disposable": false,
		"webmail":    webmail[strings.ToLower(domain)],
		"mx_records": true,
		"smtp_check": true,
		"domain": map[string]any{
			"name":   name,
			"domain": domain,
		},
		"company": map[string]any{
			"name":        name,
			"domain":      domain,
			"description": fmt.Sprintf("%s is a leading company in their industry, providing innovative solutions.", name),
			"industry":    "Technology",
			"employees":   50 + seed.intn(5000),
			"founded":     1990 + seed.intn(30),
			"location": map[string]any{
				"city":    "San Francisco",
				"state":   "California",
				"country": "United States",
			},
			"website":  "https://" + domain,
			"linkedin": "https://linkedin.com/company/" + label,
		},
	}, nil
}

func companyName(label string) string {
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// seed is a splitmix64 stream seeded from the query hash.
type seed struct {
	state uint64
}

func newSeed(query string) *seed {
	return &seed{state: xxhash.Sum64String(strings.ToLower(query))}
}

func (s *seed) next() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (s *seed) intn(n int) int {
	return int(s.next() % uint64(n))
}
