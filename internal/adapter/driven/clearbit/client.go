// Package clearbit implements the Provider port against the Clearbit
// company API.
package clearbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/sanitize"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

// Name is the source label for results served by this provider.
const Name = "clearbit"

const defaultBaseURL = "https://company.clearbit.com/v2"

// Compile-time interface satisfaction check.
var _ driven.Provider = (*Client)(nil)

// Client calls Clearbit's companies/find endpoint with bearer authentication.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a Client using the given API key.
func NewClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, baseURL: defaultBaseURL, apiKey: apiKey}
}

// NewClientWithBaseURL creates a Client pointed at baseURL.
// This constructor is intended for testing against an httptest server.
func NewClientWithBaseURL(httpClient *http.Client, baseURL, apiKey string) *Client {
	c := NewClient(apiKey, httpClient)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *Client) Name() string     { return Name }
func (c *Client) Configured() bool { return c.apiKey != "" }

type company struct {
	Domain      string   `json:"domain"`
	Name        string   `json:"name"`
	LegalName   *string  `json:"legalName"`
	Description *string  `json:"description"`
	FoundedYear *int     `json:"foundedYear"`
	Logo        *string  `json:"logo"`
	Tags        []string `json:"tags"`
	Tech        []string `json:"tech"`
	Category    struct {
		Industry      *string `json:"industry"`
		SubIndustry   *string `json:"subIndustry"`
		IndustryGroup *string `json:"industryGroup"`
		Sector        *string `json:"sector"`
	} `json:"category"`
	Metrics struct {
		Raised                 *int64  `json:"raised"`
		Employees              *int    `json:"employees"`
		EmployeesRange         *string `json:"employeesRange"`
		EstimatedAnnualRevenue *string `json:"estimatedAnnualRevenue"`
	} `json:"metrics"`
	Geo struct {
		City       *string `json:"city"`
		State      *string `json:"state"`
		Country    *string `json:"country"`
		PostalCode *string `json:"postalCode"`
	} `json:"geo"`
	Facebook handle `json:"facebook"`
	Linkedin handle `json:"linkedin"`
	Twitter  handle `json:"twitter"`
}

type handle struct {
	Handle *string `json:"handle"`
}

// EnrichDomain looks up the company that owns domain.
func (c *Client) EnrichDomain(ctx context.Context, domain string) (model.Record, error) {
	co, err := c.find(ctx, domain)
	if err != nil {
		return nil, err
	}
	return sanitize.Record(companyRecord(co)), nil
}

// EnrichEmail resolves the company behind the address's domain.
func (c *Client) EnrichEmail(ctx context.Context, email string) (model.Record, error) {
	parsed, err := validate.NormalizeEmail(email)
	if err != nil {
		return nil, fmt.Errorf("clearbit email %s: %w", email, driven.ErrNotFound)
	}

	co, err := c.find(ctx, parsed.Domain)
	if err != nil {
		return nil, err
	}

	return sanitize.Record(model.Record{
		"email":   email,
		"domain":  parsed.Domain,
		"company": map[string]any(companyRecord(co)),
	}), nil
}

func (c *Client) find(ctx context.Context, domain string) (*company, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("clearbit: %w", driven.ErrProviderUnavailable)
	}

	u := c.baseURL + "/companies/find?" + url.Values{"domain": {domain}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build clearbit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(driven.ErrProviderError, fmt.Errorf("clearbit companies/find %s: %w", domain, err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("clearbit companies/find %s: %w", domain, driven.ErrNotFound)
	case resp.StatusCode == http.StatusAccepted:
		// Clearbit answers 202 while it looks the company up asynchronously.
		return nil, fmt.Errorf("clearbit companies/find %s: lookup queued: %w", domain, driven.ErrNotFound)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("clearbit companies/find %s: status %d: %s: %w", domain, resp.StatusCode, strings.TrimSpace(string(body)), driven.ErrProviderError)
	}

	var co company
	if err := json.NewDecoder(resp.Body).Decode(&co); err != nil {
		return nil, errors.Join(driven.ErrProviderError, fmt.Errorf("decode clearbit company %s: %w", domain, err))
	}
	if co.Domain == "" {
		co.Domain = domain
	}
	return &co, nil
}

func companyRecord(co *company) model.Record {
	rec := model.Record{
		"domain":      co.Domain,
		"name":        co.Name,
		"legalName":   opt(co.LegalName),
		"description": opt(co.Description),
		"category": map[string]any{
			"industry":      opt(co.Category.Industry),
			"subIndustry":   opt(co.Category.SubIndustry),
			"industryGroup": opt(co.Category.IndustryGroup),
			"sector":        opt(co.Category.Sector),
		},
		"raised":         optAny(co.Metrics.Raised),
		"employees":      optAny(co.Metrics.Employees),
		"employeesRange": opt(co.Metrics.EmployeesRange),
		"revenue":        opt(co.Metrics.EstimatedAnnualRevenue),
		"facebook":       opt(co.Facebook.Handle),
		"linkedin":       opt(co.Linkedin.Handle),
		"twitter":        opt(co.Twitter.Handle),
		"logo":           opt(co.Logo),
		"location": map[string]any{
			"city":       opt(co.Geo.City),
			"state":      opt(co.Geo.State),
			"country":    opt(co.Geo.Country),
			"postalCode": opt(co.Geo.PostalCode),
		},
		"foundedYear": optAny(co.FoundedYear),
	}
	if co.Tags != nil {
		rec["tags"] = co.Tags
	}
	if co.Tech != nil {
		rec["tech"] = co.Tech
	}
	return rec
}

// opt turns a nil pointer into an untyped nil so it serializes as null.
func opt(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func optAny[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
