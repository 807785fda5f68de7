// Package hunter implements the Provider port against the Hunter.io v2 API.
package hunter

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
)

// Name is the source label for results served by this provider.
const Name = "hunter"

const defaultBaseURL = "https://api.hunter.io/v2"

// maxEmails caps the email list copied from a domain search.
const maxEmails = 10

// Compile-time interface satisfaction check.
var _ driven.Provider = (*Client)(nil)

// Client calls Hunter.io's email-verifier and domain-search endpoints.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewClient creates a Client using the given API key. An empty key yields an
// unconfigured provider whose calls fail with driven.ErrProviderUnavailable.
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

type verifierResponse struct {
	Data struct {
		Email      string          `json:"email"`
		Status     string          `json:"status"`
		Result     string          `json:"result"`
		Score      int             `json:"score"`
		Regexp     bool            `json:"regexp"`
		Gibberish  bool            `json:"gibberish"`
		Disposable bool            `json:"disposable"`
		Webmail    bool            `json:"webmail"`
		MXRecords  bool            `json:"mx_records"`
		SMTPServer bool            `json:"smtp_server"`
		SMTPCheck  bool            `json:"smtp_check"`
		AcceptAll  bool            `json:"accept_all"`
		Block      bool            `json:"block"`
		Sources    json.RawMessage `json:"sources"`
	} `json:"data"`
}

// EnrichEmail verifies an address with the email-verifier endpoint.
func (c *Client) EnrichEmail(ctx context.Context, email string) (model.Record, error) {
	var resp verifierResponse
	if err := c.get(ctx, "/email-verifier", url.Values{"email": {email}}, &resp); err != nil {
		return nil, err
	}

	d := resp.Data
	if d.Email == "" && d.Status == "" {
		return nil, fmt.Errorf("hunter email-verifier %s: %w", email, driven.ErrNotFound)
	}

	rec := model.Record{
		"email":       d.Email,
		"status":      d.Status,
		"result":      d.Result,
		"score":       d.Score,
		"regexp":      d.Regexp,
		"gibberish":   d.Gibberish,
		"disposable":  d.Disposable,
		"webmail":     d.Webmail,
		"mx_records":  d.MXRecords,
		"smtp_server": d.SMTPServer,
		"smtp_check":  d.SMTPCheck,
		"accept_all":  d.AcceptAll,
		"block":       d.Block,
	}
	if sources := decodeAny(d.Sources); sources != nil {
		rec["sources"] = sources
	}

	return sanitize.Record(rec), nil
}

type domainSearchResponse struct {
	Data struct {
		Domain       string            `json:"domain"`
		Disposable   bool              `json:"disposable"`
		Webmail      bool              `json:"webmail"`
		AcceptAll    bool              `json:"accept_all"`
		Pattern      *string           `json:"pattern"`
		Organization *string           `json:"organization"`
		Description  *string           `json:"description"`
		Industry     *string           `json:"industry"`
		CompanyType  *string           `json:"company_type"`
		Headquarters *string           `json:"headquarters"`
		LinkedinURL  *string           `json:"linkedin_url"`
		Twitter      *string           `json:"twitter"`
		Facebook     *string           `json:"facebook"`
		PhoneNumber  *string           `json:"phone_number"`
		Emails       []json.RawMessage `json:"emails"`
	} `json:"data"`
}

// EnrichDomain looks up an organization with the domain-search endpoint.
// A response with no organization and no emails is reported as not found.
func (c *Client) EnrichDomain(ctx context.Context, domain string) (model.Record, error) {
	var resp domainSearchResponse
	if err := c.get(ctx, "/domain-search", url.Values{"domain": {domain}}, &resp); err != nil {
		return nil, err
	}

	d := resp.Data
	if deref(d.Organization) == "" && len(d.Emails) == 0 {
		return nil, fmt.Errorf("hunter domain-search %s: %w", domain, driven.ErrNotFound)
	}

	emails := make([]any, 0, min(len(d.Emails), maxEmails))
	for _, raw := range d.Emails[:min(len(d.Emails), maxEmails)] {
		if v := decodeAny(raw); v != nil {
			emails = append(emails, v)
		}
	}

	rec := model.Record{
		"domain":       d.Domain,
		"disposable":   d.Disposable,
		"webmail":      d.Webmail,
		"accept_all":   d.AcceptAll,
		"pattern":      d.Pattern,
		"organization": d.Organization,
		"description":  d.Description,
		"industry":     d.Industry,
		"company_type": d.CompanyType,
		"headquarters": d.Headquarters,
		"linkedin_url": d.LinkedinURL,
		"twitter":      d.Twitter,
		"facebook":     d.Facebook,
		"phone_number": d.PhoneNumber,
		"email_count":  len(d.Emails),
		"emails":       emails,
	}
	for k, v := range rec {
		if p, ok := v.(*string); ok {
			if p == nil {
				rec[k] = nil
			} else {
				rec[k] = *p
			}
		}
	}

	return sanitize.Record(rec), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if !c.Configured() {
		return fmt.Errorf("hunter: %w", driven.ErrProviderUnavailable)
	}

	params.Set("api_key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build hunter request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Drop the URL from the error; it carries the API key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return errors.Join(driven.ErrProviderError, fmt.Errorf("hunter %s: %w", path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("hunter %s: %w", path, driven.ErrNotFound)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hunter %s: status %d: %s: %w", path, resp.StatusCode, strings.TrimSpace(string(body)), driven.ErrProviderError)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(driven.ErrProviderError, fmt.Errorf("decode hunter %s: %w", path, err))
	}
	return nil
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
