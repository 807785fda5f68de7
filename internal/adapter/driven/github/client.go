// Package github implements the Provider port on top of the GitHub REST API,
// resolving domains to organizations and emails to user profiles.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/sanitize"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
	"github.com/ericfisherdev/leadenrich/internal/domain/validate"
)

// Name is the source label for results served by this provider.
const Name = "github"

// searchPageSize bounds how many candidate organizations are inspected.
const searchPageSize = 5

// Compile-time interface satisfaction check.
var _ driven.Provider = (*Client)(nil)

// Client implements the driven.Provider port using the go-github library.
type Client struct {
	gh     *gh.Client
	token  string
	logger *slog.Logger
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string, logger *slog.Logger) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client, token: token, logger: logger}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, logger *slog.Logger) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client, token: token, logger: logger}, nil
}

func (c *Client) Name() string { return Name }

// Configured reports whether a token is set. Anonymous search quotas are too
// small to serve production traffic.
func (c *Client) Configured() bool { return c.token != "" }

// EnrichDomain searches organizations named after the domain's first label
// and returns the first one whose blog URL points at the domain. A candidate
// that cannot be fetched is skipped; the lookup fails with a provider error
// only when every candidate failed that way.
func (c *Client) EnrichDomain(ctx context.Context, domain string) (model.Record, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("github: %w", driven.ErrProviderUnavailable)
	}

	query := validate.FirstLabel(domain) + " type:org"
	result, resp, err := c.gh.Search.Users(ctx, query, &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: searchPageSize},
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("searching organizations for %s", domain), err)
	}
	c.logRateLimit(resp, "search/users", len(result.Users))

	var hardErrs []error
	for _, candidate := range result.Users {
		login := candidate.GetLogin()
		org, resp, err := c.gh.Organizations.Get(ctx, login)
		if err != nil {
			err = classify(fmt.Sprintf("getting organization %s", login), err)
			if ctx.Err() != nil {
				return nil, err
			}
			c.logger.Debug("skipping github organization candidate", "domain", domain, "login", login, "error", err)
			if errors.Is(err, driven.ErrProviderError) {
				hardErrs = append(hardErrs, err)
			}
			continue
		}
		c.logRateLimit(resp, "orgs/"+login, 1)

		if hostMatches(org.GetBlog(), domain) {
			return sanitize.Record(mapOrganization(org, domain)), nil
		}
	}

	if len(result.Users) > 0 && len(hardErrs) == len(result.Users) {
		return nil, errors.Join(hardErrs...)
	}
	return nil, fmt.Errorf("github organization for %s: %w", domain, driven.ErrNotFound)
}

// EnrichEmail finds the user whose public email is the given address.
func (c *Client) EnrichEmail(ctx context.Context, email string) (model.Record, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("github: %w", driven.ErrProviderUnavailable)
	}

	result, resp, err := c.gh.Search.Users(ctx, email+" in:email type:user", &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("searching users for %s", email), err)
	}
	c.logRateLimit(resp, "search/users", len(result.Users))

	if len(result.Users) == 0 {
		return nil, fmt.Errorf("github user for %s: %w", email, driven.ErrNotFound)
	}

	login := result.Users[0].GetLogin()
	user, resp, err := c.gh.Users.Get(ctx, login)
	if err != nil {
		return nil, classify(fmt.Sprintf("getting user %s", login), err)
	}
	c.logRateLimit(resp, "users/"+login, 1)

	return sanitize.Record(mapUser(user, email)), nil
}

// classify maps go-github errors onto the provider sentinels.
func classify(action string, err error) error {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", action, driven.ErrNotFound)
	}
	return errors.Join(driven.ErrProviderError, fmt.Errorf("%s: %w", action, err))
}

// hostMatches reports whether blog is a URL or bare host for domain,
// ignoring a leading "www.".
func hostMatches(blog, domain string) bool {
	if blog == "" {
		return false
	}
	if !strings.Contains(blog, "://") {
		blog = "https://" + blog
	}
	u, err := url.Parse(blog)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == strings.TrimPrefix(strings.ToLower(domain), "www.")
}

// logRateLimit logs the GitHub API rate limit status after each call.
func (c *Client) logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 5 {
		c.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapOrganization converts a go-github Organization to an enrichment record.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapOrganization(org *gh.Organization, domain string) model.Record {
	rec := model.Record{
		"domain":       domain,
		"name":         org.GetName(),
		"login":        org.GetLogin(),
		"description":  org.GetDescription(),
		"location":     org.GetLocation(),
		"email":        org.GetEmail(),
		"website":      org.GetBlog(),
		"github_url":   org.GetHTMLURL(),
		"logo":         org.GetAvatarURL(),
		"public_repos": org.GetPublicRepos(),
		"followers":    org.GetFollowers(),
		"verified":     org.GetIsVerified(),
	}
	if org.GetName() == "" {
		rec["name"] = org.GetLogin()
	}
	if tw := org.GetTwitterUsername(); tw != "" {
		rec["twitter"] = "@" + tw
	}
	if created := org.GetCreatedAt(); !created.IsZero() {
		rec["foundedYear"] = created.Year()
	}
	return rec
}

// mapUser converts a go-github User to an enrichment record.
func mapUser(u *gh.User, email string) model.Record {
	rec := model.Record{
		"email":        email,
		"name":         u.GetName(),
		"login":        u.GetLogin(),
		"company":      strings.TrimPrefix(u.GetCompany(), "@"),
		"location":     u.GetLocation(),
		"bio":          u.GetBio(),
		"website":      u.GetBlog(),
		"github_url":   u.GetHTMLURL(),
		"avatar":       u.GetAvatarURL(),
		"public_repos": u.GetPublicRepos(),
		"followers":    u.GetFollowers(),
		"hireable":     u.GetHireable(),
	}
	if tw := u.GetTwitterUsername(); tw != "" {
		rec["twitter"] = "@" + tw
	}
	return rec
}
