package httphandler

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed api.md
var apiReference string

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// renderDocsPage renders the embedded API reference as a standalone page.
func renderDocsPage() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	buf.WriteString(`<title>Lead Enrichment API</title></head><body><main>`)
	buf.WriteString(RenderMarkdown(apiReference))
	buf.WriteString(`</main></body></html>`)
	return buf.Bytes()
}

// EndpointDoc describes one route in the JSON catalogue.
type EndpointDoc struct {
	Description string            `json:"description"`
	Auth        string            `json:"auth"`
	Body        map[string]string `json:"body,omitempty"`
	Query       map[string]string `json:"query,omitempty"`
}

// CatalogueResponse is the JSON API catalogue served at /api/v1/docs.
type CatalogueResponse struct {
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Sources   []string               `json:"sources"`
	RateLimit string                 `json:"rate_limit"`
	Endpoints map[string]EndpointDoc `json:"endpoints"`
}

func buildCatalogue(version string, sources []string, limit int, window time.Duration) CatalogueResponse {
	return CatalogueResponse{
		Name:      "Lead Enrichment API",
		Version:   version,
		Sources:   sources,
		RateLimit: fmt.Sprintf("%d requests per %s per API key", limit, window),
		Endpoints: map[string]EndpointDoc{
			"POST /api/v1/enrich/email": {
				Description: "Enrich an email address with company data",
				Auth:        headerAPIKey,
				Body:        map[string]string{"email": "string (required)", "source": "string (optional)"},
			},
			"POST /api/v1/enrich/domain": {
				Description: "Enrich a domain with company data",
				Auth:        headerAPIKey,
				Body:        map[string]string{"domain": "string (required)", "source": "string (optional)"},
			},
			"GET /api/v1/dashboard/stats": {
				Description: "Usage statistics for the calling key",
				Auth:        headerAPIKey,
				Query:       map[string]string{"days": "integer (default 30, max 365)"},
			},
			"GET /api/v1/health": {
				Description: "Liveness probe",
				Auth:        "none",
			},
			"POST /api/v1/admin/keys": {
				Description: "Issue a new API key; the key is shown once",
				Auth:        "admin bearer token",
				Body:        map[string]string{"name": "string (required)"},
			},
			"GET /api/v1/admin/keys": {
				Description: "List issued keys without secrets",
				Auth:        "admin bearer token",
			},
			"DELETE /api/v1/admin/keys/{id}": {
				Description: "Deactivate a key",
				Auth:        "admin bearer token",
			},
			"GET /api/v1/admin/stats": {
				Description: "Usage statistics across all keys",
				Auth:        "admin bearer token",
				Query:       map[string]string{"days": "integer (default 30, max 365)"},
			},
		},
	}
}
