package synthetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

func TestEnrichDomain_DerivesNameFromFirstLabel(t *testing.T) {
	p := New()

	rec, err := p.EnrichDomain(context.Background(), "acme.co.uk")
	require.NoError(t, err)

	assert.Equal(t, "Acme", rec["name"])
	assert.Equal(t, "https://acme.co.uk", rec["website"])
	assert.Equal(t, "@acme", rec["twitter"])
	assert.Contains(t, industries, rec["industry"])

	employees, ok := rec["employees"].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, employees, 10)
	assert.Less(t, employees, 10010)
}

func TestEnrichDomain_Deterministic(t *testing.T) {
	p := New()

	first, err := p.EnrichDomain(context.Background(), "example.com")
	require.NoError(t, err)
	second, err := p.EnrichDomain(context.Background(), "example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEnrichEmail(t *testing.T) {
	p := New()

	rec, err := p.EnrichEmail(context.Background(), "jane@gmail.com")
	require.NoError(t, err)

	assert.Equal(t, "valid", rec["status"])
	assert.Equal(t, true, rec["webmail"])

	company, ok := rec["company"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Gmail", company["name"])
	assert.Equal(t, "gmail.com", company["domain"])
}

func TestProvider_Identity(t *testing.T) {
	p := New()

	assert.Equal(t, model.SourceFallback, p.Name())
	assert.True(t, p.Configured())
}
