package hunter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/leadenrich/internal/adapter/driven/hunter"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

func newTestClient(t *testing.T, handler http.Handler) *hunter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return hunter.NewClientWithBaseURL(server.Client(), server.URL, "test-key")
}

func TestEnrichEmail_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /email-verifier", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "john@acme.com", r.URL.Query().Get("email"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"email":"john@acme.com","status":"valid","result":"deliverable","score":91,"webmail":false,"smtp_check":true,"sources":[{"domain":"acme.com"}]}}`))
	})

	client := newTestClient(t, mux)

	rec, err := client.EnrichEmail(context.Background(), "john@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "john@acme.com", rec["email"])
	assert.Equal(t, "valid", rec["status"])
	assert.Equal(t, 91, rec["score"])
	assert.Equal(t, true, rec["smtp_check"])
	assert.Len(t, rec["sources"], 1)
}

func TestEnrichDomain_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /domain-search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme.com", r.URL.Query().Get("domain"))
		_, _ = w.Write([]byte(`{"data":{"domain":"acme.com","organization":"<b>Acme</b>","industry":"Manufacturing","pattern":null,"emails":[{"value":"a@acme.com"},{"value":"b@acme.com"}]}}`))
	})

	client := newTestClient(t, mux)

	rec, err := client.EnrichDomain(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["organization"])
	assert.Equal(t, "Manufacturing", rec["industry"])
	assert.Nil(t, rec["pattern"])
	assert.Equal(t, 2, rec["email_count"])
	assert.Len(t, rec["emails"], 2)
}

func TestEnrichDomain_EmailListCapped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /domain-search", func(w http.ResponseWriter, _ *http.Request) {
		body := `{"data":{"domain":"big.com","organization":"Big","emails":[`
		for i := range 15 {
			if i > 0 {
				body += ","
			}
			body += `{"value":"x@big.com"}`
		}
		body += `]}}`
		_, _ = w.Write([]byte(body))
	})

	rec, err := newTestClient(t, mux).EnrichDomain(context.Background(), "big.com")
	require.NoError(t, err)
	assert.Equal(t, 15, rec["email_count"])
	assert.Len(t, rec["emails"], 10)
}

func TestEnrichDomain_EmptyOrganizationIsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /domain-search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"domain":"ghost.io","organization":null,"emails":[]}}`))
	})

	_, err := newTestClient(t, mux).EnrichDomain(context.Background(), "ghost.io")
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestEnrich_ServerErrorIsProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /domain-search", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":[{"details":"boom"}]}`, http.StatusInternalServerError)
	})

	_, err := newTestClient(t, mux).EnrichDomain(context.Background(), "acme.com")
	assert.ErrorIs(t, err, driven.ErrProviderError)
}

func TestEnrich_UnauthorizedIsProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /email-verifier", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := newTestClient(t, mux).EnrichEmail(context.Background(), "john@acme.com")
	assert.ErrorIs(t, err, driven.ErrProviderError)
}

func TestEnrich_Unconfigured(t *testing.T) {
	client := hunter.NewClient("", nil)

	assert.False(t, client.Configured())
	assert.Equal(t, "hunter", client.Name())

	_, err := client.EnrichEmail(context.Background(), "john@acme.com")
	assert.ErrorIs(t, err, driven.ErrProviderUnavailable)
}
