package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal","message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeSuccess wraps data in the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

// writeError writes a JSON error response with the given status code, kind
// label and message.
func writeError(w http.ResponseWriter, status int, kind application.ErrorKind, message string) {
	writeJSON(w, status, errorResponse{Error: string(kind), Message: message})
}

// statusClientClosedRequest is the non-standard status recorded when the
// caller disconnects before a response is written.
const statusClientClosedRequest = 499

// statusFor maps an error kind to its HTTP status.
func statusFor(kind application.ErrorKind) int {
	switch kind {
	case application.KindInvalidFormat, application.KindBadRequest:
		return http.StatusBadRequest
	case application.KindUnauthorized:
		return http.StatusUnauthorized
	case application.KindRateLimited:
		return http.StatusTooManyRequests
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case application.KindCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// successResponse is the envelope for every successful API response.
type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EnrichEmailRequest is the JSON body for the email enrichment endpoint.
type EnrichEmailRequest struct {
	Email  string `json:"email"`
	Source string `json:"source"`
}

// EnrichDomainRequest is the JSON body for the domain enrichment endpoint.
type EnrichDomainRequest struct {
	Domain string `json:"domain"`
	Source string `json:"source"`
}

// CreateKeyRequest is the JSON body for the create key endpoint.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// KeyResponse is the JSON representation of an account. APIKey is set only
// in the response to key creation.
type KeyResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	KeyPrefix  string  `json:"key_prefix"`
	Active     bool    `json:"active"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at"`
	APIKey     string  `json:"api_key,omitempty"`
}

// StatsResponse is the JSON representation of usage statistics.
type StatsResponse struct {
	PeriodDays     int                  `json:"period_days"`
	TotalRequests  int                  `json:"total_requests"`
	EmailRequests  int                  `json:"email_requests"`
	DomainRequests int                  `json:"domain_requests"`
	RequestsToday  int                  `json:"requests_today"`
	ActiveKeys     int                  `json:"active_keys"`
	SuccessRate    int                  `json:"success_rate"`
	FirstRequest   *string              `json:"first_request"`
	LastRequest    *string              `json:"last_request"`
	Daily          []DailyUsageResponse `json:"daily_breakdown"`
}

// DailyUsageResponse is one day of the stats breakdown.
type DailyUsageResponse struct {
	Date     string `json:"date"`
	Requests int    `json:"requests"`
	Emails   int    `json:"emails"`
	Domains  int    `json:"domains"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// toKeyResponse converts a domain Account to its JSON representation.
func toKeyResponse(acct model.Account) KeyResponse {
	return KeyResponse{
		ID:         acct.ID,
		Name:       acct.Name,
		KeyPrefix:  acct.KeyPrefix,
		Active:     acct.Active,
		CreatedAt:  formatTime(acct.CreatedAt),
		LastUsedAt: formatTimePtr(acct.LastUsedAt),
	}
}

// toStatsResponse converts domain UsageStats to its JSON representation.
func toStatsResponse(stats model.UsageStats, days int) StatsResponse {
	daily := make([]DailyUsageResponse, 0, len(stats.Daily))
	for _, d := range stats.Daily {
		daily = append(daily, DailyUsageResponse{
			Date:     d.Date,
			Requests: d.Requests,
			Emails:   d.Emails,
			Domains:  d.Domains,
		})
	}

	return StatsResponse{
		PeriodDays:     days,
		TotalRequests:  stats.TotalRequests,
		EmailRequests:  stats.EmailRequests,
		DomainRequests: stats.DomainRequests,
		RequestsToday:  stats.RequestsToday,
		ActiveKeys:     stats.ActiveKeys,
		SuccessRate:    stats.SuccessRate(),
		FirstRequest:   formatTimePtr(stats.FirstRequest),
		LastRequest:    formatTimePtr(stats.LastRequest),
		Daily:          daily,
	}
}
