package model

import "time"

// Operation names recorded in usage logs.
const (
	OperationEnrichEmail  = "enrich_email"
	OperationEnrichDomain = "enrich_domain"
)

// UsageRecord is one append-only entry in the usage log.
type UsageRecord struct {
	ID             int64
	AccountID      *int64
	Endpoint       string
	RequestData    []byte
	ResponseStatus int
	CreatedAt      time.Time
}

// UsageStats aggregates usage records over a period.
type UsageStats struct {
	TotalRequests  int
	EmailRequests  int
	DomainRequests int
	RequestsToday  int
	ActiveKeys     int
	SuccessCount   int
	ErrorCount     int
	FirstRequest   *time.Time
	LastRequest    *time.Time
	Daily          []DailyUsage
}

// SuccessRate returns the percentage of 2xx responses among responses that
// were either 2xx or >= 400. With no such responses it reports 100.
func (s UsageStats) SuccessRate() int {
	total := s.SuccessCount + s.ErrorCount
	if total == 0 {
		return 100
	}
	return (s.SuccessCount*100 + total/2) / total
}

// DailyUsage is the per-day breakdown within UsageStats.
type DailyUsage struct {
	Date     string
	Requests int
	Emails   int
	Domains  int
}
