package driven

import (
	"context"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// RateLimiter counts requests per key in fixed windows. Allow increments the
// counter for key and reports whether the request fits within the limit.
// Implementations must be safe for concurrent use and must not undercount.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (model.RateDecision, error)
}
