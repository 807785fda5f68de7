package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// UsageStore defines the driven port for the append-only usage log.
type UsageStore interface {
	// Append stores a usage record. Records are never updated or deleted.
	Append(ctx context.Context, rec model.UsageRecord) error

	// Stats aggregates records created at or after since. A nil accountID
	// aggregates across all accounts.
	Stats(ctx context.Context, accountID *int64, since time.Time) (model.UsageStats, error)
}
