package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

// Sentinel errors returned by AccountStore and other store implementations.
var (
	// ErrAccountNotFound indicates no account exists with the requested ID.
	ErrAccountNotFound = errors.New("account not found")

	// ErrStoreUnavailable wraps connectivity failures of a backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AccountStore defines the driven port for account persistence. Accounts are
// looked up by the SHA-256 hex hash of their API key.
type AccountStore interface {
	// Create inserts a new active account and returns it with ID and CreatedAt set.
	Create(ctx context.Context, name, keyHash, keyPrefix string) (model.Account, error)

	// GetByKeyHash returns nil, nil when no account has the given hash.
	GetByKeyHash(ctx context.Context, keyHash string) (*model.Account, error)

	// List returns all accounts, newest first.
	List(ctx context.Context) ([]model.Account, error)

	// Deactivate clears the active flag. Returns ErrAccountNotFound if the ID is unknown.
	Deactivate(ctx context.Context, id int64) error

	// TouchLastUsed sets last_used_at for the account.
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}
