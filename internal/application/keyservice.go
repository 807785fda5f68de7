package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

const (
	keyPrefix     = "le_"
	keyRandomSize = 32
	// displayPrefixLen covers "le_" plus eight hex characters.
	displayPrefixLen = len(keyPrefix) + 8

	// DefaultStatsDays is the stats window when none is requested.
	DefaultStatsDays = 30
	// MaxStatsDays caps the stats window.
	MaxStatsDays = 365
)

// KeyService issues, lists and revokes API keys and reports usage.
type KeyService struct {
	accounts driven.AccountStore
	usage    driven.UsageStore
	now      func() time.Time
}

// NewKeyService creates a KeyService.
func NewKeyService(accounts driven.AccountStore, usage driven.UsageStore) *KeyService {
	return &KeyService{accounts: accounts, usage: usage, now: time.Now}
}

// Create issues a new key for name. The plaintext is returned once and only
// its hash is stored.
func (s *KeyService) Create(ctx context.Context, name string) (model.IssuedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.IssuedKey{}, fmt.Errorf("create key: name is required: %w", ErrBadRequest)
	}

	plaintext, err := generateKey()
	if err != nil {
		return model.IssuedKey{}, err
	}

	acct, err := s.accounts.Create(ctx, name, HashKey(plaintext), plaintext[:displayPrefixLen])
	if err != nil {
		return model.IssuedKey{}, fmt.Errorf("create key: %w", err)
	}

	return model.IssuedKey{Account: acct, Plaintext: plaintext}, nil
}

// List returns every account without secrets.
func (s *KeyService) List(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return accounts, nil
}

// Revoke deactivates the account. The record is kept for usage history.
func (s *KeyService) Revoke(ctx context.Context, id int64) error {
	if err := s.accounts.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	return nil
}

// Stats aggregates usage over the last days days for one account, or for all
// accounts when accountID is nil. Non-positive days means DefaultStatsDays;
// larger values are capped at MaxStatsDays.
func (s *KeyService) Stats(ctx context.Context, accountID *int64, days int) (model.UsageStats, error) {
	days = ClampDays(days)

	since := s.now().UTC().AddDate(0, 0, -days)
	stats, err := s.usage.Stats(ctx, accountID, since)
	if err != nil {
		return model.UsageStats{}, fmt.Errorf("usage stats: %w", err)
	}
	return stats, nil
}

// ClampDays applies the stats window default and cap.
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultStatsDays
	case days > MaxStatsDays:
		return MaxStatsDays
	default:
		return days
	}
}

func generateKey() (string, error) {
	buf := make([]byte, keyRandomSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}
