package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// touchTimeout bounds the asynchronous last-used stamp.
const touchTimeout = 5 * time.Second

// AccessGate resolves API keys to accounts and enforces the per-identity
// request quota.
type AccessGate struct {
	accounts driven.AccountStore
	limiter  driven.RateLimiter
	logger   *slog.Logger
	now      func() time.Time

	touches sync.WaitGroup
}

// NewAccessGate creates an AccessGate.
func NewAccessGate(accounts driven.AccountStore, limiter driven.RateLimiter, logger *slog.Logger) *AccessGate {
	return &AccessGate{
		accounts: accounts,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// HashKey returns the SHA-256 hex digest under which a key is stored.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves credential to an active account. The account's
// last-used time is stamped in the background.
func (g *AccessGate) Authenticate(ctx context.Context, credential string) (*model.Account, error) {
	if credential == "" {
		return nil, ErrMissingKey
	}

	acct, err := g.accounts.GetByKeyHash(ctx, HashKey(credential))
	if err != nil {
		if errors.Is(err, driven.ErrStoreUnavailable) {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		return nil, fmt.Errorf("authenticate: %w", errors.Join(driven.ErrStoreUnavailable, err))
	}
	if acct == nil {
		return nil, ErrInvalidKey
	}
	if !acct.Active {
		return nil, ErrKeyDeactivated
	}

	g.touch(ctx, acct.ID)
	return acct, nil
}

func (g *AccessGate) touch(ctx context.Context, id int64) {
	at := g.now()
	g.touches.Add(1)
	go func() {
		defer g.touches.Done()

		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()

		if err := g.accounts.TouchLastUsed(touchCtx, id, at); err != nil {
			g.logger.Warn("stamp last used failed", "account_id", id, "error", err)
		}
	}()
}

// Wait blocks until every in-flight last-used stamp has finished.
func (g *AccessGate) Wait() {
	g.touches.Wait()
}

// Allow counts one request against key. It returns ErrRateLimited together
// with the decision when the quota is exhausted. Limiter failures are logged
// and the request is allowed.
func (g *AccessGate) Allow(ctx context.Context, key string) (model.RateDecision, error) {
	decision, err := g.limiter.Allow(ctx, key)
	if err != nil {
		g.logger.Warn("rate limiter failed, allowing request", "key", key, "error", err)
		return model.RateDecision{Allowed: true}, nil
	}
	if !decision.Allowed {
		return decision, ErrRateLimited
	}
	return decision, nil
}

// AccountLimitKey is the rate-limit key for an authenticated account.
func AccountLimitKey(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}

// AddrLimitKey is the rate-limit key for an anonymous caller.
func AddrLimitKey(ip string) string {
	return "addr:" + ip
}
