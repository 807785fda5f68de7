package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ericfisherdev/leadenrich/internal/domain/model"
	"github.com/ericfisherdev/leadenrich/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RateLimiter = (*Redis)(nil)

const keyPrefix = "leadenrich:ratelimit:"

// RedisConfig holds the connection settings for the shared limiter.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Redis shares fixed-window counters between instances. When Redis cannot be
// reached the request is allowed and the failure logged.
type Redis struct {
	rdb    *redis.Client
	limit  int
	size   time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, limit int, size time.Duration, logger *slog.Logger) (*Redis, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		rdb:    rdb,
		limit:  limit,
		size:   size,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Allow increments the counter for key. The first increment of a window sets
// the key's expiry to the window size.
func (r *Redis) Allow(ctx context.Context, key string) (model.RateDecision, error) {
	count, ttl, err := r.incr(ctx, keyPrefix+key)
	if err != nil {
		r.logger.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return model.RateDecision{
			Allowed:   true,
			Limit:     r.limit,
			Remaining: r.limit,
			ResetAt:   r.now().Add(r.size),
		}, nil
	}

	return decide(count, r.limit, r.now().Add(ttl)), nil
}

func (r *Redis) incr(ctx context.Context, key string) (int, time.Duration, error) {
	pipe := r.rdb.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment rate limit counter: %w", err)
	}

	ttl := ttlCmd.Val()
	// A negative TTL means the key was just created (or lost its expiry).
	if ttl < 0 {
		if err := r.rdb.PExpire(ctx, key, r.size).Err(); err != nil {
			return 0, 0, fmt.Errorf("set rate limit window: %w", err)
		}
		ttl = r.size
	}

	return int(incrCmd.Val()), ttl, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
