// Package ratelimit enforces the per-recipient fixed-window outbound quota
// on top of an external atomic counter store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CounterStore is the atomic increment-with-expiry primitive the limiter
// requires. Increment must be atomic across concurrent callers for the
// same key; a read-modify-write pair is not acceptable.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCounterStore backs CounterStore with Redis INCR/EXPIRE.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore wraps an existing go-redis client.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// Ping verifies store connectivity at startup.
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Limiter tracks outbound volume per recipient in a fixed window.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	logger *logrus.Logger
}

// NewLimiter creates a limiter with the given per-window ceiling. Zero or
// negative values fall back to the defaults (100 messages per hour).
func NewLimiter(store CounterStore, limit int, window time.Duration, logger *logrus.Logger) *Limiter {
	if limit <= 0 {
		limit = constants.DefaultRateLimitPerHour
	}
	if window <= 0 {
		window = time.Duration(constants.DefaultRateLimitWindowMin) * time.Minute
	}
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// CheckAndConsume atomically consumes one unit of the recipient's quota.
// The attempt counts even when it pushes the counter over the ceiling;
// the increment is never reverted (fail closed against abuse). Over-ceiling
// returns a RATE_LIMIT error; a store failure returns a COUNTER_STORE
// error so callers can tell quota exhaustion from infrastructure trouble.
func (l *Limiter) CheckAndConsume(ctx context.Context, recipient string) error {
	key := constants.RateLimitKeyPrefix + recipient

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		return apperrors.NewCounterStoreError(err)
	}

	// First increment in the window owns the expiry. INCR atomicity
	// guarantees exactly one caller observes count == 1.
	if count == 1 {
		if err := l.store.Expire(ctx, key, l.window); err != nil {
			return apperrors.NewCounterStoreError(err)
		}
	}

	if count > int64(l.limit) {
		l.logger.WithFields(logrus.Fields{
			"recipient": maskRecipient(recipient),
			"count":     count,
			"limit":     l.limit,
		}).Warn("Rate limit exceeded")
		return apperrors.NewRateLimitError(recipient, l.limit, l.window.String())
	}

	return nil
}

// Limit returns the configured per-window ceiling.
func (l *Limiter) Limit() int {
	return l.limit
}

func maskRecipient(recipient string) string {
	if len(recipient) > constants.DefaultPhoneMaskLength {
		return "***" + recipient[len(recipient)-constants.DefaultPhoneMaskLength:]
	}
	return "***"
}
