package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// store is the consumer interface for counter operations (ISP).
type store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Limiter is a fixed-window request limiter backed by atomic store counters.
// One INCR decides admission, so two concurrent requests can never both be
// admitted past the ceiling.
type Limiter struct {
	store   store
	routeID string
	window  time.Duration
	ceiling int64
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a limiter for one route. Window and ceiling are deployment
// configuration, not per caller.
func New(s store, routeID string, window time.Duration, ceiling int, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:   s,
		routeID: routeID,
		window:  window,
		ceiling: int64(ceiling),
		logger:  logger,
		now:     time.Now,
	}
}

// Admit records one request for the identity and admits it if the window
// ceiling is not exceeded. Store failures admit the request: a broken counter
// store should degrade limiting, not availability.
func (l *Limiter) Admit(ctx context.Context, identity string) error {
	if identity == "" {
		identity = "unknown"
	}

	now := l.now()
	windowStart := now.Truncate(l.window)
	key := fmt.Sprintf("%sratelimit:%s:%s:%d", domain.KeyPrefix, l.routeID, identity, windowStart.Unix())

	count, err := l.store.IncrBy(ctx, key, 1)
	if err != nil {
		l.logger.Warn("Rate limit counter unavailable, admitting request",
			zap.String("route", l.routeID),
			zap.Error(err),
		)
		return nil
	}

	if count == 1 {
		// Keep the key one extra window so a clock-edge read never misses it.
		if err := l.store.Expire(ctx, key, 2*l.window, true); err != nil {
			l.logger.Warn("Failed to set rate limit key TTL", zap.String("key", key), zap.Error(err))
		}
	}

	if count > l.ceiling {
		retryAfter := windowStart.Add(l.window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return domain.NewRateLimited(retryAfter)
	}

	return nil
}
