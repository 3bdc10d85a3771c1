// Package lock provides a Redis-backed lock shared by every process that
// writes the same database.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/tipbook/backoffice/internal/shared"
)

const (
	// DefaultTTL bounds how long a crashed holder can block a key.
	DefaultTTL = 30 * time.Second
	// DefaultWait is how long Lock retries before giving up.
	DefaultWait   = 5 * time.Second
	retryInterval = 100 * time.Millisecond
)

// ErrBusy is returned when another process kept the key for the whole wait.
var ErrBusy = fmt.Errorf("%w: lock held by another process", shared.ErrConflict)

// Redis obtains keyed locks through redislock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *slog.Logger
}

// NewRedis wraps rdb. Zero ttl or wait fall back to the defaults.
func NewRedis(rdb *redis.Client, ttl, wait time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client: redislock.New(rdb),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Lock waits up to the configured budget for key. When Redis itself fails
// the caller proceeds unlocked and relies on its own guards; only a key held
// elsewhere for the whole wait yields ErrBusy.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	retries := int(r.wait / retryInterval)
	l, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retries),
	})
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		r.logger.Warn("lock busy", slog.String("key", key))
		return nil, ErrBusy
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		r.logger.Warn("redis lock unavailable, proceeding without it",
			slog.String("key", key), slog.Any("error", err))
		return func() {}, nil
	}

	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
