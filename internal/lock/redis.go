package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-inventory-ledger/pkg/cache"
	"go-inventory-ledger/pkg/config"
	"go-inventory-ledger/pkg/logger"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const retryBackoff = 25 * time.Millisecond

// RedisLocker is a Locker shared by every API replica pointed at the same redis.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	timeout time.Duration
	logg    *logger.Logger
}

func NewRedisLocker(raw *redis.Client, cfg config.LedgerConfig, logg *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:  redislock.New(raw),
		ttl:     cfg.LockTTL,
		timeout: cfg.LockTimeout,
		logg:    logg,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	obtainCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		obtainCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	redisKey := cache.Key("lock", key)
	lk, err := l.client.Obtain(obtainCtx, redisKey, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryBackoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", redisKey, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be cancelled; release must still go out.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) && l.logg != nil {
				l.logg.Error(l.logg.WithField(ctx, "lock_key", redisKey), "failed to release product lock", err)
			}
		})
	}, nil
}
