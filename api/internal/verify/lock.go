package verify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"civicconnect-backend/shared/lockx"
)

func lockKey(id uuid.UUID) string {
	return "ml:verify:lock:" + id.String()
}

// RedisLocker backs the per-complaint lease with redis.
type RedisLocker struct {
	Client *redis.Client
}

func (l RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, acquired, err := lockx.Acquire(ctx, l.Client, key, ttl)
	if err != nil || !acquired {
		return nil, acquired, err
	}
	release := func(ctx context.Context) error {
		return lockx.Release(ctx, l.Client, lock)
	}
	return release, true, nil
}
