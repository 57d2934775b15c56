package lead

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayGuard claims a delivery key so a retried task does not repeat a channel that already succeeded.
type ReplayGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayGuard implements ReplayGuard with SETNX.
type RedisReplayGuard struct {
	Client *redis.Client
}

// Acquire attempts to claim key for ttl.
func (r RedisReplayGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, key, "1", ttl).Result()
}

// Release removes the guard so the next attempt delivers again.
func (r RedisReplayGuard) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}
