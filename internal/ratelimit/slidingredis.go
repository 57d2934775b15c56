package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "rl:"

// Limiter is a sliding-window counter over a Redis sorted set. Every call, allowed or not,
// counts as an attempt, so a client hammering a closed window stays closed.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records an attempt for key and reports whether it fits within limit per window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	now := time.Now()
	reset = now.Add(window)
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, reset, nil
	}
	prefix := l.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	redisKey := prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, reset, err
	}

	current := int(count.Val())
	return current <= limit, max(limit-current, 0), reset, nil
}
