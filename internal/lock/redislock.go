package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned by RunOnce when the key is already claimed.
var ErrBusy = errors.New("lock: held by another process")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// Locker guards catalog writes and scheduled jobs with a Redis SET NX lock.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
}

// WithLock waits for key, runs fn and releases the lock whatever fn returns.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if err := l.check(fn); err != nil {
		return err
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		token, ok, err := l.acquire(ctx, key, ttl)
		if err != nil {
			return err
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// RunOnce runs fn at most once per window across every process sharing the Redis.
// The key stays set after fn succeeds and expires with the window. A failed fn gives the
// key back so a retry can claim it. ErrBusy means the window was already claimed.
func (l Locker) RunOnce(ctx context.Context, key string, window time.Duration, fn func(context.Context) error) error {
	if err := l.check(fn); err != nil {
		return err
	}
	token, ok, err := l.acquire(ctx, key, window)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	if err := fn(ctx); err != nil {
		l.release(key, token)
		return err
	}
	return nil
}

func (l Locker) check(fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	return nil
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	return token, ok, err
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// a failed release leaves the key to expire with its ttl
	_ = l.R.Eval(ctx, releaseScript, []string{key}, token).Err()
}
