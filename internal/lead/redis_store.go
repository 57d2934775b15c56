package lead

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisListKey = "leads"

// RedisStore keeps leads as JSON entries in a capped Redis list, newest first.
type RedisStore struct {
	Client     *redis.Client
	MaxEntries int64
}

// Save prepends l and trims the list to MaxEntries.
func (s *RedisStore) Save(ctx context.Context, l Lead) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("lead: encode: %w", err)
	}
	pipe := s.Client.TxPipeline()
	pipe.LPush(ctx, redisListKey, data)
	if s.MaxEntries > 0 {
		pipe.LTrim(ctx, redisListKey, 0, s.MaxEntries-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lead: redis save: %w", err)
	}
	return nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, offset, limit int) ([]Lead, int, error) {
	total, err := s.Client.LLen(ctx, redisListKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("lead: redis count: %w", err)
	}
	out := []Lead{}
	if limit <= 0 || int64(offset) >= total {
		return out, int(total), nil
	}
	raw, err := s.Client.LRange(ctx, redisListKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("lead: redis list: %w", err)
	}
	for _, item := range raw {
		var l Lead
		if err := json.Unmarshal([]byte(item), &l); err != nil {
			continue
		}
		out = append(out, l)
	}
	return out, int(total), nil
}
