package catalog

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix = "catalog:v1:"
	// versionKey sits outside cachePrefix so InvalidateAll leaves it alone.
	versionKey = "catalog:version"
)

var bumpVersion = redis.NewScript(`
local cur = tonumber(redis.call("get", KEYS[1]) or "0")
if tonumber(ARGV[1]) > cur then
  redis.call("set", KEYS[1], ARGV[1])
end
return 0`)

// Cache stores rendered public catalog payloads in Redis. Each entry records the document
// version it was rendered from, and entries older than the last written version read as
// misses, so a render that raced an admin write cannot outlive the invalidation.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

type cacheEntry struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) disabled() bool { return c == nil || c.client == nil }

// GetJSON decodes the entry for key into dst. It reports false for a missing or stale entry.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c.disabled() || key == "" {
		return false, nil
	}
	vals, err := c.client.MGet(ctx, cachePrefix+key, versionKey).Result()
	if err != nil {
		return false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return false, nil
	}
	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return false, err
	}
	if current, ok := vals[1].(string); ok {
		v, err := strconv.ParseInt(current, 10, 64)
		if err != nil {
			return false, err
		}
		if entry.Version < v {
			return false, nil
		}
	}
	if err := json.Unmarshal(entry.Data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v for key as rendered from document version.
func (c *Cache) SetJSON(ctx context.Context, key string, version int64, v any) error {
	if c.disabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(cacheEntry{Version: version, Data: data})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cachePrefix+key, entry, c.ttl).Err()
}

// SetVersion records version as the latest written document. It never moves backwards.
func (c *Cache) SetVersion(ctx context.Context, version int64) error {
	if c.disabled() {
		return nil
	}
	return bumpVersion.Run(ctx, c.client, []string{versionKey}, version).Err()
}

// InvalidateAll drops every cached catalog payload.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if c.disabled() {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}
