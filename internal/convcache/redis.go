package convcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache resolves spec §9's open question about horizontally
// scaling the "more details" expansion: a second Cache implementation
// over a shared Redis instance, selected when
// conversation_cache_backend=redis is configured. go-redis/v9 shipped
// in the teacher's go.mod with zero imports in its own source; this is
// its first real use.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache over client with the given key TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, requestID string) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(requestID)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("convcache.RedisCache.Get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("convcache.RedisCache.Get: decode: %w", err)
	}
	return e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, requestID string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("convcache.RedisCache.Set: encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(requestID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("convcache.RedisCache.Set: %w", err)
	}
	return nil
}

func redisKey(requestID string) string {
	return "convcache:" + requestID
}
