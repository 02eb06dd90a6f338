package briefs

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the content-addressed memoization store from spec §4.3: a hit
// against hash(system_prompt || model_id || truncated_content) returns the
// brief without an LLM call; a miss stores the fresh result with a TTL.
type Cache interface {
	Get(ctx context.Context, key [32]byte) (value json.RawMessage, found bool, err error)
	Put(ctx context.Context, key [32]byte, value json.RawMessage, ttl time.Duration) error
}

// daysToDuration converts a whole-days TTL into a time.Duration, defaulting
// to the spec's 30-day cache TTL when unset.
func daysToDuration(days int) time.Duration {
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// MemoKey returns the content-addressed digest for one brief-extraction
// call, matching spec §4.3's hash(system_prompt || model_id || content).
func MemoKey(systemPrompt, modelID, truncatedContent string) [32]byte {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte(modelID))
	h.Write([]byte(truncatedContent))
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// RedisCache is the Cache backing production runs: a shared dependency so
// multiple workflow runs over unchanged pages do zero LLM work.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache wraps an existing Redis client as a Cache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func redisKey(key [32]byte) string {
	return fmt.Sprintf("curator:brief-cache:%x", key)
}

func (c *RedisCache) Get(ctx context.Context, key [32]byte) (json.RawMessage, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("briefs: cache get: %w", err)
	}
	return raw, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key [32]byte, value json.RawMessage, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, redisKey(key), []byte(value), ttl).Err(); err != nil {
		return fmt.Errorf("briefs: cache put: %w", err)
	}
	return nil
}
