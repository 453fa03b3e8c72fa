package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultCompletionTTL is the default lifetime of a cached completion.
const DefaultCompletionTTL = time.Hour

// CompletionCache stores completion results keyed by a digest of the
// request. A nil client disables the cache: every lookup misses and
// every write is a no-op, so callers never branch on availability.
type CompletionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCompletionCache creates a completion cache. client may be nil.
func NewCompletionCache(client *redis.Client, ttl time.Duration) *CompletionCache {
	if ttl <= 0 {
		ttl = DefaultCompletionTTL
	}
	return &CompletionCache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is attached.
func (c *CompletionCache) Enabled() bool { return c.client != nil }

// Get returns the cached completion for a request, or (nil, nil) on
// a miss.
func (c *CompletionCache) Get(ctx context.Context, req domain.CompletionRequest) (map[string]interface{}, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, CompletionKey(requestDigest(req))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached completion: %w", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached completion: %w", err)
	}
	return result, nil
}

// Set stores a completion result under the request's digest.
func (c *CompletionCache) Set(ctx context.Context, req domain.CompletionRequest, result map[string]interface{}) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal completion: %w", err)
	}
	if err := c.client.Set(ctx, CompletionKey(requestDigest(req)), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache completion: %w", err)
	}
	return nil
}

// Prune removes every cached completion. The maintenance monitor calls
// this when memory pressure is climbing.
func (c *CompletionCache) Prune(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, KeyPrefixCompletion+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete completion key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to prune completions: %w", err)
	}
	return nil
}

func requestDigest(req domain.CompletionRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
