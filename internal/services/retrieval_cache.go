package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"personachat/internal/models"
)

// RetrievalCache is an optional read-through cache in front of the vector index.
// Entries hold creator-filtered index candidates and expire after a bounded TTL.
// A miss reports ok=false and is never an error.
type RetrievalCache interface {
	Get(ctx context.Context, key string) ([]models.IndexCandidate, bool, error)
	Set(ctx context.Context, key string, candidates []models.IndexCandidate) error
}

// RetrievalCacheKey builds the cache key from the creator, the normalized query text and k
func RetrievalCacheKey(creatorRef models.CreatorCorpusRef, normalizedQuery string, k int) string {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return fmt.Sprintf("retrieval:%s:%d:%s", creatorRef, k, hex.EncodeToString(sum[:12]))
}

// RedisRetrievalCache shares cached candidates across the fleet
type RedisRetrievalCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisRetrievalCache creates a Redis-backed retrieval cache
func NewRedisRetrievalCache(client redis.Cmdable, ttl time.Duration) *RedisRetrievalCache {
	return &RedisRetrievalCache{client: client, ttl: ttl}
}

// Get returns cached candidates for key
func (c *RedisRetrievalCache) Get(ctx context.Context, key string) ([]models.IndexCandidate, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("retrieval cache get: %w", err)
	}

	var candidates []models.IndexCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, false, fmt.Errorf("retrieval cache decode: %w", err)
	}
	return candidates, true, nil
}

// Set stores candidates for key with the cache TTL
func (c *RedisRetrievalCache) Set(ctx context.Context, key string, candidates []models.IndexCandidate) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("retrieval cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("retrieval cache set: %w", err)
	}
	return nil
}

// LocalRetrievalCache keeps candidates in process memory with a TTL.
// Each worker has its own copy, so freshness is bounded by the TTL only.
type LocalRetrievalCache struct {
	cache *cache.Cache
}

// NewLocalRetrievalCache creates an in-process retrieval cache
func NewLocalRetrievalCache(ttl time.Duration) *LocalRetrievalCache {
	return &LocalRetrievalCache{cache: cache.New(ttl, 2*ttl)}
}

// Get returns cached candidates for key
func (c *LocalRetrievalCache) Get(_ context.Context, key string) ([]models.IndexCandidate, bool, error) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	cached := v.([]models.IndexCandidate)
	out := make([]models.IndexCandidate, len(cached))
	copy(out, cached)
	return out, true, nil
}

// Set stores a copy of candidates for key
func (c *LocalRetrievalCache) Set(_ context.Context, key string, candidates []models.IndexCandidate) error {
	stored := make([]models.IndexCandidate, len(candidates))
	copy(stored, candidates)
	c.cache.SetDefault(key, stored)
	return nil
}
