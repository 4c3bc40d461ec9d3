package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/readmit-risk-server/internal/domain"
)

// CacheClient wraps a Redis client with caching for resolved environment
// factors, shared across server instances.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// CachedEnvironment represents cached environment factors with metadata
type CachedEnvironment struct {
	Data      *domain.EnvironmentFactors `json:"data"`
	CachedAt  time.Time                  `json:"cached_at"`
	ExpiresAt time.Time                  `json:"expires_at"`
}

// GetEnvironment retrieves cached environment factors for a unit.
func (c *CacheClient) GetEnvironment(ctx context.Context, unit string) (*domain.EnvironmentFactors, bool, error) {
	key := c.environmentKey(unit)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get environment cache: %w", err)
	}

	var cached CachedEnvironment
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Data, true, nil
}

// SetEnvironment caches environment factors for a unit.
func (c *CacheClient) SetEnvironment(ctx context.Context, unit string, factors *domain.EnvironmentFactors, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedEnvironment{
		Data:      factors,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal environment cache data: %w", err)
	}

	return c.redis.Set(ctx, c.environmentKey(unit), jsonData, ttl).Err()
}

// Close releases the underlying Redis connections.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func (c *CacheClient) environmentKey(unit string) string {
	hash := sha256.Sum256([]byte(unit))
	return fmt.Sprintf("environment:%x", hash[:8])
}
