package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/database"
	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultCacheTTL applies when Set is called without a TTL
	DefaultCacheTTL = time.Hour
)

var errRedisUnavailable = errors.New("redis client not initialized")

// CacheService stores JSON values in Redis.
type CacheService struct{}

// Get reports whether key was found and decoded into dest. A miss is not an
// error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if database.RedisClient == nil {
		return false, errRedisUnavailable
	}

	val, err := database.RedisClient.Get(ctx, CacheKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value in cache with default TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, DefaultCacheTTL)
}

func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if database.RedisClient == nil {
		return errRedisUnavailable
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return database.RedisClient.Set(ctx, CacheKeyPrefix+key, jsonData, ttl).Err()
}

// Delete removes a value from cache
func (c *CacheService) Delete(ctx context.Context, key string) error {
	if database.RedisClient == nil {
		return errRedisUnavailable
	}
	return database.RedisClient.Del(ctx, CacheKeyPrefix+key).Err()
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

// Global cache service instance
var Cache = &CacheService{}
